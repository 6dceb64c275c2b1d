package dedupe_test

import (
	"context"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/domain/dedupe"
)

func TestDeduper_SeenAndRecord(t *testing.T) {
	convey.Convey("Given an empty deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		convey.Convey("When an id is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "sess-1")

			convey.Convey("Then it was not seen before", func() {
				convey.So(seen, convey.ShouldBeFalse)
				convey.So(d.Size(), convey.ShouldEqual, 1)
			})

			convey.Convey("And when the same id arrives again", func() {
				convey.So(d.SeenAndRecord(ctx, "sess-1"), convey.ShouldBeTrue)
				convey.So(d.Size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When distinct ids are recorded", func() {
			convey.So(d.SeenAndRecord(ctx, "sess-1"), convey.ShouldBeFalse)
			convey.So(d.SeenAndRecord(ctx, "sess-2"), convey.ShouldBeFalse)

			convey.Convey("Then both are tracked", func() {
				convey.So(d.Size(), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestDeduper_Unrecord(t *testing.T) {
	convey.Convey("Given a deduper holding an id", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		d.SeenAndRecord(ctx, "sess-1")

		convey.Convey("When the id is unrecorded", func() {
			d.Unrecord(ctx, "sess-1")

			convey.Convey("Then a retry is treated as unseen", func() {
				convey.So(d.SeenAndRecord(ctx, "sess-1"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "sess-never")

			convey.Convey("Then nothing changes", func() {
				convey.So(d.Size(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestDeduper_Eviction(t *testing.T) {
	convey.Convey("Given a deduper bounded to two ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		convey.Convey("When a third id pushes out the oldest", func() {
			d.SeenAndRecord(ctx, "sess-1")
			d.SeenAndRecord(ctx, "sess-2")
			d.SeenAndRecord(ctx, "sess-3")

			convey.Convey("Then the size stays bounded", func() {
				convey.So(d.Size(), convey.ShouldEqual, 2)
			})

			convey.Convey("And the oldest id is forgotten", func() {
				convey.So(d.SeenAndRecord(ctx, "sess-1"), convey.ShouldBeFalse)
			})

			convey.Convey("And the newer ids are still remembered", func() {
				convey.So(d.SeenAndRecord(ctx, "sess-2"), convey.ShouldBeTrue)
				convey.So(d.SeenAndRecord(ctx, "sess-3"), convey.ShouldBeTrue)
			})
		})
	})
}
