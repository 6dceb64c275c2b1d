package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/adapters/mq/queue"
)

const receiveTimeout = 2 * time.Second

// receive pulls one job or fails the assertion chain with a zero job.
func receive(jobs <-chan queue.Job) (queue.Job, bool) {
	select {
	case j, ok := <-jobs:
		return j, ok
	case <-time.After(receiveTimeout):
		return queue.Job{}, false
	}
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	convey.Convey("Given a running queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		defer func() { _ = q.Close() }()

		convey.Convey("When a job is enqueued", func() {
			ok := q.Enqueue(ctx, queue.Job{ID: "job-1", SessionID: "sess-1"})

			convey.Convey("Then it is delivered on the ready channel", func() {
				convey.So(ok, convey.ShouldBeTrue)

				j, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(j.ID, convey.ShouldEqual, "job-1")
				convey.So(j.SessionID, convey.ShouldEqual, "sess-1")
				convey.So(j.Priority, convey.ShouldEqual, queue.PriorityNormal)
				convey.So(j.EnqueuedAt.IsZero(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a high-priority job arrives behind a backlog", func() {
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-n1", Priority: queue.PriorityNormal}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-n2", Priority: queue.PriorityNormal}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-h1", Priority: queue.PriorityHigh}), convey.ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then it overtakes the queued normal jobs", func() {
				first, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(first.ID, convey.ShouldEqual, "job-h1")

				second, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(second.ID, convey.ShouldEqual, "job-n1")

				third, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(third.ID, convey.ShouldEqual, "job-n2")
			})
		})

		convey.Convey("When jobs share a release time", func() {
			runAt := time.Now().Add(150 * time.Millisecond)
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-normal", Priority: queue.PriorityNormal, RunAt: runAt}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-high", Priority: queue.PriorityHigh, RunAt: runAt}), convey.ShouldBeTrue)

			convey.Convey("Then the high-priority job dispatches first", func() {
				first, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(first.ID, convey.ShouldEqual, "job-high")

				second, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(second.ID, convey.ShouldEqual, "job-normal")
			})
		})
	})
}

func TestQueue_Capacity(t *testing.T) {
	convey.Convey("Given a queue bounded to two jobs", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		defer func() { _ = q.Close() }()

		convey.Convey("When the queue fills up", func() {
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-1"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-2"}), convey.ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then further enqueues are rejected without blocking", func() {
				convey.So(q.Enqueue(ctx, queue.Job{ID: "job-3"}), convey.ShouldBeFalse)
				convey.So(q.Len(ctx), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestQueue_RetryAndFailure(t *testing.T) {
	convey.Convey("Given a queue with a short retry backoff", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(
			queue.WithMaxAttempts(3),
			queue.WithBaseDelay(40*time.Millisecond),
		)
		defer func() { _ = q.Close() }()

		convey.Convey("When a job is nacked within its retry budget", func() {
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-1", SessionID: "sess-1"}), convey.ShouldBeTrue)
			j, got := receive(q.Dequeue(ctx))
			convey.So(got, convey.ShouldBeTrue)

			before := time.Now()
			q.Nack(ctx, j, errors.New("processing blew up"))

			convey.Convey("Then it is redelivered after the backoff delay", func() {
				retried, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(retried.ID, convey.ShouldEqual, "job-1")
				convey.So(retried.Attempts, convey.ShouldEqual, 1)
				convey.So(retried.LastError, convey.ShouldContainSubstring, "blew up")
				convey.So(time.Since(before), convey.ShouldBeGreaterThanOrEqualTo, 30*time.Millisecond)
			})
		})

		convey.Convey("When a job exhausts its retry budget", func() {
			convey.So(q.Enqueue(ctx, queue.Job{ID: "job-1", SessionID: "sess-1"}), convey.ShouldBeTrue)
			jobs := q.Dequeue(ctx)

			for attempt := 0; attempt < 3; attempt++ {
				j, got := receive(jobs)
				convey.So(got, convey.ShouldBeTrue)
				q.Nack(ctx, j, errors.New("still broken"))
			}

			convey.Convey("Then it is parked in the failed set", func() {
				failed := q.FailedJobs()
				convey.So(failed, convey.ShouldHaveLength, 1)
				convey.So(failed[0].ID, convey.ShouldEqual, "job-1")
				convey.So(failed[0].Attempts, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestQueue_Replay(t *testing.T) {
	convey.Convey("Given a queue holding a failed job", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithMaxAttempts(1))
		defer func() { _ = q.Close() }()

		convey.So(q.Enqueue(ctx, queue.Job{ID: "job-1", SessionID: "sess-1"}), convey.ShouldBeTrue)
		j, got := receive(q.Dequeue(ctx))
		convey.So(got, convey.ShouldBeTrue)
		q.Nack(ctx, j, errors.New("poison"))
		convey.So(q.FailedJobs(), convey.ShouldHaveLength, 1)

		convey.Convey("When the job is replayed", func() {
			err := q.Replay(ctx, "job-1")

			convey.Convey("Then it re-enters the queue with a fresh budget", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.FailedJobs(), convey.ShouldBeEmpty)

				replayed, got := receive(q.Dequeue(ctx))
				convey.So(got, convey.ShouldBeTrue)
				convey.So(replayed.ID, convey.ShouldEqual, "job-1")
				convey.So(replayed.Attempts, convey.ShouldEqual, 0)
				convey.So(replayed.LastError, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When an unknown job id is replayed", func() {
			convey.So(errors.Is(q.Replay(ctx, "job-nope"), queue.ErrJobNotFound), convey.ShouldBeTrue)
		})
	})
}

func TestQueue_Close(t *testing.T) {
	convey.Convey("Given a running queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then it reports closed and rejects new jobs", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(q.Enqueue(ctx, queue.Job{ID: "job-1"}), convey.ShouldBeFalse)
			})

			convey.Convey("And the ready channel is closed", func() {
				_, ok := <-q.Dequeue(ctx)
				convey.So(ok, convey.ShouldBeFalse)
			})

			convey.Convey("And closing again is a no-op", func() {
				convey.So(q.Close(), convey.ShouldBeNil)
			})

			convey.Convey("And replaying against a closed queue is refused", func() {
				convey.So(errors.Is(q.Replay(ctx, "job-1"), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestQueue_Stats(t *testing.T) {
	convey.Convey("Given a queue with completed and failed jobs", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithMaxAttempts(1))
		defer func() { _ = q.Close() }()

		jobs := q.Dequeue(ctx)

		convey.So(q.Enqueue(ctx, queue.Job{ID: "job-ok", SessionID: "sess-1"}), convey.ShouldBeTrue)
		j, got := receive(jobs)
		convey.So(got, convey.ShouldBeTrue)
		q.Ack(ctx, j)

		convey.So(q.Enqueue(ctx, queue.Job{ID: "job-bad", SessionID: "sess-2"}), convey.ShouldBeTrue)
		j, got = receive(jobs)
		convey.So(got, convey.ShouldBeTrue)
		q.Nack(ctx, j, errors.New("poison"))

		convey.Convey("When stats are read", func() {
			st := q.Stats()

			convey.Convey("Then the counters reflect the outcomes", func() {
				convey.So(st["completed"], convey.ShouldEqual, 1)
				convey.So(st["failed"], convey.ShouldEqual, 1)
				convey.So(st["depth"], convey.ShouldEqual, 0)
			})
		})
	})
}
