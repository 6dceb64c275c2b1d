package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording intake metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordSessionIngested()
					RecordSessionDuplicate()
					RecordWebhookRejected("signature")
					RecordHTTPRequest("webhook", "POST", "200")
					RecordHTTPRequestDuration("webhook", "POST", "200", 12.5)
					RecordRateLimitAllowed()
					RecordRateLimitDenied()
					RecordRateLimitFailOpen()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording queue and worker metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					UpdateQueueDepth(5)
					UpdateQueueCapacity(10000)
					RecordJobEnqueued("high")
					RecordJobDequeued()
					RecordJobCompleted()
					RecordJobRetry()
					RecordJobFailed()
					RecordJobEnqueueError()
					UpdateWorkerActiveCount(8)
					RecordWorkerProcessingLatency(42)
					RecordWorkerError()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording pipeline metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordAggregationLatency(3.5)
					RecordScoreComputed()
					RecordRuleTriggered("no_show", "critical")
					RecordRuleError("declining_ratings")
					RecordFlagCreated("no_show", "critical")
					RecordFlagDeduplicated("lateness")
					RecordFlagError()
					RecordBackfillProcessed()
					RecordBackfillFailed()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording system metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(100)
					RecordSystemGCPauseTime(0.8)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the metrics registry", t, func() {
		Convey("When fetching it for the exposition endpoint", func() {
			registry := GetRegistry()

			Convey("Then it should gather the pipeline metrics", func() {
				So(registry, ShouldNotBeNil)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
