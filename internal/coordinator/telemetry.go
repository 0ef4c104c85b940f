package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName scopes coordinator telemetry.
const instrumentationName = "github.com/fyrsmithlabs/storyloom/internal/coordinator"

// metrics holds the coordinator's OTEL instruments. A nil or uninitialized
// metrics value is a no-op.
type metrics struct {
	workflowsTotal   metric.Int64Counter
	workflowDuration metric.Float64Histogram
	stageFailures    metric.Int64Counter

	initialized bool
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &metrics{}
	var err error

	m.workflowsTotal, err = meter.Int64Counter(
		"storyloom.workflow.total",
		metric.WithDescription("Total workflows run, by kind and outcome"),
		metric.WithUnit("{workflow}"),
	)
	if err != nil {
		return nil, err
	}

	m.workflowDuration, err = meter.Float64Histogram(
		"storyloom.workflow.duration.seconds",
		metric.WithDescription("End-to-end workflow duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.stageFailures, err = meter.Int64Counter(
		"storyloom.stage.failures.total",
		metric.WithDescription("Contained stage failures, by stage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

func (m *metrics) recordWorkflow(ctx context.Context, kind string, success bool, d time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	)
	m.workflowsTotal.Add(ctx, 1, attrs)
	m.workflowDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) recordStageFailure(ctx context.Context, stage string) {
	if m == nil || !m.initialized {
		return
	}
	m.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
