package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dpsketch/privsketch/pkg/alg/stats"
)

const (
	metricIngestTotal    = "privsketch.ingest.total"
	metricIngestDuration = "privsketch.ingest.duration.seconds"
	metricIngestEMA      = "privsketch.ingest.duration.ema_seconds"
	metricEstimateTotal  = "privsketch.estimate.total"
	metricSketchBytes    = "privsketch.sketch.bytes"

	attrOp       = "op"
	attrStatus   = "status"
	attrCategory = "category"

	statusError = "error"

	// emaAlpha weights the most recent ingest call at 20%, smoothing out
	// the per-call jitter a raw histogram observation would carry.
	emaAlpha = 0.2
)

// durationBucketBoundaries covers 1ms to 60s, the range a single-key
// ingest call or a full-universe estimate pass should fall within.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// IngestMetrics holds the OTel instruments for the ingest/estimate pipeline.
type IngestMetrics struct {
	ingestTotal    metric.Int64Counter
	ingestDuration metric.Float64Histogram
	ingestEMA      metric.Float64Gauge
	estimateTotal  metric.Int64Counter
	sketchBytes    metric.Float64Gauge

	emaMu sync.Mutex
	ema   map[string]*stats.EMA
}

// NewIngestMetrics creates the ingest-pipeline metric instruments from the given meter.
func NewIngestMetrics(mt metric.Meter) (*IngestMetrics, error) {
	ingestTotal, err := mt.Int64Counter(metricIngestTotal,
		metric.WithDescription("Total number of values ingested"),
		metric.WithUnit("{value}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricIngestTotal, err)
	}

	ingestDuration, err := mt.Float64Histogram(metricIngestDuration,
		metric.WithDescription("Ingest call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricIngestDuration, err)
	}

	estimateTotal, err := mt.Int64Counter(metricEstimateTotal,
		metric.WithDescription("Total number of cardinality estimate calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEstimateTotal, err)
	}

	sketchBytes, err := mt.Float64Gauge(metricSketchBytes,
		metric.WithDescription("In-memory size of a category's sketch"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSketchBytes, err)
	}

	ingestEMA, err := mt.Float64Gauge(metricIngestEMA,
		metric.WithDescription("Exponential moving average of ingest call duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricIngestEMA, err)
	}

	return &IngestMetrics{
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestEMA:      ingestEMA,
		estimateTotal:  estimateTotal,
		sketchBytes:    sketchBytes,
		ema:            make(map[string]*stats.EMA),
	}, nil
}

// RecordIngest records a single ingest call with its category, status, and
// duration, and updates the per-category smoothed duration gauge.
func (im *IngestMetrics) RecordIngest(ctx context.Context, category, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrCategory, category),
		attribute.String(attrStatus, status),
	)

	im.ingestTotal.Add(ctx, 1, attrs)
	im.ingestDuration.Record(ctx, duration.Seconds(), attrs)

	smoothed := im.updateEMA(category, duration.Seconds())
	im.ingestEMA.Record(ctx, smoothed, metric.WithAttributes(attribute.String(attrCategory, category)))
}

func (im *IngestMetrics) updateEMA(category string, seconds float64) float64 {
	im.emaMu.Lock()
	defer im.emaMu.Unlock()

	e, ok := im.ema[category]
	if !ok {
		e = stats.NewEMA(emaAlpha)
		im.ema[category] = e
	}

	return e.Update(seconds)
}

// RecordEstimate records a completed cardinality estimate for a category.
func (im *IngestMetrics) RecordEstimate(ctx context.Context, category, status string) {
	im.estimateTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCategory, category),
		attribute.String(attrStatus, status),
	))
}

// RecordSketchBytes reports the current in-memory size of a category's sketch.
func (im *IngestMetrics) RecordSketchBytes(ctx context.Context, category string, bytes float64) {
	im.sketchBytes.Record(ctx, bytes, metric.WithAttributes(
		attribute.String(attrCategory, category),
	))
}
