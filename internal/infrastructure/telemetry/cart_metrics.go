package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Ingestion sources
const (
	SourceDirect    = "direct"
	SourceTransport = "transport"
)

// CartMetrics counts cart and checkout activity.
// A nil *CartMetrics records nothing.
type CartMetrics struct {
	linesAdded     *Counter
	duplicateReads *Counter
	rejections     *Counter
	loansCreated   *Counter
	eventsDropped  *Counter
	ingestDuration *Histogram
}

// ErrMeterNil is returned when meter is nil
var ErrMeterNil = &MetricsError{Op: "NewCartMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewCartMetrics registers the cart instruments on meter
func NewCartMetrics(meter metric.Meter) (*CartMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &CartMetrics{}
	var err error
	if m.linesAdded, err = NewCounter(meter, "cart_lines_added_total", "Tags added to a cart", "{line}"); err != nil {
		return nil, err
	}
	if m.duplicateReads, err = NewCounter(meter, "cart_duplicate_reads_total", "Tag reads already present in the cart", "{read}"); err != nil {
		return nil, err
	}
	if m.rejections, err = NewCounter(meter, "cart_rejections_total", "Cart operations rejected by a domain rule", "{rejection}"); err != nil {
		return nil, err
	}
	if m.loansCreated, err = NewCounter(meter, "loans_created_total", "Loans created at checkout", "{loan}"); err != nil {
		return nil, err
	}
	if m.eventsDropped, err = NewCounter(meter, "cart_events_dropped_total", "Malformed tag-read events dropped", "{event}"); err != nil {
		return nil, err
	}
	if m.ingestDuration, err = NewHistogram(meter, "cart_ingest_duration_seconds", "Time to handle one tag read", "s", IngestDurationBuckets...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordLineAdded counts an inserted line
func (m *CartMetrics) RecordLineAdded(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.linesAdded.Inc(ctx, AttrSource.String(source))
}

// RecordDuplicateRead counts an idempotent no-op read
func (m *CartMetrics) RecordDuplicateRead(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.duplicateReads.Inc(ctx, AttrSource.String(source))
}

// RecordRejection counts a domain rejection by error code
func (m *CartMetrics) RecordRejection(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.rejections.Inc(ctx, AttrErrorCode.String(code))
}

// RecordLoansCreated counts the loans written by a checkout
func (m *CartMetrics) RecordLoansCreated(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.loansCreated.Add(ctx, int64(n))
}

// RecordEventDropped counts a malformed event
func (m *CartMetrics) RecordEventDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.Inc(ctx, AttrReason.String(reason))
}

// RecordIngestDuration records the handling time of a tag read
func (m *CartMetrics) RecordIngestDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.RecordDuration(ctx, d)
}
