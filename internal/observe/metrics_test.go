package observe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nvail/echodrill/internal/observe"
)

// collect gathers all metric data recorded against the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func TestMetrics_RecordReview(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReview(ctx, "good", "sentence")
	m.RecordReview(ctx, "good", "sentence")
	m.RecordReview(ctx, "again", "vocabulary")

	rm := collect(t, reader)
	metric, ok := findMetric(rm, "echodrill.reviews")
	if !ok {
		t.Fatal("echodrill.reviews not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", metric.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total reviews = %d, want 3", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("got %d attribute sets, want 2", len(sum.DataPoints))
	}
}

func TestMetrics_RecordRecognition(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.RecordRecognition(context.Background(), "passed")

	rm := collect(t, reader)
	if _, ok := findMetric(rm, "echodrill.recognition.results"); !ok {
		t.Error("echodrill.recognition.results not found")
	}
}

func TestMiddleware_RecordsDurationAndStatus(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	handler := observe.Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}

	rm := collect(t, reader)
	metric, ok := findMetric(rm, "echodrill.http.request.duration")
	if !ok {
		t.Fatal("echodrill.http.request.duration not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", metric.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("unexpected histogram points: %+v", hist.DataPoints)
	}
}

func TestDefaultMetrics_SameInstance(t *testing.T) {
	t.Parallel()

	if observe.DefaultMetrics() != observe.DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
