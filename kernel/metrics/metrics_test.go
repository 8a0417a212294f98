package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/model"
)

func TestNew_NoopWithoutUrl(t *testing.T) {
	o := New(model.MetricsConfig{})
	_, isNoop := o.(Noop)
	assert.True(t, isNoop)
	o.PhaseCompleted(context.Background(), "export", model.PhaseExporting, OutcomeOk, time.Second)
	o.Close()
}

func TestInflux_WritesPoint(t *testing.T) {
	var mu sync.Mutex
	var body, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(data)
		query = r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := New(model.MetricsConfig{InfluxUrl: srv.URL, InfluxToken: "token", InfluxOrg: "youwol", InfluxBucket: "jobs"})
	defer o.Close()
	_, isInflux := o.(*Influx)
	require.True(t, isInflux)

	o.PhaseCompleted(context.Background(), "import", model.PhaseImporting, OutcomeError, 1500*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body, Measurement)
	assert.Contains(t, body, "phase=IMPORTING")
	assert.Contains(t, body, "workflow=import")
	assert.Contains(t, body, "outcome=error")
	assert.Contains(t, body, "duration_ms=1500i")
	assert.Contains(t, query, "bucket=jobs")
}

func TestInflux_WriteFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewInflux(model.MetricsConfig{InfluxUrl: srv.URL, InfluxOrg: "o", InfluxBucket: "b"})
	defer o.Close()
	o.PhaseCompleted(context.Background(), "export", model.PhaseDone, OutcomeOk, time.Millisecond)
}
