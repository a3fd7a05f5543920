package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	ctx := context.Background()

	tel.RecordItem(ctx, "downloaded")
	tel.RecordRelocation(ctx, 4)
	tel.RecordFeed(ctx, "done")
	tel.RecordDiskFree(ctx, 1024)

	called := false
	err := tel.InstrumentTransfer(ctx, func(context.Context) error {
		called = true

		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, tel.Tracer())
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestDisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnabledTelemetryExposesHarvestMetrics(t *testing.T) {
	ctx := context.Background()

	tel, err := New(ctx, Config{Enabled: true, ServiceName: "telegroup_downloader", ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	tel.RecordItem(ctx, "downloaded")
	tel.RecordRelocation(ctx, 2)
	tel.RecordFeed(ctx, "done")

	boom := errors.New("boom")
	err = tel.InstrumentClientOperation(ctx, "telegram", "resolve", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "items_total")
	assert.Contains(t, string(body), "relocations_total")
	assert.Contains(t, string(body), "client_errors_total")
}

func TestRequestIDAndLogging(t *testing.T) {
	var seen string

	h := RequestID(HTTPLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", getStatusClass(204))
	assert.Equal(t, "3xx", getStatusClass(302))
	assert.Equal(t, "4xx", getStatusClass(404))
	assert.Equal(t, "5xx", getStatusClass(503))
	assert.Equal(t, "unknown", getStatusClass(100))
}
