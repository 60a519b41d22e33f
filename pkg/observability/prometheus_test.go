package observability_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpsketch/privsketch/pkg/observability"
)

func TestPrometheusScrapeHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	handler, mp, err := observability.PrometheusScrapeHandler()
	require.NoError(t, err)
	require.NotNil(t, handler)

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	im, err := observability.NewIngestMetrics(mp.Meter("test"))
	require.NoError(t, err)

	im.RecordIngest(context.Background(), "page_view", "ok", 0)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "privsketch_ingest_total")
}
