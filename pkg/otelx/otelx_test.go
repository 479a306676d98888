package otelx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/otelx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	tp, teardown, err := otelx.InitTracing(context.Background(), slogx.Discard(), otelx.Config{ServiceName: "accounts"})
	require.NoError(t, err)
	require.NotNil(t, tp)
	teardown(context.Background())

	_, span := otelx.AddSpan(context.Background(), "test.span", attribute.String("k", "v"))
	boom := errors.New("boom")
	require.ErrorIs(t, otelx.RecordError(span, boom), boom)
	require.NoError(t, otelx.RecordError(span, nil))
	span.End()
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	h := otelx.HTTPMiddleware("accounts", map[string]struct{}{"/livez": {}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	)

	for _, path := range []string{"/livez", "/v1/self"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
}
