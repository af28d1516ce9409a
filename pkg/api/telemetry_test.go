package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexroom/redline/pkg/observability"
)

func TestTelemetryMiddlewarePassesRequestsThrough(t *testing.T) {
	provider, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	require.NoError(t, err)

	var sawRequest bool
	handler := TelemetryMiddleware(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRequest = true
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/clauses/cl-1/decisions", nil))

	assert.True(t, sawRequest)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestTelemetryMiddlewareRecordsServerErrors(t *testing.T) {
	provider, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	require.NoError(t, err)

	handler := TelemetryMiddleware(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/clauses/cl-1/projection", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
