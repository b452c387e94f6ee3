package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/kalder/weather-staging/internal/orchestrator"
	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/store"
)

func newTestApp(t *testing.T, runs *store.RunStore) *fiber.App {
	t.Helper()

	reg, err := registry.Load(registry.Options{})
	require.NoError(t, err)

	app := fiber.New()
	RegisterRoutes(app, reg, runs)
	return app
}

// TestLatestRunNotFound verifies the latest-run endpoint returns 404 before
// any collection run has completed.
func TestLatestRunNotFound(t *testing.T) {
	app := newTestApp(t, store.NewRunStore(10, time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestRunSummary(t *testing.T) {
	runs := store.NewRunStore(10, time.Hour)
	runs.Record(orchestrator.Result{
		RunID:      "run-1",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Locations: []orchestrator.LocationResult{
			{Location: "Chicago", Forecasts: 42},
			{Location: "Denver", Err: errors.New("network error"), Reason: "network error"},
		},
	})

	app := newTestApp(t, runs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		RunID     string `json:"run_id"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		OK        bool   `json:"ok"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "run-1", body.RunID)
	require.Equal(t, 1, body.Succeeded)
	require.Equal(t, 1, body.Failed)
	require.True(t, body.OK)
}

func TestLocationsEndpoint(t *testing.T) {
	app := newTestApp(t, store.NewRunStore(10, time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Locations []registry.LocationEntry `json:"locations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Locations)
	for _, loc := range body.Locations {
		require.NotEmpty(t, loc.WeatherID)
	}
}
