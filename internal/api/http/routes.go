package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kalder/weather-staging/internal/orchestrator"
	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/store"
)

// RegisterRoutes wires the status handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reg *registry.Registry, runs *store.RunStore) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"locations": reg.Entries(),
		})
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		all := runs.All()
		summaries := make([]fiber.Map, 0, len(all))
		for _, r := range all {
			summaries = append(summaries, runSummary(r))
		}
		return c.JSON(fiber.Map{"runs": summaries})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		latest, err := runs.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNoRuns) {
				return fiber.NewError(fiber.StatusNotFound, "no collection runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}
		return c.JSON(runSummary(latest))
	})
}

// runSummary renders the per-location success/failure view of one run.
func runSummary(r orchestrator.Result) fiber.Map {
	failed := r.Failed()
	failures := make([]fiber.Map, 0, len(failed))
	for _, lr := range failed {
		failures = append(failures, fiber.Map{
			"location": lr.Location,
			"reason":   lr.Reason,
		})
	}

	return fiber.Map{
		"run_id":      r.RunID,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"succeeded":   r.Succeeded(),
		"failed":      len(failed),
		"failures":    failures,
		"ok":          r.Err() == nil,
		"locations":   r.Locations,
	}
}
