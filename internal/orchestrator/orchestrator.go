package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/staging"
	"github.com/kalder/weather-staging/internal/wx"
	"github.com/kalder/weather-staging/internal/wx/filter"
)

// LocationResult is the outcome of one location's collection cycle.
type LocationResult struct {
	Location     string       `json:"location"`
	Err          error        `json:"-"`
	Reason       string       `json:"reason,omitempty"`
	Forecasts    int          `json:"forecasts"`
	Observations int          `json:"observations"`
	Files        []string     `json:"files,omitempty"`
	Dropped      filter.Stats `json:"dropped"`
}

// Result aggregates one run across the whole registry.
type Result struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Locations  []LocationResult `json:"locations"`
}

// Succeeded counts locations that completed without error.
func (r Result) Succeeded() int {
	n := 0
	for _, lr := range r.Locations {
		if lr.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the per-location failures.
func (r Result) Failed() []LocationResult {
	var out []LocationResult
	for _, lr := range r.Locations {
		if lr.Err != nil {
			out = append(out, lr)
		}
	}
	return out
}

// Err reports the run-level outcome: nil if at least one location succeeded,
// otherwise an aggregate error enumerating every failure reason.
func (r Result) Err() error {
	failed := r.Failed()
	if len(failed) < len(r.Locations) || len(r.Locations) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, lr := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", lr.Location, lr.Err))
	}
	return fmt.Errorf("all %d locations failed: %w", len(failed), errors.Join(errs...))
}

// Orchestrator drives the registry × provider fan-out: fetch, normalize,
// filter and stage per location, isolating per-location failures.
type Orchestrator struct {
	reg         *registry.Registry
	clients     []wx.Client
	writer      *staging.Writer
	exclusions  filter.Exclusions
	parallelism int
	logger      *zap.Logger
	now         func() time.Time
}

// New builds an orchestrator. parallelism <= 1 processes locations
// sequentially; behavior is identical either way since per-location work
// units share no mutable state.
func New(reg *registry.Registry, clients []wx.Client, writer *staging.Writer, exclusions filter.Exclusions, parallelism int, logger *zap.Logger) *Orchestrator {
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		reg:         reg,
		clients:     clients,
		writer:      writer,
		exclusions:  exclusions,
		parallelism: parallelism,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one collection cycle over every registered location and
// refreshes the location dimension table. The returned error follows the
// end-of-run policy: nil when at least one location succeeded.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	runTS := o.now().UTC()
	result := Result{
		RunID:     uuid.NewString(),
		StartedAt: runTS,
		Locations: make([]LocationResult, o.reg.Len()),
	}
	log := o.logger.With(zap.String("run_id", result.RunID))

	// The dimension table reflects current configuration and is replaced in
	// full on every run.
	if _, err := o.writer.WriteLocationDimension(o.reg.Entries()); err != nil {
		return result, fmt.Errorf("write location dimension: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i, loc := range o.reg.Entries() {
		i, loc := i, loc
		g.Go(func() error {
			// One result slot per location; failures are recorded, never
			// propagated, so sibling locations always complete.
			result.Locations[i] = o.collectLocation(gCtx, loc, runTS)
			return nil
		})
	}
	g.Wait()

	result.FinishedAt = o.now().UTC()

	for _, lr := range result.Locations {
		if lr.Err != nil {
			log.Warn("location failed",
				zap.String("location", lr.Location),
				zap.String("reason", lr.Reason),
			)
		}
	}
	log.Info("run complete",
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", len(result.Failed())),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)

	return result, result.Err()
}

func (o *Orchestrator) collectLocation(ctx context.Context, loc registry.LocationEntry, runTS time.Time) LocationResult {
	res := LocationResult{Location: loc.Name}

	fail := func(err error) LocationResult {
		res.Err = err
		res.Reason = err.Error()
		return res
	}

	for _, client := range o.clients {
		forecasts, err := client.FetchForecast(ctx, loc)
		switch {
		case errors.Is(err, wx.ErrNotSupported):
			// capability not served by this client
		case err != nil:
			return fail(fmt.Errorf("%s forecast: %w", client.Name(), err))
		default:
			kept, stats := filter.Forecasts(forecasts, o.exclusions)
			res.Dropped.NonCausal += stats.NonCausal
			res.Dropped.Duplicates += stats.Duplicates
			res.Dropped.Excluded += stats.Excluded

			path, created, err := o.writer.WriteForecasts(client.Name(), "forecasts", loc, runTS, kept)
			if err != nil {
				return fail(fmt.Errorf("%s forecast staging: %w", client.Name(), err))
			}
			res.Forecasts += len(kept)
			if created {
				res.Files = append(res.Files, path)
			}
		}

		observations, err := client.FetchCurrent(ctx, loc)
		switch {
		case errors.Is(err, wx.ErrNotSupported):
			// capability not served by this client
		case err != nil:
			return fail(fmt.Errorf("%s observations: %w", client.Name(), err))
		default:
			path, created, err := o.writer.WriteObservations(client.Name(), "observations", loc, runTS, observations)
			if err != nil {
				return fail(fmt.Errorf("%s observation staging: %w", client.Name(), err))
			}
			res.Observations += len(observations)
			if created {
				res.Files = append(res.Files, path)
			}
		}
	}

	return res
}
