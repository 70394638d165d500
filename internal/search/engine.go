// Package search walks a release channel backward from its latest manifest
// and returns the most recent date whose manifest satisfies a requirement.
//
// The walk is a plain loop over candidate dates in strictly decreasing
// order. Each date costs at most one manifest fetch, and a fetch is only
// issued once every more recent date has been ruled out, so the first
// accepted date is always the most recent one in the window.
package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/availability"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/logging"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Engine runs searches against a Fetcher.
type Engine struct {
	fetcher    Fetcher
	exceptions availability.Exceptions
	logger     logging.Logger
	observer   Observer
	newRunID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithExceptions sets the exception list applied to every requirement.
func WithExceptions(exceptions availability.Exceptions) Option {
	return func(e *Engine) {
		if exceptions != nil {
			e.exceptions = exceptions
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback for every probed date.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// NewEngine creates a search engine.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:    fetcher,
		exceptions: availability.NoExceptions{},
		logger:     logging.Noop(),
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run searches for the most recent release satisfying req.
//
// An exhausted window is a normal outcome: Run returns it with State
// StateExhausted and a nil error. Any other failure is returned as an error
// with no outcome; cancellation returns ctx.Err().
func (e *Engine) Run(ctx context.Context, req release.Requirement) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := e.newRunID()
	outcome := &Outcome{
		RunID:      runID,
		Channel:    req.Channel,
		State:      StateInit,
		MaxAgeDays: req.MaxAgeDays,
	}
	e.logger.Info("search started",
		"run", runID,
		"channel", req.Channel,
		"profile", req.Profile,
		"targets", len(req.Targets),
		"max_age_days", req.MaxAgeDays)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	latest, err := e.fetcher.FetchLatest(ctx, req.Channel)
	if err != nil {
		return nil, e.fail(ctx, runID, fmt.Errorf("fetch latest %s manifest: %w", req.Channel, err))
	}

	plan, err := availability.NewPlan(latest, req, e.exceptions)
	if err != nil {
		return nil, e.fail(ctx, runID, err)
	}

	outcome.State = StateProbing
	outcome.Anchor = latest.Date
	outcome.LowerBound = latest.Date.AddDays(-req.MaxAgeDays)
	outcome.Components = plan.Components()
	outcome.Skipped = plan.Skipped()
	e.logger.Debug("search window",
		"run", runID,
		"anchor", outcome.Anchor,
		"lower_bound", outcome.LowerBound,
		"components", outcome.Components,
		"skipped", outcome.Skipped)

	total := req.MaxAgeDays + 1
	for index, date := 0, outcome.Anchor; !date.Before(outcome.LowerBound); index, date = index+1, date.AddDays(-1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome.Probed = index + 1

		m := latest
		if index > 0 {
			m, err = e.fetcher.FetchForDate(ctx, req.Channel, date)
			if release.IsSkippable(err) {
				e.logger.Debug("no release", "run", runID, "date", date)
				e.notify(Event{RunID: runID, Date: date, Index: index, Total: total, Verdict: VerdictNoRelease})
				continue
			}
			if err != nil {
				return nil, e.fail(ctx, runID, fmt.Errorf("probe %s: %w", date, err))
			}
			if m.Date.After(date) {
				return nil, e.fail(ctx, runID, &release.MalformedManifestError{
					Reason: fmt.Sprintf("manifest archived for %s is dated %s", date, m.Date),
				})
			}
		}

		result := plan.Evaluate(m)
		if !result.Satisfied() {
			e.logger.Debug("candidate rejected", "run", runID, "date", date, "reason", result.String())
			e.notify(Event{RunID: runID, Date: date, Index: index, Total: total, Verdict: VerdictRejected, Result: result})
			continue
		}

		e.notify(Event{RunID: runID, Date: date, Index: index, Total: total, Verdict: VerdictAccepted, Result: result})
		outcome.State = StateFound
		outcome.Date = date
		outcome.Version = m.Version
		outcome.Manifest = m
		e.logger.Info("release found", "run", runID, "date", date, "probed", outcome.Probed)
		return outcome, nil
	}

	outcome.State = StateExhausted
	e.logger.Info("search window exhausted", "run", runID, "probed", outcome.Probed)
	return outcome, nil
}

// Find is Run with an exhausted window reported as
// *release.WindowExhaustedError.
func (e *Engine) Find(ctx context.Context, req release.Requirement) (*Outcome, error) {
	outcome, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if !outcome.Found() {
		return nil, &release.WindowExhaustedError{Channel: req.Channel, MaxAgeDays: req.MaxAgeDays}
	}
	return outcome, nil
}

// fail logs a terminal failure. Cancellation is passed through untouched.
func (e *Engine) fail(ctx context.Context, runID string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	e.logger.Error("search failed", "run", runID, "error", err)
	return err
}

func (e *Engine) notify(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}
