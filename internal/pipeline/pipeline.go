//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline sequences extract, transform and load for one run.
//
// A run moves through extracting, transforming, loading_staging and
// loading_analytics to done. Any failure ends the run in failed; nothing is
// retried. The raw extracted tables are loaded into the staging namespace
// before the transformed tables are loaded into the analytics namespace, so
// an analytics failure leaves staging committed unless a compensation hook
// undoes it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
	"github.com/pgEdge/pgedge-salesetl/internal/load"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

// Phase is a state of a pipeline run.
type Phase string

// Run states, in order. PhaseFailed is reachable from every other phase
// except PhaseDone.
const (
	PhaseExtracting       Phase = "extracting"
	PhaseTransforming     Phase = "transforming"
	PhaseLoadingStaging   Phase = "loading_staging"
	PhaseLoadingAnalytics Phase = "loading_analytics"
	PhaseDone             Phase = "done"
	PhaseFailed           Phase = "failed"
)

// Extractor reads the source tables.
type Extractor interface {
	Extract(ctx context.Context) (dataset.Set, error)
}

// Transformer derives the analytics tables from the extracted tables.
type Transformer interface {
	Transform(set dataset.Set) (dataset.Set, error)
}

// Loader writes a set of tables into a namespace.
type Loader interface {
	Load(ctx context.Context, set dataset.Set, namespace string, policy load.Policy) (map[string]int64, error)
}

// CompensateFunc is called when the analytics load fails after staging was
// committed. staged holds the row counts written to staging.
type CompensateFunc func(ctx context.Context, staged map[string]int64, cause error) error

// Config configures an Orchestrator.
type Config struct {
	StagingSchema   string
	AnalyticsSchema string
	Policy          load.Policy

	// Compensate is optional. Without it a failed analytics load leaves
	// staging as written.
	Compensate CompensateFunc
}

// Result describes a finished run.
type Result struct {
	RunID       uuid.UUID
	State       Phase
	FailedPhase Phase

	// Phases lists every state the run entered, in order.
	Phases []Phase

	StartedAt  time.Time
	FinishedAt time.Time

	StagingRows   map[string]int64
	AnalyticsRows map[string]int64

	// Fingerprint identifies the analytics_sales content; 0 until transformed.
	Fingerprint uint64

	Err error
}

// Total sums a row count map.
func Total(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	cfg         Config
	observer    Observer
	now         func() time.Time
}

// New creates an Orchestrator. A nil observer discards events.
func New(e Extractor, t Transformer, l Loader, cfg Config, observer Observer) *Orchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Orchestrator{
		extractor:   e,
		transformer: t,
		loader:      l,
		cfg:         cfg,
		observer:    observer,
		now:         time.Now,
	}
}

// Run executes one full pipeline run. The returned error is also stored in
// the result.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.New(),
		StartedAt: o.now().UTC(),
	}

	if err := o.validate(); err != nil {
		res.Phases = []Phase{PhaseFailed}
		return o.finish(res, PhaseFailed, "", err)
	}

	// Extract
	o.enter(res, PhaseExtracting)
	extracted, err := o.extractor.Extract(ctx)
	if err != nil {
		return o.fail(res, PhaseExtracting, err)
	}
	o.observer.OnPhaseComplete(PhaseExtracting, extracted.RowCounts())

	// Transform
	o.enter(res, PhaseTransforming)
	transformed, err := o.transformer.Transform(extracted)
	if err != nil {
		return o.fail(res, PhaseTransforming, err)
	}
	if f, ok := transformed[warehouse.TableAnalyticsSales]; ok {
		res.Fingerprint = dataset.Fingerprint(f)
	}
	o.observer.OnPhaseComplete(PhaseTransforming, transformed.RowCounts())

	// Staging load
	o.enter(res, PhaseLoadingStaging)
	res.StagingRows, err = o.loader.Load(ctx, extracted, o.cfg.StagingSchema, o.cfg.Policy)
	if err != nil {
		return o.fail(res, PhaseLoadingStaging, err)
	}
	o.observer.OnPhaseComplete(PhaseLoadingStaging, res.StagingRows)

	// Analytics load
	o.enter(res, PhaseLoadingAnalytics)
	res.AnalyticsRows, err = o.loader.Load(ctx, transformed, o.cfg.AnalyticsSchema, o.cfg.Policy)
	if err != nil {
		if o.cfg.Compensate != nil {
			if cerr := o.cfg.Compensate(ctx, res.StagingRows, err); cerr != nil {
				err = errors.Join(err, fmt.Errorf("compensation failed: %w", cerr))
			}
		}
		return o.fail(res, PhaseLoadingAnalytics, err)
	}
	o.observer.OnPhaseComplete(PhaseLoadingAnalytics, res.AnalyticsRows)

	res.Phases = append(res.Phases, PhaseDone)
	return o.finish(res, PhaseDone, "", nil)
}

func (o *Orchestrator) validate() error {
	if o.cfg.StagingSchema == "" || o.cfg.AnalyticsSchema == "" {
		return fmt.Errorf("staging and analytics namespaces are required")
	}
	if o.cfg.StagingSchema == o.cfg.AnalyticsSchema {
		return fmt.Errorf("staging and analytics namespaces must differ")
	}
	if _, err := load.ParsePolicy(string(o.cfg.Policy)); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) enter(res *Result, phase Phase) {
	res.Phases = append(res.Phases, phase)
	o.observer.OnPhaseStart(phase)
}

func (o *Orchestrator) fail(res *Result, phase Phase, err error) (*Result, error) {
	o.observer.OnError(phase, err)
	res.Phases = append(res.Phases, PhaseFailed)
	return o.finish(res, PhaseFailed, phase, err)
}

func (o *Orchestrator) finish(res *Result, state, failed Phase, err error) (*Result, error) {
	res.State = state
	res.FailedPhase = failed
	res.FinishedAt = o.now().UTC()
	res.Err = err
	return res, err
}

// FailedTable returns the table named by a run's error, if any.
func (r *Result) FailedTable() string {
	return etlerr.TableOf(r.Err)
}
