// Package orchestration drives promotion passes. An ingest pass moves every
// table of the raw stage under one CDC key; an enrich pass promotes the
// tables whose raw ingest under that key succeeded with rows into the
// enriched stage.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	fctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	fredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultLockTTL = 30 * time.Minute

	lockKeyPrefix = "pass:"
)

// Options tune a pass.
type Options struct {
	// Concurrency is the number of tables processed at once. Values below 2
	// process tables one at a time.
	Concurrency   int
	RawStage      string
	EnrichedStage string
	// RunID tags every log of a pass. A fresh uuid is used when empty.
	RunID   string
	LockTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.RawStage == "" {
		o.RawStage = models.StageRaw
	}
	if o.EnrichedStage == "" {
		o.EnrichedStage = models.StageEnriched
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	return o
}

// Option sets an optional collaborator.
type Option func(*Orchestrator)

// WithAllocator replaces the in-process clock allocator.
func WithAllocator(a RunKeyAllocator) Option {
	return func(o *Orchestrator) {
		o.keys = a
	}
}

// WithLocker guards each pass kind with a distributed lock.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithLineage records promotions after each successful enrich.
func WithLineage(l LineageRecorder) Option {
	return func(o *Orchestrator) {
		o.lineage = l
	}
}

type Orchestrator struct {
	catalog repositories.CatalogStore
	logs    StageLogs
	mover   DatasetMover
	keys    RunKeyAllocator
	locker  Locker
	lineage LineageRecorder
	opts    Options
	logger  ectologger.Logger
}

func New(
	catalog repositories.CatalogStore,
	logs StageLogs,
	mover DatasetMover,
	logger ectologger.Logger,
	opts Options,
	options ...Option,
) *Orchestrator {
	o := &Orchestrator{
		catalog: catalog,
		logs:    logs,
		mover:   mover,
		keys:    NewClockAllocator(),
		opts:    opts.withDefaults(),
		logger:  logger,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Ingest runs an ingest pass over every active table of the raw stage under a
// newly allocated CDC key. A failed table never aborts the pass; the returned
// error is reserved for failures that prevent the pass from running at all and
// for cancellation.
func (o *Orchestrator) Ingest(ctx context.Context) (*PassResult, error) {
	var result *PassResult
	err := o.guard(ctx, PassIngest, func(ctx context.Context) error {
		cdcKey, err := o.allocate(ctx)
		if err != nil {
			return err
		}
		result, err = o.ingest(ctx, cdcKey, o.runID())
		return err
	})
	return result, err
}

// Enrich promotes the tables whose raw ingest under cdcKey succeeded with at
// least one record. Running it twice with the same key reuses the enriched
// tables created the first time.
func (o *Orchestrator) Enrich(ctx context.Context, cdcKey int64) (*PassResult, error) {
	var result *PassResult
	err := o.guard(ctx, PassEnrich, func(ctx context.Context) error {
		var err error
		result, err = o.enrich(ctx, cdcKey, o.runID())
		return err
	})
	return result, err
}

// Run executes an ingest pass followed by an enrich pass with the same key.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	err := o.guard(ctx, PassRun, func(ctx context.Context) error {
		cdcKey, err := o.allocate(ctx)
		if err != nil {
			return err
		}
		result.CDCKey = cdcKey
		runID := o.runID()

		result.Ingest, err = o.ingest(ctx, cdcKey, runID)
		if err != nil {
			return err
		}
		result.Enrich, err = o.enrich(ctx, cdcKey, runID)
		return err
	})
	return result, err
}

func (o *Orchestrator) runID() string {
	if o.opts.RunID != "" {
		return o.opts.RunID
	}
	return uuid.NewString()
}

func (o *Orchestrator) allocate(ctx context.Context) (int64, error) {
	cdcKey, err := o.keys.Next(ctx)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to allocate CDC key")
		return 0, errs.Internal("failed to allocate cdc_key")
	}
	return cdcKey, nil
}

// guard runs fn under the pass lock when a locker is configured. A busy lock
// is reported as a conflict.
func (o *Orchestrator) guard(ctx context.Context, kind PassKind, fn func(ctx context.Context) error) error {
	if o.locker == nil {
		return fn(ctx)
	}
	err := o.locker.WithLock(ctx, lockKeyPrefix+string(kind), o.opts.LockTTL, fn)
	if errors.Is(err, fredis.ErrLockNotAcquired) {
		return errs.ConstraintViolation("%s pass already in progress", kind)
	}
	return err
}

// stage resolves a well-known stage. A missing or soft-deleted stage is a
// failed precondition.
func (o *Orchestrator) stage(ctx context.Context, name string) (models.Stage, error) {
	stage, err := o.catalog.GetStageByName(ctx, name)
	if errs.IsNotFound(err) {
		return stage, errs.PreconditionFailed("stage '%s' does not exist", name)
	}
	if err != nil {
		return stage, err
	}
	if !stage.IsActive {
		return stage, errs.PreconditionFailed("stage '%s' is inactive", name)
	}
	return stage, nil
}

func (o *Orchestrator) ingest(ctx context.Context, cdcKey int64, runID string) (*PassResult, error) {
	ctx = fctx.SetStage(fctx.SetRunID(fctx.SetCDCKey(ctx, cdcKey), runID), o.opts.RawStage)
	ctx, span := tracing.StartPassSpan(ctx, string(PassIngest), cdcKey, runID)
	defer span.End()

	result := &PassResult{Kind: PassIngest, CDCKey: cdcKey, RunID: runID, Started: time.Now()}
	defer o.finish(ctx, result)

	raw, err := o.stage(ctx, o.opts.RawStage)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}
	result.Stage = raw

	tables, err := o.catalog.ListTablesByStage(ctx, raw.ID)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}
	result.Tables = tables

	o.logger.WithContext(ctx).WithFields(fctx.Fields(ctx)).Infof("Starting ingest pass over %d tables", len(tables))

	sources := newSourceCache(o.catalog)
	result.Outcomes = fanout(ctx, tables, o.opts.Concurrency,
		func(ctx context.Context, table models.Table) TableOutcome {
			source, err := sources.get(ctx, table.SourceID)
			if err != nil {
				return TableOutcome{Table: table, Err: err, Error: err.Error()}
			}
			ref := TableRef{Table: table, Source: source, Stage: raw}
			return o.process(ctx, PassIngest, ref, cdcKey, runID)
		},
		skipped,
	)

	return result, ctx.Err()
}

func (o *Orchestrator) enrich(ctx context.Context, cdcKey int64, runID string) (*PassResult, error) {
	ctx = fctx.SetStage(fctx.SetRunID(fctx.SetCDCKey(ctx, cdcKey), runID), o.opts.EnrichedStage)
	ctx, span := tracing.StartPassSpan(ctx, string(PassEnrich), cdcKey, runID)
	defer span.End()

	result := &PassResult{Kind: PassEnrich, CDCKey: cdcKey, RunID: runID, Started: time.Now()}
	defer o.finish(ctx, result)

	raw, err := o.stage(ctx, o.opts.RawStage)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}
	enriched, err := o.stage(ctx, o.opts.EnrichedStage)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}
	result.Stage = enriched

	candidates, err := o.logs.ListPromotable(ctx, raw.ID, cdcKey)
	if err != nil {
		tracing.Fail(span, err)
		return result, err
	}

	// A table may have been ingested more than once under the same key.
	seen := map[int64]bool{}
	// unreadable holds candidates whose raw table cannot be read. They are
	// reported as failed outcomes without a stage log.
	unreadable := map[int64]error{}
	for _, log := range candidates {
		if seen[log.TableID] {
			continue
		}
		seen[log.TableID] = true

		table, err := o.catalog.GetTable(ctx, log.TableID)
		if err != nil {
			o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"stage_log_id": log.ID,
				"table_id":     log.TableID,
			}).Warn("Promotion candidate table cannot be read")
			unreadable[log.TableID] = err
			table = models.Table{Base: models.Base{ID: log.TableID}, StageID: raw.ID}
		}
		result.Tables = append(result.Tables, table)
	}

	o.logger.WithContext(ctx).WithFields(fctx.Fields(ctx)).Infof("Starting enrich pass over %d tables", len(result.Tables))

	sources := newSourceCache(o.catalog)
	result.Outcomes = fanout(ctx, result.Tables, o.opts.Concurrency,
		func(ctx context.Context, rawTable models.Table) TableOutcome {
			if err := unreadable[rawTable.ID]; err != nil {
				return TableOutcome{Table: rawTable, Err: err, Error: err.Error()}
			}
			source, err := sources.get(ctx, rawTable.SourceID)
			if err != nil {
				return TableOutcome{Table: rawTable, Err: err, Error: err.Error()}
			}
			target, err := o.promote(ctx, raw, enriched, source, rawTable)
			if err != nil {
				return TableOutcome{Table: rawTable, Err: err, Error: err.Error()}
			}

			outcome := o.process(ctx, PassEnrich, TableRef{Table: target, Source: source, Stage: enriched}, cdcKey, runID)
			if outcome.Success && o.lineage != nil {
				if err := o.lineage.RecordPromotion(ctx, rawTable, target, cdcKey); err != nil {
					o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
						"from_table_id": rawTable.ID,
						"to_table_id":   target.ID,
					}).Warn("Failed to record lineage")
				}
			}
			return outcome
		},
		skipped,
	)

	return result, ctx.Err()
}

// promote returns the enriched counterpart of rawTable, creating it when it
// does not exist yet. A concurrent creator wins through the unique
// constraint and the row it created is read back.
func (o *Orchestrator) promote(ctx context.Context, raw, enriched models.Stage, source models.Source, rawTable models.Table) (models.Table, error) {
	table, err := o.catalog.FindTable(ctx, enriched.ID, source.ID, rawTable.Name)
	if err == nil {
		return table, nil
	}
	if !errs.IsNotFound(err) {
		return table, err
	}

	location := models.PromotedLocation(raw.Name, source.Name, rawTable.Name)
	table, err = o.catalog.CreateTable(ctx, models.TableCreate{
		Name:           rawTable.Name,
		Description:    rawTable.Description,
		SourceLocation: &location,
		StageID:        enriched.ID,
		SourceID:       source.ID,
	})
	if errs.IsConflict(err) {
		return o.catalog.FindTable(ctx, enriched.ID, source.ID, rawTable.Name)
	}
	if err != nil {
		return table, err
	}

	metrics.RecordTablePromoted()
	o.logger.WithContext(ctx).WithFields(map[string]any{
		"from_table_id": rawTable.ID,
		"to_table_id":   table.ID,
		"location":      location,
	}).Info("Created enriched table")
	return table, nil
}

// process opens a log for ref, runs the mover and closes the log with the
// outcome. Once a log is open it is always closed, even when ctx has been
// cancelled in the meantime.
func (o *Orchestrator) process(ctx context.Context, kind PassKind, ref TableRef, cdcKey int64, runID string) TableOutcome {
	outcome := TableOutcome{Table: ref.Table}
	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"table_id": ref.Table.ID,
		"table":    ref.Table.Name,
		"cdc_key":  cdcKey,
		"pass":     string(kind),
	})

	opened, err := o.logs.Open(ctx, models.OpenStageLog{
		TableID: ref.Table.ID,
		StageID: ref.Stage.ID,
		CDCKey:  cdcKey,
		RunID:   &runID,
	})
	if err != nil {
		log.WithError(err).Error("Failed to open stage log")
		outcome.Err = err
		outcome.Error = err.Error()
		return outcome
	}
	outcome.StageLogID = opened.ID

	moved, moveErr := o.move(ctx, kind, ref, cdcKey)

	settle := context.WithoutCancel(ctx)
	if moveErr != nil {
		moved = Outcome{}
		outcome.Err = moveErr
		outcome.Error = moveErr.Error()
		log.WithError(moveErr).Warn("Mover failed")
		if _, err := o.logs.AppendMessage(settle, opened.ID, truncate(moveErr.Error(), models.MaxMessageLength), true); err != nil {
			log.WithError(err).Error("Failed to record mover error")
		}
	}

	rows := moved.Rows
	if _, err := o.logs.Close(settle, opened.ID, models.CloseStageLog{Success: moved.Success, RecordsProcessed: &rows}); err != nil {
		log.WithError(err).Error("Failed to close stage log")
		outcome.Err = err
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = moved.Success
	outcome.Rows = moved.Rows
	log.WithFields(map[string]any{"success": moved.Success, "rows": moved.Rows}).Debug("Table processed")
	return outcome
}

// move calls the mover, converting a panic into an error. A call interrupted
// by cancellation never counts as a success.
func (o *Orchestrator) move(ctx context.Context, kind PassKind, ref TableRef, cdcKey int64) (outcome Outcome, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{}
			err = fmt.Errorf("mover panicked: %v", r)
		}
		if err == nil && ctx.Err() != nil {
			outcome = Outcome{}
			err = ctx.Err()
		}
		metrics.RecordMoverCall(string(kind), moverStatus(outcome, err), time.Since(start).Seconds())
	}()

	if kind == PassIngest {
		return o.mover.Ingest(ctx, ref, cdcKey)
	}
	return o.mover.Enrich(ctx, ref, cdcKey)
}

func (o *Orchestrator) finish(ctx context.Context, result *PassResult) {
	result.Duration = time.Since(result.Started)

	status := "success"
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
	case len(result.Failed()) > 0:
		status = "partial"
	}
	metrics.RecordPass(string(result.Kind), status, result.Duration.Seconds())

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"pass":      string(result.Kind),
		"cdc_key":   result.CDCKey,
		"tables":    len(result.Tables),
		"succeeded": len(result.Succeeded()),
		"failed":    len(result.Failed()),
		"status":    status,
		"duration":  result.Duration.String(),
	}).Info("Pass finished")
}

func moverStatus(outcome Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case outcome.Success:
		return "success"
	default:
		return "failure"
	}
}

func skipped(table models.Table) TableOutcome {
	return TableOutcome{Table: table, Skipped: true}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// sourceCache memoizes source lookups for the duration of one pass.
type sourceCache struct {
	catalog repositories.CatalogStore
	mu      sync.Mutex
	sources map[int64]models.Source
}

func newSourceCache(catalog repositories.CatalogStore) *sourceCache {
	return &sourceCache{catalog: catalog, sources: map[int64]models.Source{}}
}

func (c *sourceCache) get(ctx context.Context, id int64) (models.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if source, ok := c.sources[id]; ok {
		return source, nil
	}
	source, err := c.catalog.GetSource(ctx, id)
	if err != nil {
		return source, err
	}
	c.sources[id] = source
	return source, nil
}
