package orchestration

import (
	"context"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
)

// PassKind names a promotion pass.
type PassKind string

const (
	PassIngest PassKind = "ingest"
	PassEnrich PassKind = "enrich"
	PassRun    PassKind = "run"
)

// TableRef is what a mover needs to locate a dataset: the table row, the
// source it came from and the stage it lives in.
type TableRef struct {
	Table  models.Table  `json:"table"`
	Source models.Source `json:"source"`
	Stage  models.Stage  `json:"stage"`
}

// Outcome is the result reported by a mover for one table.
type Outcome struct {
	Success bool  `json:"success"`
	Rows    int64 `json:"rows"`
}

// DatasetMover performs the data movement for a single table. Returning an
// error (or panicking) is recorded as a failed attempt; it never aborts the
// pass.
type DatasetMover interface {
	Ingest(ctx context.Context, ref TableRef, runKey int64) (Outcome, error)
	Enrich(ctx context.Context, ref TableRef, runKey int64) (Outcome, error)
}

// RunKeyAllocator hands out the CDC key shared by every log of one pass.
type RunKeyAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// Locker serializes passes of the same kind across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// LineageRecorder records that a table was promoted into another.
type LineageRecorder interface {
	RecordPromotion(ctx context.Context, from, to models.Table, cdcKey int64) error
}

// StageLogs is the slice of the stage log state machine a pass drives.
type StageLogs interface {
	Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error)
	AppendMessage(ctx context.Context, id int64, message string, isError bool) (models.StageLogMessage, error)
	Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error)
	ListPromotable(ctx context.Context, stageID, cdcKey int64) ([]models.StageLog, error)
}

// TableOutcome is the per-table result of a pass.
type TableOutcome struct {
	Table      models.Table `json:"table"`
	StageLogID int64        `json:"stage_log_id,omitempty"`
	Success    bool         `json:"success"`
	Rows       int64        `json:"rows"`
	// Skipped is set when the pass was cancelled before the table started.
	Skipped bool   `json:"skipped,omitempty"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
}

// PassResult reports what a pass did.
type PassResult struct {
	Kind   PassKind       `json:"kind"`
	CDCKey int64          `json:"cdc_key"`
	RunID  string         `json:"run_id"`
	Stage  models.Stage   `json:"stage"`
	Tables []models.Table `json:"tables"`
	// Outcomes is in the same order as Tables.
	Outcomes []TableOutcome `json:"outcomes"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
}

// Succeeded returns the outcomes whose attempt succeeded.
func (r PassResult) Succeeded() []TableOutcome {
	return ectolinq.Filter(r.Outcomes, func(o TableOutcome) bool {
		return o.Success
	})
}

// Failed returns the outcomes of tables that were attempted and did not
// succeed.
func (r PassResult) Failed() []TableOutcome {
	return ectolinq.Filter(r.Outcomes, func(o TableOutcome) bool {
		return !o.Success && !o.Skipped
	})
}

// Errors returns the error of every failed table.
func (r PassResult) Errors() []error {
	withErr := ectolinq.Filter(r.Outcomes, func(o TableOutcome) bool {
		return o.Err != nil
	})
	return ectolinq.Map(withErr, func(o TableOutcome) error {
		return o.Err
	})
}

// RunResult is the pair of passes executed by Run.
type RunResult struct {
	CDCKey int64       `json:"cdc_key"`
	Ingest *PassResult `json:"ingest"`
	Enrich *PassResult `json:"enrich,omitempty"`
}
