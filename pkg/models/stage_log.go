package models

import (
	"time"
)

// StageLogState is the lifecycle state of a stage log.
type StageLogState string

const (
	StageLogStateOpen   StageLogState = "open"
	StageLogStateClosed StageLogState = "closed"
)

// Length limits for stage log fields.
const (
	MaxRunIDLength   = 256
	MaxMessageLength = 1024
)

// StageLog records one attempt to move or transform one Table within one
// Stage, tagged with the CDC key of the run.
type StageLog struct {
	ID                       int64      `db:"id" json:"id"`
	TableID                  int64      `db:"table_id" json:"table_id"`
	StageID                  int64      `db:"stage_id" json:"stage_id"`
	CDCKey                   int64      `db:"cdc_key" json:"cdc_key"`
	RunID                    *string    `db:"run_id" json:"run_id,omitempty"`
	DatetimeStarted          time.Time  `db:"datetime_started" json:"datetime_started"`
	IsOpen                   bool       `db:"is_open" json:"is_open"`
	DatetimeEnded            *time.Time `db:"datetime_ended" json:"datetime_ended,omitempty"`
	Success                  *bool      `db:"success" json:"success"`
	NumberOfRecordsProcessed *int64     `db:"number_of_records_processed" json:"number_of_records_processed,omitempty"`
}

// TableName returns the database table name
func (StageLog) TableName() string {
	return "stage_logs"
}

// State reports whether the log is open or closed.
func (l StageLog) State() StageLogState {
	if l.IsOpen {
		return StageLogStateOpen
	}
	return StageLogStateClosed
}

// Succeeded is true for a closed log whose attempt succeeded.
func (l StageLog) Succeeded() bool {
	return !l.IsOpen && l.Success != nil && *l.Success
}

// RecordsProcessed returns the record count, or 0 when unset.
func (l StageLog) RecordsProcessed() int64 {
	if l.NumberOfRecordsProcessed == nil {
		return 0
	}
	return *l.NumberOfRecordsProcessed
}

// Promotable reports whether the log qualifies its table for the next stage.
func (l StageLog) Promotable() bool {
	return l.Succeeded() && l.RecordsProcessed() > 0
}

// StageLogMessage is an immutable diagnostic entry attached to a StageLog.
type StageLogMessage struct {
	ID                      int64     `db:"id" json:"id"`
	StageLogID              int64     `db:"stage_log_id" json:"stage_log_id"`
	Message                 string    `db:"message" json:"message"`
	IsError                 bool      `db:"is_error" json:"is_error"`
	DatetimeStageLogMessage time.Time `db:"datetime_stage_log_message" json:"datetime_stage_log_message"`
}

// TableName returns the database table name
func (StageLogMessage) TableName() string {
	return "stage_log_messages"
}

// OpenStageLog is the input for opening a stage log.
type OpenStageLog struct {
	TableID int64   `json:"table_id" validate:"required,gt=0"`
	StageID int64   `json:"stage_id" validate:"required,gt=0"`
	CDCKey  int64   `json:"cdc_key" validate:"gte=0"`
	RunID   *string `json:"run_id,omitempty" validate:"omitempty,max=256"`
}

// CloseStageLog is the terminal outcome of a stage log.
type CloseStageLog struct {
	Success          bool   `json:"success"`
	RecordsProcessed *int64 `json:"number_of_records_processed,omitempty" validate:"omitempty,gte=0"`
}

// AppendStageLogMessage is the input for appending a diagnostic message.
type AppendStageLogMessage struct {
	Message string `json:"message" validate:"required,max=1024"`
	IsError bool   `json:"is_error"`
}
