package models

import "time"

// StageLogEventType names a stage log transition.
type StageLogEventType string

const (
	StageLogOpened   StageLogEventType = "stage_log.opened"
	StageLogClosed   StageLogEventType = "stage_log.closed"
	StageLogMessaged StageLogEventType = "stage_log.message"
	StageLogDeleted  StageLogEventType = "stage_log.deleted"
)

// StageLogEvent is the notification emitted after a stage log transition has
// been persisted.
type StageLogEvent struct {
	Type       StageLogEventType `json:"type"`
	StageLogID int64             `json:"stage_log_id"`
	TableID    int64             `json:"table_id,omitempty"`
	StageID    int64             `json:"stage_id,omitempty"`
	CDCKey     int64             `json:"cdc_key,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	Success    *bool             `json:"success,omitempty"`
	Records    *int64            `json:"number_of_records_processed,omitempty"`
	Message    string            `json:"message,omitempty"`
	IsError    bool              `json:"is_error,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// NewStageLogEvent builds an event from the persisted state of log.
func NewStageLogEvent(t StageLogEventType, log StageLog) StageLogEvent {
	evt := StageLogEvent{
		Type:       t,
		StageLogID: log.ID,
		TableID:    log.TableID,
		StageID:    log.StageID,
		CDCKey:     log.CDCKey,
		Success:    log.Success,
		Records:    log.NumberOfRecordsProcessed,
		Timestamp:  time.Now().UTC(),
	}
	if log.RunID != nil {
		evt.RunID = *log.RunID
	}
	return evt
}
