// Package stagelog drives the stage log state machine. A log is opened when a
// table's work starts in a stage, collects diagnostic messages while open and
// is closed exactly once with its outcome. It never reopens.
package stagelog

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// EventPublisher receives a notification after every persisted transition.
type EventPublisher interface {
	PublishStageLogEvent(ctx context.Context, evt models.StageLogEvent) error
}

// Manager validates transitions, persists them through a LogStore and
// announces them to an optional EventPublisher.
type Manager struct {
	store     repositories.LogStore
	publisher EventPublisher
	logger    ectologger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets the publisher notified after each transition.
func WithPublisher(p EventPublisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

func NewManager(store repositories.LogStore, logger ectologger.Logger, opts ...Option) *Manager {
	m := &Manager{store: store, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a log for one table in one stage.
func (m *Manager) Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error) {
	ctx, span := tracing.StartStageLogSpan(ctx, "Open", 0,
		tracing.TableIDKey.Int64(in.TableID),
		tracing.StageIDKey.Int64(in.StageID),
		tracing.CDCKeyKey.Int64(in.CDCKey),
	)
	defer span.End()

	if _, err := validation.Validate(in); err != nil {
		return models.StageLog{}, err
	}

	log, err := m.store.Open(ctx, in)
	if err != nil {
		tracing.Fail(span, err)
		return log, err
	}

	metrics.RecordStageLogOpened(log.StageID)
	m.publish(ctx, models.NewStageLogEvent(models.StageLogOpened, log))
	return log, nil
}

// AppendMessage attaches a message to an open log. A closed log rejects the
// message with Forbidden.
func (m *Manager) AppendMessage(ctx context.Context, id int64, message string, isError bool) (models.StageLogMessage, error) {
	ctx, span := tracing.StartStageLogSpan(ctx, "AppendMessage", id, attribute.Bool("is_error", isError))
	defer span.End()

	in, err := validation.Validate(models.AppendStageLogMessage{Message: message, IsError: isError})
	if err != nil {
		return models.StageLogMessage{}, err
	}

	msg, err := m.store.AppendMessage(ctx, id, in)
	if err != nil {
		tracing.Fail(span, err)
		return msg, err
	}

	metrics.RecordStageLogMessage(isError)
	m.publish(ctx, models.StageLogEvent{
		Type:       models.StageLogMessaged,
		StageLogID: id,
		Message:    msg.Message,
		IsError:    msg.IsError,
		Timestamp:  msg.DatetimeStageLogMessage,
	})
	return msg, nil
}

// Close records the outcome of an open log. Closing twice is Forbidden.
func (m *Manager) Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error) {
	ctx, span := tracing.StartStageLogSpan(ctx, "Close", id, attribute.Bool("success", in.Success))
	defer span.End()

	if _, err := validation.Validate(in); err != nil {
		return models.StageLog{}, err
	}

	log, err := m.store.Close(ctx, id, in)
	if err != nil {
		tracing.Fail(span, err)
		return log, err
	}

	metrics.RecordStageLogClosed(log.StageID, in.Success, log.RecordsProcessed())
	m.publish(ctx, models.NewStageLogEvent(models.StageLogClosed, log))
	return log, nil
}

// Delete removes a log together with its messages.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartStageLogSpan(ctx, "Delete", id)
	defer span.End()

	if err := m.store.Delete(ctx, id); err != nil {
		tracing.Fail(span, err)
		return err
	}
	m.publish(ctx, models.StageLogEvent{Type: models.StageLogDeleted, StageLogID: id})
	return nil
}

func (m *Manager) Get(ctx context.Context, id int64) (models.StageLog, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, filter repositories.StageLogFilter, offset, limit int) ([]models.StageLog, error) {
	offset, limit = repositories.NormalizePage(offset, limit)
	return m.store.List(ctx, filter, offset, limit)
}

// ListByCDCKey returns the first page of logs written under cdcKey.
func (m *Manager) ListByCDCKey(ctx context.Context, cdcKey int64) ([]models.StageLog, error) {
	return m.List(ctx, repositories.StageLogFilter{CDCKey: &cdcKey}, 0, repositories.MaxLimit)
}

// ListPromotable returns the logs of stageID and cdcKey that succeeded with
// at least one record.
func (m *Manager) ListPromotable(ctx context.Context, stageID, cdcKey int64) ([]models.StageLog, error) {
	return m.store.ListPromotable(ctx, stageID, cdcKey)
}

func (m *Manager) ListMessages(ctx context.Context, id int64) ([]models.StageLogMessage, error) {
	return m.store.ListMessages(ctx, id)
}

func (m *Manager) publish(ctx context.Context, evt models.StageLogEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishStageLogEvent(ctx, evt); err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"stage_log_id": evt.StageLogID,
			"event_type":   string(evt.Type),
		}).Warn("Failed to publish stage log event")
	}
}
