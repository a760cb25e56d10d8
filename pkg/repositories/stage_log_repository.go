package repositories

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	stageLogsTable        = models.StageLog{}.TableName()
	stageLogMessagesTable = models.StageLogMessage{}.TableName()

	stageLogStruct        = database.NewStruct(new(models.StageLog))
	stageLogMessageStruct = database.NewStruct(new(models.StageLogMessage))
)

// StageLogRepository persists stage logs and their messages. Transitions are
// single conditional statements so that concurrent callers cannot observe or
// create a half-closed log.
type StageLogRepository struct {
	*Repository
}

func NewStageLogRepository(db database.DB, logger ectologger.Logger) *StageLogRepository {
	return &StageLogRepository{Repository: NewRepository(db, logger)}
}

func stageLogNotFound(id int64) error {
	return errs.NotFound("stage_log with ID: %d not found.", id)
}

// Open inserts a log in the open state.
func (r *StageLogRepository) Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.Open")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(stageLogsTable).
		Cols("table_id", "stage_id", "cdc_key", "run_id", "datetime_started", "is_open").
		Values(in.TableID, in.StageID, in.CDCKey, in.RunID, database.Now(), true).
		Returning("*")

	query, args := ib.Build()
	var log models.StageLog
	if err := r.Q(ctx).QueryRowxContext(ctx, query, args...).StructScan(&log); err != nil {
		return log, r.fail(ctx, err, "stage_log", "failed to open stage_log", map[string]any{
			"table_id": in.TableID,
			"stage_id": in.StageID,
			"cdc_key":  in.CDCKey,
		})
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"stage_log_id": log.ID,
		"table_id":     log.TableID,
		"cdc_key":      log.CDCKey,
	}).Debugf("Opened %s", stageLogsTable)
	return log, nil
}

// Get returns a stage log by id.
func (r *StageLogRepository) Get(ctx context.Context, id int64) (models.StageLog, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.Get")
	defer span.End()

	sb := stageLogStruct.SelectFrom(stageLogsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var log models.StageLog
	err := r.Q(ctx).GetContext(ctx, &log, query, args...)
	if isNoRows(err) {
		return log, stageLogNotFound(id)
	}
	if err != nil {
		return log, r.fail(ctx, err, "stage_log", "failed to get stage_log", map[string]any{
			"stage_log_id": id,
		})
	}
	return log, nil
}

// closedOrMissing explains why a conditional transition on id matched no row.
func (r *StageLogRepository) closedOrMissing(ctx context.Context, id int64, forbidden string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return errs.Forbidden("%s with ID: %d.", forbidden, id)
}

// Close moves an open log to closed with its outcome. Closing an already
// closed log is Forbidden.
func (r *StageLogRepository) Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.Close")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(stageLogsTable).
		Set(
			ub.Assign("is_open", false),
			ub.Assign("success", in.Success),
			ub.Assign("number_of_records_processed", in.RecordsProcessed),
			ub.Assign("datetime_ended", database.Now()),
		).
		Where(ub.Equal("id", id), ub.Equal("is_open", true))
	ub.Returning("*")

	query, args := ub.Build()
	var log models.StageLog
	err := r.Q(ctx).QueryRowxContext(ctx, query, args...).StructScan(&log)
	if isNoRows(err) {
		return log, r.closedOrMissing(ctx, id, "forbidden to close already closed stage_log")
	}
	if err != nil {
		return log, r.fail(ctx, err, "stage_log", "failed to close stage_log", map[string]any{
			"stage_log_id": id,
		})
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"stage_log_id": id,
		"success":      in.Success,
	}).Debugf("Closed %s", stageLogsTable)
	return log, nil
}

const appendMessageQuery = `
	INSERT INTO stage_log_messages (stage_log_id, message, is_error, datetime_stage_log_message)
	SELECT id, $2::varchar, $3::boolean, NOW()
	FROM stage_logs
	WHERE id = $1 AND is_open
	RETURNING *`

// AppendMessage attaches a message to an open log. Appending to a closed log
// is Forbidden.
func (r *StageLogRepository) AppendMessage(ctx context.Context, id int64, in models.AppendStageLogMessage) (models.StageLogMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.AppendMessage")
	defer span.End()

	var message models.StageLogMessage
	err := r.Q(ctx).QueryRowxContext(ctx, appendMessageQuery, id, in.Message, in.IsError).StructScan(&message)
	if isNoRows(err) {
		return message, r.closedOrMissing(ctx, id, "forbidden to add stage_log_messages to closed stage_log")
	}
	if err != nil {
		return message, r.fail(ctx, err, "stage_log_message", "failed to add stage_log_message", map[string]any{
			"stage_log_id": id,
		})
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"stage_log_id": id,
		"is_error":     in.IsError,
	}).Debugf("Created %s", stageLogMessagesTable)
	return message, nil
}

// Delete removes a log. Its messages are removed with it.
func (r *StageLogRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.Delete")
	defer span.End()

	dlb := database.NewDeleteBuilder()
	dlb.DeleteFrom(stageLogsTable).Where(dlb.Equal("id", id))

	query, args := dlb.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, "stage_log", "failed to delete stage_log", map[string]any{
			"stage_log_id": id,
		})
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.fail(ctx, err, "stage_log", "failed to delete stage_log", map[string]any{
			"stage_log_id": id,
		})
	}
	if affected == 0 {
		return stageLogNotFound(id)
	}

	r.logger.WithContext(ctx).Debugf("Deleted %s %d", stageLogsTable, id)
	return nil
}

// StageLogFilter narrows a stage log listing. Zero values do not filter.
type StageLogFilter struct {
	TableID *int64
	StageID *int64
	CDCKey  *int64
	IsOpen  *bool
	Success *bool
	// MinRecords keeps logs that processed more than this many records.
	MinRecords *int64
}

// List returns one page of logs matching filter, in id order. An empty page
// is NotFound.
func (r *StageLogRepository) List(ctx context.Context, filter StageLogFilter, offset, limit int) ([]models.StageLog, error) {
	logs, err := r.find(ctx, "List", filter, &offset, &limit)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, errs.NotFound("no %s found.", stageLogsTable)
	}
	return logs, nil
}

// ListPromotable returns the closed, successful logs of stage and cdcKey that
// processed at least one record.
func (r *StageLogRepository) ListPromotable(ctx context.Context, stageID, cdcKey int64) ([]models.StageLog, error) {
	success := true
	minRecords := int64(0)
	return r.find(ctx, "ListPromotable", StageLogFilter{
		StageID:    &stageID,
		CDCKey:     &cdcKey,
		Success:    &success,
		MinRecords: &minRecords,
	}, nil, nil)
}

func (r *StageLogRepository) find(ctx context.Context, op string, filter StageLogFilter, offset, limit *int) ([]models.StageLog, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository."+op)
	defer span.End()

	sb := stageLogStruct.SelectFrom(stageLogsTable)
	if filter.TableID != nil {
		sb.Where(sb.Equal("table_id", *filter.TableID))
	}
	if filter.StageID != nil {
		sb.Where(sb.Equal("stage_id", *filter.StageID))
	}
	if filter.CDCKey != nil {
		sb.Where(sb.Equal("cdc_key", *filter.CDCKey))
	}
	if filter.IsOpen != nil {
		sb.Where(sb.Equal("is_open", *filter.IsOpen))
	}
	if filter.Success != nil {
		sb.Where(sb.Equal("success", *filter.Success))
	}
	if filter.MinRecords != nil {
		sb.Where(sb.GreaterThan("number_of_records_processed", *filter.MinRecords))
	}
	sb.OrderBy("id").Asc()
	if offset != nil && limit != nil {
		o, l := NormalizePage(*offset, *limit)
		sb.Page(o, l)
	}

	query, args := sb.Build()
	logs := []models.StageLog{}
	if err := r.Q(ctx).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, r.fail(ctx, err, "stage_log", fmt.Sprintf("failed to list %s", stageLogsTable), nil)
	}
	return logs, nil
}

// ListMessages returns the messages of a log oldest first.
func (r *StageLogRepository) ListMessages(ctx context.Context, id int64) ([]models.StageLogMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "StageLogRepository.ListMessages")
	defer span.End()

	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	sb := stageLogMessageStruct.SelectFrom(stageLogMessagesTable)
	sb.Where(sb.Equal("stage_log_id", id))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	messages := []models.StageLogMessage{}
	if err := r.Q(ctx).SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, r.fail(ctx, err, "stage_log_message", "failed to list stage_log_messages", map[string]any{
			"stage_log_id": id,
		})
	}
	return messages, nil
}
