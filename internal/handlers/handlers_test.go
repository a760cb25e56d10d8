package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/logger"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestration"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func newTestEcho() (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger.Nop())
	e.Use(middleware.Context())
	return e, e.Group("/api/v1")
}

func do(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type memorySources struct {
	rows    []models.Source
	deleted map[int64]bool
}

func (m *memorySources) Create(_ context.Context, in models.SourceCreate) (models.Source, error) {
	if in.Name == "" {
		return models.Source{}, errs.Validation("name is required")
	}
	for _, s := range m.rows {
		if s.Name == in.Name {
			return models.Source{}, errs.ConstraintViolation("source violates unique constraint sources_name_key")
		}
	}
	s := models.Source{Base: models.Base{ID: int64(len(m.rows) + 1), IsActive: true}, Name: in.Name}
	m.rows = append(m.rows, s)
	return s, nil
}

func (m *memorySources) GetByID(_ context.Context, id int64) (models.Source, error) {
	if id < 1 || int(id) > len(m.rows) {
		return models.Source{}, errs.NotFound("source with ID: %d not found.", id)
	}
	return m.rows[id-1], nil
}

func (m *memorySources) List(_ context.Context, offset, limit int) ([]models.Source, error) {
	if offset >= len(m.rows) {
		return nil, errs.NotFound("no sources found.")
	}
	end := len(m.rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return m.rows[offset:end], nil
}

func (m *memorySources) Update(ctx context.Context, id int64, patch models.SourceUpdate) (models.Source, error) {
	s, err := m.GetByID(ctx, id)
	if err != nil {
		return s, err
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	m.rows[id-1] = s
	return s, nil
}

func (m *memorySources) Delete(ctx context.Context, id int64, hard bool) error {
	if _, err := m.GetByID(ctx, id); err != nil {
		return err
	}
	m.deleted[id] = hard
	return nil
}

func TestCatalogHandler_CRUD(t *testing.T) {
	e, api := newTestEcho()
	repo := &memorySources{deleted: map[int64]bool{}}
	NewCatalogHandler[models.Source, models.SourceCreate, models.SourceUpdate]("/sources", repo).RegisterRoutes(api)

	rec := do(t, e, http.MethodPost, "/api/v1/sources", map[string]any{"name": "S1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)

	rec = do(t, e, http.MethodPost, "/api/v1/sources", map[string]any{"name": "S1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/sources", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/sources/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/sources/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/sources/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPatch, "/api/v1/sources/1", map[string]any{"name": "S2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"S2"`)

	rec = do(t, e, http.MethodGet, "/api/v1/sources?offset=0&limit=10", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/sources?offset=5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodDelete, "/api/v1/sources/1?hard=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, repo.deleted[1])

	rec = do(t, e, http.MethodDelete, "/api/v1/sources/1?hard=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeStageLogs struct {
	logs     map[int64]models.StageLog
	messages map[int64][]models.StageLogMessage
	filter   repositories.StageLogFilter
	byCDC    int64
}

func newFakeStageLogs() *fakeStageLogs {
	return &fakeStageLogs{logs: map[int64]models.StageLog{}, messages: map[int64][]models.StageLogMessage{}}
}

func (f *fakeStageLogs) get(id int64) (models.StageLog, error) {
	log, ok := f.logs[id]
	if !ok {
		return log, errs.NotFound("stage_log with ID: %d not found.", id)
	}
	return log, nil
}

func (f *fakeStageLogs) Open(_ context.Context, in models.OpenStageLog) (models.StageLog, error) {
	if in.TableID <= 0 {
		return models.StageLog{}, errs.Validation("table_id is required")
	}
	log := models.StageLog{ID: int64(len(f.logs) + 1), TableID: in.TableID, StageID: in.StageID, CDCKey: in.CDCKey, IsOpen: true}
	f.logs[log.ID] = log
	return log, nil
}

func (f *fakeStageLogs) Get(_ context.Context, id int64) (models.StageLog, error) {
	return f.get(id)
}

func (f *fakeStageLogs) List(_ context.Context, filter repositories.StageLogFilter, _, _ int) ([]models.StageLog, error) {
	f.filter = filter
	return []models.StageLog{}, nil
}

func (f *fakeStageLogs) ListByCDCKey(_ context.Context, cdcKey int64) ([]models.StageLog, error) {
	f.byCDC = cdcKey
	return []models.StageLog{}, nil
}

func (f *fakeStageLogs) Close(_ context.Context, id int64, in models.CloseStageLog) (models.StageLog, error) {
	log, err := f.get(id)
	if err != nil {
		return log, err
	}
	if !log.IsOpen {
		return log, errs.Forbidden("forbidden to close already closed stage_log with ID: %d.", id)
	}
	log.IsOpen = false
	log.Success = &in.Success
	f.logs[id] = log
	return log, nil
}

func (f *fakeStageLogs) Delete(_ context.Context, id int64) error {
	if _, err := f.get(id); err != nil {
		return err
	}
	delete(f.logs, id)
	return nil
}

func (f *fakeStageLogs) AppendMessage(_ context.Context, id int64, message string, isError bool) (models.StageLogMessage, error) {
	log, err := f.get(id)
	if err != nil {
		return models.StageLogMessage{}, err
	}
	if !log.IsOpen {
		return models.StageLogMessage{}, errs.Forbidden("forbidden to add stage_log_messages to closed stage_log with ID: %d.", id)
	}
	msg := models.StageLogMessage{StageLogID: id, Message: message, IsError: isError}
	f.messages[id] = append(f.messages[id], msg)
	return msg, nil
}

func (f *fakeStageLogs) ListMessages(_ context.Context, id int64) ([]models.StageLogMessage, error) {
	if _, err := f.get(id); err != nil {
		return nil, err
	}
	return f.messages[id], nil
}

func TestStageLogHandler_Lifecycle(t *testing.T) {
	e, api := newTestEcho()
	logs := newFakeStageLogs()
	NewStageLogHandler(logs).RegisterRoutes(api)

	rec := do(t, e, http.MethodPost, "/api/v1/stage-logs", map[string]any{"table_id": 7, "stage_id": 1, "cdc_key": 100})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/stage-logs/1/messages", map[string]any{"message": "started", "is_error": false})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/stage-logs/1/close", map[string]any{"success": true, "number_of_records_processed": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(t, e, http.MethodPost, "/api/v1/stage-logs/1/close", map[string]any{"success": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/stage-logs/1/messages", map[string]any{"message": "late"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/stage-logs/1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []models.StageLogMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	assert.Len(t, messages, 1)

	rec = do(t, e, http.MethodDelete, "/api/v1/stage-logs/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/stage-logs/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStageLogHandler_ListRouting(t *testing.T) {
	e, api := newTestEcho()
	logs := newFakeStageLogs()
	NewStageLogHandler(logs).RegisterRoutes(api)

	rec := do(t, e, http.MethodGet, "/api/v1/stage-logs?cdc_key=1700000000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1700000000), logs.byCDC)

	rec = do(t, e, http.MethodGet, "/api/v1/stage-logs?cdc_key=5&stage_id=2&success=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, logs.filter.StageID)
	assert.Equal(t, int64(2), *logs.filter.StageID)
	require.NotNil(t, logs.filter.Success)
	assert.True(t, *logs.filter.Success)

	rec = do(t, e, http.MethodGet, "/api/v1/stage-logs?cdc_key=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeOrchestrator struct {
	enrichKey int64
	err       error
}

func (f *fakeOrchestrator) Ingest(context.Context) (*orchestration.PassResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orchestration.PassResult{Kind: orchestration.PassIngest, CDCKey: 10}, nil
}

func (f *fakeOrchestrator) Enrich(_ context.Context, cdcKey int64) (*orchestration.PassResult, error) {
	f.enrichKey = cdcKey
	return &orchestration.PassResult{Kind: orchestration.PassEnrich, CDCKey: cdcKey}, nil
}

func (f *fakeOrchestrator) Run(context.Context) (*orchestration.RunResult, error) {
	return &orchestration.RunResult{CDCKey: 10}, nil
}

func TestOrchestrationHandler(t *testing.T) {
	e, api := newTestEcho()
	o := &fakeOrchestrator{}
	NewOrchestrationHandler(o).RegisterRoutes(api)

	rec := do(t, e, http.MethodPost, "/api/v1/orchestration/ingest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"ingest"`)

	rec = do(t, e, http.MethodPost, "/api/v1/orchestration/enrich", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/orchestration/enrich?cdc_key=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), o.enrichKey)

	rec = do(t, e, http.MethodPost, "/api/v1/orchestration/run", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	o.err = errs.PreconditionFailed("stage 'raw' does not exist")
	rec = do(t, e, http.MethodPost, "/api/v1/orchestration/ingest", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "stage 'raw' does not exist")
}

func TestNewRouter_ServesMetricsAndHealth(t *testing.T) {
	e := NewRouter(logger.Nop(), RouterDeps{ServiceName: "fern-test", Orchestrator: &fakeOrchestrator{}})

	rec := do(t, e, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/orchestration/run", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
