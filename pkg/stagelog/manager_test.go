package stagelog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	logs     map[int64]*models.StageLog
	messages map[int64][]models.StageLogMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		logs:     map[int64]*models.StageLog{},
		messages: map[int64][]models.StageLogMessage{},
	}
}

func (s *memoryStore) Open(_ context.Context, in models.OpenStageLog) (models.StageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	log := &models.StageLog{
		ID:              s.nextID,
		TableID:         in.TableID,
		StageID:         in.StageID,
		CDCKey:          in.CDCKey,
		RunID:           in.RunID,
		DatetimeStarted: time.Now(),
		IsOpen:          true,
	}
	s.logs[log.ID] = log
	return *log, nil
}

func (s *memoryStore) Get(_ context.Context, id int64) (models.StageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return models.StageLog{}, errs.NotFound("stage_log with ID: %d not found.", id)
	}
	return *log, nil
}

func (s *memoryStore) Close(_ context.Context, id int64, in models.CloseStageLog) (models.StageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return models.StageLog{}, errs.NotFound("stage_log with ID: %d not found.", id)
	}
	if !log.IsOpen {
		return models.StageLog{}, errs.Forbidden("forbidden to close already closed stage_log with ID: %d.", id)
	}
	now := time.Now()
	success := in.Success
	log.IsOpen = false
	log.Success = &success
	log.NumberOfRecordsProcessed = in.RecordsProcessed
	log.DatetimeEnded = &now
	return *log, nil
}

func (s *memoryStore) AppendMessage(_ context.Context, id int64, in models.AppendStageLogMessage) (models.StageLogMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return models.StageLogMessage{}, errs.NotFound("stage_log with ID: %d not found.", id)
	}
	if !log.IsOpen {
		return models.StageLogMessage{}, errs.Forbidden("forbidden to add stage_log_messages to closed stage_log with ID: %d.", id)
	}
	msg := models.StageLogMessage{
		ID:                      int64(len(s.messages[id]) + 1),
		StageLogID:              id,
		Message:                 in.Message,
		IsError:                 in.IsError,
		DatetimeStageLogMessage: time.Now(),
	}
	s.messages[id] = append(s.messages[id], msg)
	return msg, nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[id]; !ok {
		return errs.NotFound("stage_log with ID: %d not found.", id)
	}
	delete(s.logs, id)
	delete(s.messages, id)
	return nil
}

func (s *memoryStore) List(_ context.Context, filter repositories.StageLogFilter, offset, limit int) ([]models.StageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StageLog
	for id := int64(1); id <= s.nextID; id++ {
		log, ok := s.logs[id]
		if !ok {
			continue
		}
		if filter.CDCKey != nil && log.CDCKey != *filter.CDCKey {
			continue
		}
		out = append(out, *log)
	}
	if offset >= len(out) {
		return nil, errs.NotFound("no stage_logs found.")
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ListPromotable(_ context.Context, stageID, cdcKey int64) ([]models.StageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StageLog
	for id := int64(1); id <= s.nextID; id++ {
		if log, ok := s.logs[id]; ok && log.StageID == stageID && log.CDCKey == cdcKey && log.Promotable() {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (s *memoryStore) ListMessages(_ context.Context, id int64) ([]models.StageLogMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StageLogMessage(nil), s.messages[id]...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StageLogEvent
	err    error
}

func (p *recordingPublisher) PublishStageLogEvent(_ context.Context, evt models.StageLogEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []models.StageLogEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.StageLogEventType, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func int64Ptr(v int64) *int64 { return &v }

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	m := NewManager(newMemoryStore(), nopLogger(), WithPublisher(pub))

	log, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 2, CDCKey: 1700000000})
	require.NoError(t, err)
	assert.True(t, log.IsOpen)
	assert.Equal(t, models.StageLogStateOpen, log.State())

	_, err = m.AppendMessage(ctx, log.ID, "read 42 rows", false)
	require.NoError(t, err)

	closed, err := m.Close(ctx, log.ID, models.CloseStageLog{Success: true, RecordsProcessed: int64Ptr(42)})
	require.NoError(t, err)
	assert.False(t, closed.IsOpen)
	assert.True(t, closed.Succeeded())
	assert.True(t, closed.Promotable())
	require.NotNil(t, closed.DatetimeEnded)

	assert.Equal(t, []models.StageLogEventType{
		models.StageLogOpened,
		models.StageLogMessaged,
		models.StageLogClosed,
	}, pub.types())
}

func TestManager_ClosedLogRejectsMutation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemoryStore(), nopLogger())

	log, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 1, CDCKey: 5})
	require.NoError(t, err)
	_, err = m.Close(ctx, log.ID, models.CloseStageLog{Success: false})
	require.NoError(t, err)

	_, err = m.AppendMessage(ctx, log.ID, "late", true)
	require.Error(t, err)
	assert.True(t, errs.IsForbidden(err))
	assert.Contains(t, err.Error(), "forbidden to add stage_log_messages to closed stage_log with ID: 1")

	_, err = m.Close(ctx, log.ID, models.CloseStageLog{Success: true})
	require.Error(t, err)
	assert.True(t, errs.IsForbidden(err))

	messages, err := m.ListMessages(ctx, log.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestManager_MissingLog(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemoryStore(), nopLogger())

	_, err := m.AppendMessage(ctx, 99, "hello", false)
	assert.True(t, errs.IsNotFound(err))

	_, err = m.Close(ctx, 99, models.CloseStageLog{Success: true})
	assert.True(t, errs.IsNotFound(err))

	assert.True(t, errs.IsNotFound(m.Delete(ctx, 99)))
}

func TestManager_Validation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemoryStore(), nopLogger())

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "missing table",
			run: func() error {
				_, err := m.Open(ctx, models.OpenStageLog{StageID: 1})
				return err
			},
		},
		{
			name: "run id too long",
			run: func() error {
				runID := strings.Repeat("r", models.MaxRunIDLength+1)
				_, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 1, RunID: &runID})
				return err
			},
		},
		{
			name: "empty message",
			run: func() error {
				_, err := m.AppendMessage(ctx, 1, "", false)
				return err
			},
		},
		{
			name: "message too long",
			run: func() error {
				_, err := m.AppendMessage(ctx, 1, strings.Repeat("m", models.MaxMessageLength+1), true)
				return err
			},
		},
		{
			name: "negative records",
			run: func() error {
				_, err := m.Close(ctx, 1, models.CloseStageLog{Success: true, RecordsProcessed: int64Ptr(-1)})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestManager_PublishFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := NewManager(newMemoryStore(), nopLogger(), WithPublisher(pub))

	log, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 1, CDCKey: 1})
	require.NoError(t, err)
	_, err = m.Close(ctx, log.ID, models.CloseStageLog{Success: true})
	require.NoError(t, err)
	assert.Len(t, pub.types(), 2)
}

func TestManager_DeleteCascadesMessages(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemoryStore(), nopLogger())

	log, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 1, CDCKey: 1})
	require.NoError(t, err)
	_, err = m.AppendMessage(ctx, log.ID, "one", false)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, log.ID))

	_, err = m.Get(ctx, log.ID)
	assert.True(t, errs.IsNotFound(err))
	messages, err := m.ListMessages(ctx, log.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestManager_ListByCDCKey(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemoryStore(), nopLogger())

	for _, key := range []int64{10, 20, 10} {
		_, err := m.Open(ctx, models.OpenStageLog{TableID: 1, StageID: 1, CDCKey: key})
		require.NoError(t, err)
	}

	logs, err := m.ListByCDCKey(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, log := range logs {
		assert.Equal(t, int64(10), log.CDCKey)
	}

	_, err = m.ListByCDCKey(ctx, 30)
	assert.True(t, errs.IsNotFound(err))
}
