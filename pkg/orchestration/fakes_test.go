package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeCatalog struct {
	mu      sync.Mutex
	stages  []models.Stage
	sources []models.Source
	tables  []models.Table
	// conflictOnce makes the next CreateTable insert the row and then report
	// a conflict, as if another worker had won the race.
	conflictOnce bool
	creates      int
	// unreadable makes GetTable fail for the given table ids.
	unreadable map[int64]bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{unreadable: map[int64]bool{}}
}

func (c *fakeCatalog) deactivateStage(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.stages {
		if c.stages[i].ID == id {
			c.stages[i].IsActive = false
		}
	}
}

func (c *fakeCatalog) addStage(name string) models.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := models.Stage{Base: models.Base{ID: int64(len(c.stages) + 1), IsActive: true}, Name: name}
	c.stages = append(c.stages, s)
	return s
}

func (c *fakeCatalog) addSource(name string) models.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := models.Source{Base: models.Base{ID: int64(len(c.sources) + 1), IsActive: true}, Name: name}
	c.sources = append(c.sources, s)
	return s
}

func (c *fakeCatalog) addTable(name string, stage models.Stage, source models.Source) models.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertTable(models.TableCreate{Name: name, StageID: stage.ID, SourceID: source.ID})
}

func (c *fakeCatalog) insertTable(in models.TableCreate) models.Table {
	t := models.Table{
		Base:           models.Base{ID: int64(len(c.tables) + 1), IsActive: true, DatetimeCreated: time.Now()},
		Name:           in.Name,
		Description:    in.Description,
		SourceLocation: in.SourceLocation,
		StageID:        in.StageID,
		SourceID:       in.SourceID,
	}
	c.tables = append(c.tables, t)
	return t
}

func (c *fakeCatalog) tablesIn(stageID int64) []models.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Table
	for _, t := range c.tables {
		if t.StageID == stageID {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeCatalog) GetStageByName(_ context.Context, name string) (models.Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.stages {
		if s.Name == name {
			return s, nil
		}
	}
	return models.Stage{}, errs.NotFound("stage '%s' does not exist", name)
}

func (c *fakeCatalog) GetSource(_ context.Context, id int64) (models.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Source{}, errs.NotFound("source with ID: %d not found.", id)
}

func (c *fakeCatalog) ListTablesByStage(_ context.Context, stageID int64) ([]models.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.Table{}
	for _, t := range c.tables {
		if t.StageID == stageID && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetTable(_ context.Context, id int64) (models.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unreadable[id] {
		return models.Table{}, errs.Internal("failed to get table")
	}
	for _, t := range c.tables {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Table{}, errs.NotFound("table with ID: %d not found.", id)
}

func (c *fakeCatalog) FindTable(_ context.Context, stageID, sourceID int64, name string) (models.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(stageID, sourceID, name)
}

func (c *fakeCatalog) find(stageID, sourceID int64, name string) (models.Table, error) {
	for _, t := range c.tables {
		if t.StageID == stageID && t.SourceID == sourceID && t.Name == name {
			return t, nil
		}
	}
	return models.Table{}, errs.NotFound("table matching name=%s not found.", name)
}

func (c *fakeCatalog) CreateTable(_ context.Context, in models.TableCreate) (models.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	if c.conflictOnce {
		c.conflictOnce = false
		c.insertTable(in)
		return models.Table{}, errs.ConstraintViolation("table already exists")
	}
	if _, err := c.find(in.StageID, in.SourceID, in.Name); err == nil {
		return models.Table{}, errs.ConstraintViolation("table already exists")
	}
	return c.insertTable(in), nil
}

type fakeLogs struct {
	mu       sync.Mutex
	logs     []models.StageLog
	messages map[int64][]models.StageLogMessage
	// failOpenFor makes Open fail for the given table ids.
	failOpenFor map[int64]bool
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{messages: map[int64][]models.StageLogMessage{}, failOpenFor: map[int64]bool{}}
}

func (l *fakeLogs) Open(ctx context.Context, in models.OpenStageLog) (models.StageLog, error) {
	if err := ctx.Err(); err != nil {
		return models.StageLog{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOpenFor[in.TableID] {
		return models.StageLog{}, errs.Internal("failed to open stage_log")
	}
	log := models.StageLog{
		ID:              int64(len(l.logs) + 1),
		TableID:         in.TableID,
		StageID:         in.StageID,
		CDCKey:          in.CDCKey,
		RunID:           in.RunID,
		DatetimeStarted: time.Now(),
		IsOpen:          true,
	}
	l.logs = append(l.logs, log)
	return log, nil
}

func (l *fakeLogs) AppendMessage(ctx context.Context, id int64, message string, isError bool) (models.StageLogMessage, error) {
	if err := ctx.Err(); err != nil {
		return models.StageLogMessage{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.logs[id-1].IsOpen {
		return models.StageLogMessage{}, errs.Forbidden("forbidden to add stage_log_messages to closed stage_log with ID: %d.", id)
	}
	msg := models.StageLogMessage{StageLogID: id, Message: message, IsError: isError, DatetimeStageLogMessage: time.Now()}
	l.messages[id] = append(l.messages[id], msg)
	return msg, nil
}

func (l *fakeLogs) Close(ctx context.Context, id int64, in models.CloseStageLog) (models.StageLog, error) {
	if err := ctx.Err(); err != nil {
		return models.StageLog{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	log := &l.logs[id-1]
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

func (l *fakeLogs) ListPromotable(_ context.Context, stageID, cdcKey int64) ([]models.StageLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.StageLog{}
	for _, log := range l.logs {
		if log.StageID == stageID && log.CDCKey == cdcKey && log.Promotable() {
			out = append(out, log)
		}
	}
	return out, nil
}

func (l *fakeLogs) all() []models.StageLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.StageLog(nil), l.logs...)
}

func (l *fakeLogs) inStage(stageID int64) []models.StageLog {
	var out []models.StageLog
	for _, log := range l.all() {
		if log.StageID == stageID {
			out = append(out, log)
		}
	}
	return out
}

func (l *fakeLogs) messagesFor(id int64) []models.StageLogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.StageLogMessage(nil), l.messages[id]...)
}

// scriptedMover answers per table name. Unknown names succeed with one row.
type scriptedMover struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	errors   map[string]error
	panics   map[string]bool
	// block makes calls for the named table wait until ctx is done.
	block    map[string]bool
	started  chan string
	calls    []string
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func newScriptedMover() *scriptedMover {
	return &scriptedMover{
		outcomes: map[string]Outcome{},
		errors:   map[string]error{},
		panics:   map[string]bool{},
		block:    map[string]bool{},
	}
}

func (m *scriptedMover) Ingest(ctx context.Context, ref TableRef, runKey int64) (Outcome, error) {
	return m.call(ctx, "ingest", ref)
}

func (m *scriptedMover) Enrich(ctx context.Context, ref TableRef, runKey int64) (Outcome, error) {
	return m.call(ctx, "enrich", ref)
}

func (m *scriptedMover) call(ctx context.Context, op string, ref TableRef) (Outcome, error) {
	name := ref.Table.Name
	m.mu.Lock()
	m.calls = append(m.calls, op+":"+name)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	outcome, hasOutcome := m.outcomes[name]
	err := m.errors[name]
	panics := m.panics[name]
	block := m.block[name]
	started := m.started
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if started != nil {
		started <- name
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if block {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}
	if panics {
		panic("mover exploded")
	}
	if err != nil {
		return Outcome{}, err
	}
	if !hasOutcome {
		outcome = Outcome{Success: true, Rows: 1}
	}
	return outcome, nil
}

func (m *scriptedMover) callList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type fixedAllocator struct {
	key int64
}

func (a *fixedAllocator) Next(_ context.Context) (int64, error) {
	return a.key, nil
}

type recordingLineage struct {
	mu    sync.Mutex
	edges [][2]int64
}

func (r *recordingLineage) RecordPromotion(_ context.Context, from, to models.Table, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, [2]int64{from.ID, to.ID})
	return nil
}

type busyLocker struct{ err error }

func (l busyLocker) WithLock(_ context.Context, _ string, _ time.Duration, _ func(ctx context.Context) error) error {
	return l.err
}
