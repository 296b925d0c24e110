package timetable_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

var now = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type notifierMock struct {
	mu     sync.Mutex
	events []timetable.ChangeEvent
	err    error
}

func (n *notifierMock) Notify(_ context.Context, evt timetable.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

func (n *notifierMock) Events() []timetable.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]timetable.ChangeEvent(nil), n.events...)
}

type metricsMock struct {
	mu         sync.Mutex
	ops        map[string]int
	failures   map[string]int
	detected   int
	lastReport timetable.Report
}

func newMetricsMock() *metricsMock {
	return &metricsMock{ops: make(map[string]int), failures: make(map[string]int)}
}

func (m *metricsMock) MutationDone(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
	if err != nil {
		m.failures[op]++
	}
}

func (m *metricsMock) ConflictsDetected(_ string, report timetable.Report, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected++
	m.lastReport = report
}

type fixture struct {
	db       *inmemdb.DB
	repo     timetable.Repository
	store    *timetable.CatalogStore
	engine   *timetable.Engine
	notifier *notifierMock
	metrics  *metricsMock
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewTimetableRepository(db)
	testutil.SeedSchool(t, repo)

	reset := timetable.MockClock(now)
	t.Cleanup(reset)

	f := fixture{
		db:       db,
		repo:     repo,
		notifier: new(notifierMock),
		metrics:  newMetricsMock(),
	}
	logger := logsvc.NewNopLogger()
	f.store = timetable.NewCatalogStore(repo, nil, logger)
	f.engine = timetable.NewEngine(repo, f.notifier, f.metrics, logger)
	return f
}

func (f fixture) editContext(t *testing.T, sectionID string, canEdit bool) timetable.EditContext {
	t.Helper()
	ec, _, err := f.store.EditContext(context.Background(), testutil.SchoolID, sectionID, canEdit)
	if err != nil {
		t.Fatalf("EditContext() failed: %v", err)
	}
	return ec
}

func (f fixture) assign(t *testing.T, ec timetable.EditContext, day timetable.Weekday, periodID, subjectID string) timetable.Entry {
	t.Helper()
	e, err := f.engine.AssignSlot(context.Background(), ec, timetable.AssignRequest{Day: day, PeriodID: periodID, SubjectID: subjectID})
	if err != nil {
		t.Fatalf("AssignSlot() failed: %v", err)
	}
	return e
}

func (f fixture) sectionEntries(t *testing.T, sectionID string) []timetable.Entry {
	t.Helper()
	entries, err := f.repo.EntriesForSection(context.Background(), sectionID)
	if err != nil {
		t.Fatalf("EntriesForSection() failed: %v", err)
	}
	return entries
}
