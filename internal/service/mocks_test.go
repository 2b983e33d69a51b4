package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// sentMail is one recorded notification.
type sentMail struct {
	To, Subject, Body string
}

// mockNotifier records notifications and returns err.
type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockNotifier) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return m.err
}

func (m *mockNotifier) getSent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMail, len(m.sent))
	copy(cp, m.sent)
	return cp
}

// publishedEvent is one recorded live-tail event.
type publishedEvent struct {
	Type, TenantID string
	Data           any
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) Publish(eventType, tenantID string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Type: eventType, TenantID: tenantID, Data: data})
}

func (m *mockPublisher) getEvents() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]publishedEvent, len(m.events))
	copy(cp, m.events)
	return cp
}

// mockEnqueuer records anomaly jobs.
type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []AnomalyJob
}

func (m *mockEnqueuer) Enqueue(job AnomalyJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockEnqueuer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// syncEnqueuer runs each check inline so tests can observe its effect.
type syncEnqueuer struct {
	checker AnomalyChecker
}

func (s syncEnqueuer) Enqueue(job AnomalyJob) {
	_, _ = s.checker.Check(context.Background(), job.TenantID)
}

// mockChecker records checked tenants.
type mockChecker struct {
	mu      sync.Mutex
	tenants []string
	sent    bool
	err     error
}

func (m *mockChecker) Check(_ context.Context, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantID)
	return m.sent, m.err
}

func (m *mockChecker) getTenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.tenants))
	copy(cp, m.tenants)
	return cp
}

// mockLogStore returns configured responses.
type mockLogStore struct {
	mu    sync.Mutex
	calls []string

	countLogs     func(ctx context.Context, tenantID string, filter query.Expr) (int64, error)
	findLogs      func(ctx context.Context, tenantID string, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error)
	insertLog     func(ctx context.Context, entry *models.LogEntry) error
	getLog        func(ctx context.Context, tenantID, id string) (*models.LogEntry, error)
	summarizeLogs func(ctx context.Context, tenantID string) ([]models.EventTypeCount, error)
}

func (m *mockLogStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockLogStore) CountLogs(ctx context.Context, tenantID string, filter query.Expr) (int64, error) {
	m.record("CountLogs")
	return m.countLogs(ctx, tenantID, filter)
}

func (m *mockLogStore) FindLogs(ctx context.Context, tenantID string, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error) {
	m.record("FindLogs")
	return m.findLogs(ctx, tenantID, filter, opts)
}

func (m *mockLogStore) InsertLog(ctx context.Context, entry *models.LogEntry) error {
	m.record("InsertLog")
	return m.insertLog(ctx, entry)
}

func (m *mockLogStore) GetLog(ctx context.Context, tenantID, id string) (*models.LogEntry, error) {
	m.record("GetLog")
	return m.getLog(ctx, tenantID, id)
}

func (m *mockLogStore) SummarizeLogs(ctx context.Context, tenantID string) ([]models.EventTypeCount, error) {
	m.record("SummarizeLogs")
	return m.summarizeLogs(ctx, tenantID)
}
