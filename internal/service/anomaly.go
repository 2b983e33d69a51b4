package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/metrics"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// Anomaly detection defaults.
const (
	DefaultAnomalyThreshold = 5
	DefaultAnomalyWindow    = 60 * time.Second
)

// AlertSubject is the subject line of burst-delete notifications.
const AlertSubject = "Suspicious Activity Detected"

// AnomalyJob asks for the burst-delete check of one tenant.
type AnomalyJob struct {
	TenantID string
	Action   string
}

// Alert is published to live-tail subscribers when a check trips.
type Alert struct {
	OrganizationID string    `json:"organizationId"`
	Count          int64     `json:"count"`
	Threshold      int64     `json:"threshold"`
	WindowSeconds  int64     `json:"windowSeconds"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// AnomalyDetector counts recent DELETE entries and notifies the tenant contact
// when the count exceeds the threshold.
type AnomalyDetector struct {
	logs      domain.LogStore
	orgs      domain.OrganizationStore
	notifier  Notifier
	publisher Publisher
	threshold int64
	window    time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// NewAnomalyDetector creates an AnomalyDetector. Non-positive threshold or
// window select the defaults.
func NewAnomalyDetector(
	logs domain.LogStore, orgs domain.OrganizationStore, notifier Notifier, publisher Publisher,
	threshold int, window time.Duration, log *logrus.Logger,
) *AnomalyDetector {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	if window <= 0 {
		window = DefaultAnomalyWindow
	}

	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &AnomalyDetector{
		logs:      logs,
		orgs:      orgs,
		notifier:  notifier,
		publisher: publisher,
		threshold: int64(threshold),
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

// Check runs the burst-delete rule for tenantID. It reports whether an alert
// was sent.
func (d *AnomalyDetector) Check(ctx context.Context, tenantID string) (bool, error) {
	now := d.now().UTC()

	filter := query.And{
		query.TenantClause(tenantID),
		query.Eq(query.FieldAction, models.DeleteAction),
		query.Since(now.Add(-d.window)),
	}

	count, err := d.logs.CountLogs(ctx, tenantID, filter)
	if err != nil {
		return false, fmt.Errorf("counting recent deletes: %w", err)
	}

	if count <= d.threshold {
		return false, nil
	}

	org, err := d.orgs.GetOrganization(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("loading organization: %w", err)
	}

	body := fmt.Sprintf(
		"High number of DELETE events detected for organization: %s. Count: %d in %s. Organization ID: %s",
		org.Name, count, windowText(d.window), org.ID,
	)

	if err := d.notifier.Send(ctx, org.Email, AlertSubject, body); err != nil {
		return false, fmt.Errorf("sending alert: %w", err)
	}

	d.publisher.Publish(EventAlertTriggered, tenantID, Alert{
		OrganizationID: tenantID,
		Count:          count,
		Threshold:      d.threshold,
		WindowSeconds:  int64(d.window / time.Second),
		DetectedAt:     now,
	})

	d.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"count":     count,
	}).Warn("burst delete alert sent")

	return true, nil
}

// windowText renders the detection window for alert bodies.
func windowText(w time.Duration) string {
	switch {
	case w == time.Minute:
		return "last minute"
	case w == time.Hour:
		return "last hour"
	case w%time.Hour == 0:
		return fmt.Sprintf("last %d hours", w/time.Hour)
	case w%time.Minute == 0:
		return fmt.Sprintf("last %d minutes", w/time.Minute)
	default:
		return "last " + w.String()
	}
}

// AnomalyChecker runs the check for a tenant.
type AnomalyChecker interface {
	Check(ctx context.Context, tenantID string) (bool, error)
}

// AnomalyWorker buffers anomaly checks and runs them on a single goroutine so
// ingestion never waits on counting or mail delivery.
type AnomalyWorker struct {
	checker AnomalyChecker
	log     *logrus.Logger
	jobs    chan AnomalyJob
	timeout time.Duration
}

// NewAnomalyWorker creates an AnomalyWorker with the given queue capacity.
func NewAnomalyWorker(checker AnomalyChecker, log *logrus.Logger, queueSize int) *AnomalyWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &AnomalyWorker{
		checker: checker,
		log:     log,
		jobs:    make(chan AnomalyJob, queueSize),
		timeout: 30 * time.Second,
	}
}

// Enqueue adds a check. Non-blocking; drops the job if the queue is full.
func (w *AnomalyWorker) Enqueue(job AnomalyJob) {
	select {
	case w.jobs <- job:
		metrics.AnomalyQueueDepth.Set(float64(len(w.jobs)))
	default:
		metrics.AlertsDispatched.WithLabelValues("dropped").Inc()
		w.log.WithField("tenant_id", job.TenantID).Warn("anomaly queue full, dropping check")
	}
}

// QueueDepth returns the number of pending checks.
func (w *AnomalyWorker) QueueDepth() int {
	return len(w.jobs)
}

// Run processes checks until the context is cancelled, then drains remaining jobs.
func (w *AnomalyWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *AnomalyWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *AnomalyWorker) process(job AnomalyJob) {
	metrics.AnomalyQueueDepth.Set(float64(len(w.jobs)))

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	sent, err := w.checker.Check(ctx, job.TenantID)
	switch {
	case err != nil:
		metrics.AlertsDispatched.WithLabelValues("failed").Inc()
		w.log.WithError(err).WithField("tenant_id", job.TenantID).Warn("anomaly check failed")
	case sent:
		metrics.AlertsDispatched.WithLabelValues("sent").Inc()
	}
}
