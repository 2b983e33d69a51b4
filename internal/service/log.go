// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/metrics"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/pagination"
	"github.com/persistorai/auditlog/internal/query"
)

// Live-tail event types.
const (
	EventLogCreated     = "log.created"
	EventAlertTriggered = "alert.triggered"
)

// defaultActorName is recorded when the caller supplies no actor name.
const defaultActorName = "Unknown"

// AnomalyEnqueuer schedules an anomaly check for a tenant.
type AnomalyEnqueuer interface {
	Enqueue(job AnomalyJob)
}

// LogPage is one page of log entries.
type LogPage = pagination.Page[models.LogEntry]

// LogService records and queries log entries.
type LogService struct {
	store     domain.LogStore
	planner   *pagination.Planner
	anomaly   AnomalyEnqueuer
	publisher Publisher
	log       *logrus.Logger
	now       func() time.Time
}

// NewLogService creates a LogService. anomaly and publisher may be nil.
func NewLogService(
	store domain.LogStore, planner *pagination.Planner, anomaly AnomalyEnqueuer, publisher Publisher, log *logrus.Logger,
) *LogService {
	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &LogService{
		store:     store,
		planner:   planner,
		anomaly:   anomaly,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Planner returns the pagination planner used for log listings.
func (s *LogService) Planner() *pagination.Planner { return s.planner }

// Create validates req, records it for caller and schedules the anomaly check.
// Service identities may name the actor in the request; user identities are
// always recorded as themselves.
func (s *LogService) Create(ctx context.Context, caller models.Identity, req models.CreateLogRequest) (*models.LogEntry, error) {
	if strings.TrimSpace(caller.TenantID) == "" {
		return nil, models.ErrMissingTenant
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	actor := caller.Actor()
	if caller.IsService() && req.Actor != nil {
		actor = *req.Actor
	}

	actor.ID = strings.TrimSpace(actor.ID)
	if actor.ID == "" {
		return nil, models.ErrMissingActor
	}

	if strings.TrimSpace(actor.Name) == "" {
		actor.Name = defaultActorName
	}

	entry := &models.LogEntry{
		OrganizationID: caller.TenantID,
		Actor:          actor,
		Action:         req.Action,
		EventType:      req.EventType,
		Description:    req.Description,
		Metadata:       req.Metadata,
		Timestamp:      s.now().UTC(),
	}

	if entry.EventType == "" {
		entry.EventType = models.EventOther
	}

	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		entry.Timestamp = req.Timestamp.UTC()
	}

	entry.SearchText = models.MetadataText(entry.Metadata)

	if err := s.store.InsertLog(ctx, entry); err != nil {
		return nil, err
	}

	metrics.LogsIngested.WithLabelValues(string(entry.EventType)).Inc()

	s.publisher.Publish(EventLogCreated, entry.OrganizationID, entry)

	if s.anomaly != nil {
		s.anomaly.Enqueue(AnomalyJob{TenantID: entry.OrganizationID, Action: entry.Action})
	}

	return entry, nil
}

// List returns one page of the tenant's logs for the request parameters.
func (s *LogService) List(ctx context.Context, tenantID string, params url.Values) (*LogPage, error) {
	filters := make(map[string]string, len(query.AllowedFilters))
	for _, spec := range query.AllowedFilters {
		filters[spec.Param] = params.Get(spec.Param)
	}

	scope, err := query.BuildScope(tenantID, filters, params.Get("search"))
	if err != nil {
		return nil, err
	}

	p, err := s.planner.Parse(params)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, tenantID, scope, p)
}

// run plans p and executes it over the tenant's logs.
func (s *LogService) run(ctx context.Context, tenantID string, scope query.And, p pagination.Params) (*LogPage, error) {
	plan, err := s.planner.Plan(p)
	if err != nil {
		return nil, err
	}

	return pagination.Run[models.LogEntry](ctx, tenantSource{store: s.store, tenantID: tenantID}, scope, plan)
}

// Get returns one of the tenant's entries.
func (s *LogService) Get(ctx context.Context, tenantID, id string) (*models.LogEntry, error) {
	return s.store.GetLog(ctx, tenantID, id)
}

// Summary counts the tenant's entries per event type.
func (s *LogService) Summary(ctx context.Context, tenantID string) ([]models.EventTypeCount, error) {
	return s.store.SummarizeLogs(ctx, tenantID)
}

// tenantSource adapts a LogStore to a pagination source for one tenant.
type tenantSource struct {
	store    domain.LogStore
	tenantID string
}

func (t tenantSource) Count(ctx context.Context, filter query.Expr) (int64, error) {
	return t.store.CountLogs(ctx, t.tenantID, filter)
}

func (t tenantSource) Find(ctx context.Context, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error) {
	return t.store.FindLogs(ctx, t.tenantID, filter, opts)
}
