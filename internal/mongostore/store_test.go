package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/mongostore"
	"github.com/persistorai/auditlog/internal/pagination"
	"github.com/persistorai/auditlog/internal/query"
)

var _ domain.Store = (*mongostore.Store)(nil)

func newTestStore(t *testing.T) *mongostore.Store {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	ctx := context.Background()
	s, err := mongostore.Connect(ctx, uri, "auditlog_test_"+uuid.NewString()[:8], log)
	require.NoError(t, err)
	require.NoError(t, s.EnsureIndexes(ctx))

	t.Cleanup(func() { s.Close(context.Background()) }) //nolint:errcheck // best-effort cleanup

	return s
}

func TestMongo_CursorPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()
	base := time.Now().UTC().Add(-time.Hour)

	for i := range 9 {
		e := &models.LogEntry{
			OrganizationID: tenant,
			Actor:          models.Actor{ID: "u1", Name: "Ann"},
			Action:         "login",
			EventType:      models.EventLogin,
			Timestamp:      base.Add(time.Duration(i/2) * time.Second),
		}
		require.NoError(t, s.InsertLog(ctx, e))
	}

	planner := pagination.NewPlanner(pagination.LogConfig(10, 100))
	scope := query.And{query.TenantClause(tenant)}
	seen := map[string]bool{}
	cursor := ""

	for range 10 {
		p, err := planner.Plan(pagination.Params{Limit: 4, SortBy: "timestamp", Order: pagination.Desc, Cursor: cursor})
		require.NoError(t, err)

		page, err := pagination.Run[models.LogEntry](ctx, logSource{s, tenant}, scope, p)
		require.NoError(t, err)

		for _, e := range page.Data {
			assert.False(t, seen[e.ID], "duplicate %s", e.ID)
			seen[e.ID] = true
		}

		if !page.Meta.HasNextPage {
			break
		}
		cursor = *page.Meta.NextCursor
	}

	assert.Len(t, seen, 9)
}

func TestMongo_SummaryAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	e := &models.LogEntry{OrganizationID: tenant, Action: "rm", EventType: models.EventDelete, Timestamp: time.Now()}
	require.NoError(t, s.InsertLog(ctx, e))

	got, err := s.GetLog(ctx, tenant, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "rm", got.Action)

	_, err = s.GetLog(ctx, uuid.NewString(), e.ID)
	assert.ErrorIs(t, err, models.ErrLogNotFound)

	sum, err := s.SummarizeLogs(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, []models.EventTypeCount{{EventType: models.EventDelete, Count: 1}}, sum)
}

type logSource struct {
	s      *mongostore.Store
	tenant string
}

func (l logSource) Count(ctx context.Context, filter query.Expr) (int64, error) {
	return l.s.CountLogs(ctx, l.tenant, filter)
}

func (l logSource) Find(ctx context.Context, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error) {
	return l.s.FindLogs(ctx, l.tenant, filter, opts)
}
