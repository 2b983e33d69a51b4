package memstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/memstore"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

var _ domain.Store = (*memstore.Store)(nil)

func insert(t *testing.T, s *memstore.Store, tenant, action string, et models.EventType, ts time.Time) models.LogEntry {
	t.Helper()

	e := &models.LogEntry{
		OrganizationID: tenant,
		Actor:          models.Actor{ID: "u1", Name: "Ann", Email: "ann@example.com"},
		Action:         action,
		EventType:      et,
		Timestamp:      ts,
	}
	require.NoError(t, s.InsertLog(context.Background(), e))

	return *e
}

func TestInsertLog_AssignsIDAndCreatedAt(t *testing.T) {
	s := memstore.New()

	a := insert(t, s, "t1", "x", models.EventCreate, time.Now())
	b := insert(t, s, "t1", "x", models.EventCreate, time.Now())

	assert.NotEmpty(t, a.ID)
	assert.Less(t, a.ID, b.ID, "ids must be time-ordered")
	assert.False(t, a.CreatedAt.IsZero())
	assert.NotNil(t, a.Metadata)
}

func TestInsertLog_StoresCopy(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	e := &models.LogEntry{OrganizationID: "t1", Action: "x", Metadata: map[string]any{"k": "v"}}
	require.NoError(t, s.InsertLog(ctx, e))
	e.Metadata["k"] = "changed"

	got, err := s.GetLog(ctx, "t1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestFindLogs_FilterSortSkipLimit(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 6 {
		insert(t, s, "t1", fmt.Sprintf("a%d", i), models.EventRead, base.Add(time.Duration(i)*time.Second))
	}
	insert(t, s, "t2", "a9", models.EventRead, base)

	scope := query.And{query.TenantClause("t1")}

	n, err := s.CountLogs(ctx, "t1", scope)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	rows, err := s.FindLogs(ctx, "t1", scope, query.FindOptions{
		Sort:  []query.Sort{{Field: query.FieldTimestamp, Desc: true}, {Field: query.FieldID, Desc: true}},
		Skip:  1,
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a4", rows[0].Action)
	assert.Equal(t, "a3", rows[1].Action)

	rows, err = s.FindLogs(ctx, "t1", scope, query.FindOptions{Skip: 50, Limit: 2})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestGetLog_TenantIsolation(t *testing.T) {
	s := memstore.New()
	e := insert(t, s, "t1", "x", models.EventRead, time.Now())

	_, err := s.GetLog(context.Background(), "t2", e.ID)
	assert.ErrorIs(t, err, models.ErrLogNotFound)

	_, err = s.GetLog(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, models.ErrLogNotFound)
}

func TestSummarizeLogs_Order(t *testing.T) {
	s := memstore.New()
	now := time.Now()

	insert(t, s, "t1", "x", models.EventRead, now)
	insert(t, s, "t1", "x", models.EventDelete, now)
	insert(t, s, "t1", "x", models.EventDelete, now)
	insert(t, s, "t1", "x", models.EventCreate, now)
	insert(t, s, "t2", "x", models.EventLogin, now)

	sum, err := s.SummarizeLogs(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, []models.EventTypeCount{
		{EventType: models.EventDelete, Count: 2},
		{EventType: models.EventCreate, Count: 1},
		{EventType: models.EventRead, Count: 1},
	}, sum)
}

func TestOrganizations(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", Email: "ops@acme.io", APIKeyHash: "h1"}
	require.NoError(t, s.CreateOrganization(ctx, org))
	assert.NotEmpty(t, org.ID)

	dup := &models.Organization{Name: "Other", Email: "ops@acme.io", APIKeyHash: "h2"}
	assert.ErrorIs(t, s.CreateOrganization(ctx, dup), models.ErrDuplicateKey)

	got, err := s.GetOrganizationByAPIKeyHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	require.NoError(t, s.SetAPIKeyHash(ctx, org.ID, "h3"))
	_, err = s.GetOrganizationByAPIKeyHash(ctx, "h1")
	assert.ErrorIs(t, err, models.ErrOrganizationNotFound)

	insert(t, s, org.ID, "x", models.EventRead, time.Now())
	require.NoError(t, s.DeleteOrganization(ctx, org.ID))

	n, err := s.CountLogs(ctx, org.ID, query.And{query.TenantClause(org.ID)})
	require.NoError(t, err)
	assert.Zero(t, n, "logs cascade with the organization")

	assert.ErrorIs(t, s.DeleteOrganization(ctx, org.ID), models.ErrOrganizationNotFound)
}

func TestSavedSearchVisibility(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	private := &models.SavedSearch{OrganizationID: "t1", UserID: "u1", Name: "mine"}
	global := &models.SavedSearch{OrganizationID: "t1", UserID: "u1", Name: "shared", IsGlobal: true}
	foreign := &models.SavedSearch{OrganizationID: "t2", UserID: "u2", Name: "theirs", IsGlobal: true}

	for _, ss := range []*models.SavedSearch{private, global, foreign} {
		require.NoError(t, s.CreateSavedSearch(ctx, ss))
	}

	list, err := s.ListSavedSearches(ctx, "t1", "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, global.ID, list[0].ID)

	list, err = s.ListSavedSearches(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.GetSavedSearch(ctx, "t1", "u2", foreign.ID)
	assert.ErrorIs(t, err, models.ErrSavedSearchNotFound)

	assert.ErrorIs(t, s.DeleteSavedSearch(ctx, "t1", "u2", global.ID), models.ErrSavedSearchNotFound)
	assert.NoError(t, s.DeleteSavedSearch(ctx, "t1", "u1", global.ID))
}
