package query_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

type doc map[query.Field]any

func (d doc) Lookup(f query.Field) (any, bool) {
	v, ok := d[f]
	return v, ok
}

func TestBuildScope_TenantOnly(t *testing.T) {
	scope, err := query.BuildScope("t1", nil, "")
	require.NoError(t, err)

	assert.Equal(t, query.And{query.Eq(query.FieldOrganizationID, "t1")}, scope)
}

func TestBuildScope_RequiresTenant(t *testing.T) {
	_, err := query.BuildScope("  ", map[string]string{"eventType": "DELETE"}, "")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestBuildScope_TenantClauseAlwaysFirst(t *testing.T) {
	scope, err := query.BuildScope("t1", map[string]string{
		"organizationId": "t2",
		"eventType":      "delete",
		"userId":         "u1",
		"action":         "remove",
	}, "login")
	require.NoError(t, err)

	require.Len(t, scope, 5)
	assert.Equal(t, query.Eq(query.FieldOrganizationID, "t1"), scope[0])
	assert.Equal(t, query.Eq(query.FieldEventType, "DELETE"), scope[1])
	assert.Equal(t, query.Eq(query.FieldActorID, "u1"), scope[2])
	assert.Equal(t, query.ContainsFold(query.FieldAction, "remove"), scope[3])

	or, ok := scope[4].(query.Or)
	require.True(t, ok, "search clause must be an Or")
	assert.Len(t, or, len(query.SearchFields))
}

func TestBuildScope_IgnoresUnknownAndEmptyFilters(t *testing.T) {
	scope, err := query.BuildScope("t1", map[string]string{
		"metadata.ip": "10.0.0.1",
		"$where":      "1==1",
		"eventType":   "",
		"action":      "   ",
	}, "   ")
	require.NoError(t, err)

	assert.Len(t, scope, 1)
}

func TestBuildScope_SearchTooLong(t *testing.T) {
	_, err := query.BuildScope("t1", nil, strings.Repeat("x", 501))
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestMatch_TenantIsolation(t *testing.T) {
	scope, err := query.BuildScope("t1", nil, "login")
	require.NoError(t, err)

	own := doc{query.FieldOrganizationID: "t1", query.FieldAction: "LOGIN", query.FieldEventType: "LOGIN",
		query.FieldDescription: "", query.FieldActorName: "", query.FieldActorEmail: ""}
	other := doc{query.FieldOrganizationID: "t2", query.FieldAction: "LOGIN", query.FieldEventType: "LOGIN",
		query.FieldDescription: "", query.FieldActorName: "", query.FieldActorEmail: ""}

	assert.True(t, query.Match(scope, own))
	assert.False(t, query.Match(scope, other))
}

func TestMatch_SearchAcrossFields(t *testing.T) {
	scope, err := query.BuildScope("t1", nil, "LoGiN")
	require.NoError(t, err)

	base := func() doc {
		return doc{query.FieldOrganizationID: "t1", query.FieldAction: "view", query.FieldEventType: "READ",
			query.FieldDescription: "", query.FieldActorName: "Ann", query.FieldActorEmail: "ann@x.io"}
	}

	tests := []struct {
		name  string
		field query.Field
		value string
		want  bool
	}{
		{name: "action", field: query.FieldAction, value: "user.login", want: true},
		{name: "event type", field: query.FieldEventType, value: "LOGIN", want: true},
		{name: "description", field: query.FieldDescription, value: "failed Login attempt", want: true},
		{name: "actor name", field: query.FieldActorName, value: "loginbot", want: true},
		{name: "actor email", field: query.FieldActorEmail, value: "login@x.io", want: true},
		{name: "no field", field: query.FieldDescription, value: "logout", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := base()
			d[tc.field] = tc.value
			assert.Equal(t, tc.want, query.Match(scope, d))
		})
	}
}

func TestMatch_Comparisons(t *testing.T) {
	now := time.Now()
	d := doc{query.FieldTimestamp: now, query.FieldID: "b"}

	assert.True(t, query.Match(query.Gt(query.FieldTimestamp, now.Add(-time.Second)), d))
	assert.False(t, query.Match(query.Lt(query.FieldTimestamp, now), d))
	assert.True(t, query.Match(query.Gte(query.FieldTimestamp, now), d))
	assert.True(t, query.Match(query.Lt(query.FieldID, "c"), d))
	assert.False(t, query.Match(query.Eq(query.FieldID, now), d), "mismatched kinds never match")
	assert.False(t, query.Match(query.Eq(query.FieldAction, "x"), d), "missing fields never match")
	assert.False(t, query.Match(query.Or{}, d))
	assert.True(t, query.Match(query.And{}, d))
}
