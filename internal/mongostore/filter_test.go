package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

func TestToFilter_Scope(t *testing.T) {
	scope, err := query.BuildScope("t1", map[string]string{"eventType": "delete", "action": "a.b*"}, "")
	require.NoError(t, err)

	got, err := toFilter(scope)
	require.NoError(t, err)

	assert.Equal(t, bson.M{"$and": []bson.M{
		{"organizationId": "t1"},
		{"eventType": "DELETE"},
		{"action": primitive.Regex{Pattern: `a\.b\*`, Options: "i"}},
	}}, got)
}

func TestToFilter_Search(t *testing.T) {
	scope, err := query.BuildScope("t1", nil, "(login)")
	require.NoError(t, err)

	got, err := toFilter(scope)
	require.NoError(t, err)

	and := got["$and"].([]bson.M)
	require.Len(t, and, 2)

	or := and[1]["$or"].([]bson.M)
	require.Len(t, or, len(query.SearchFields))
	assert.Equal(t, bson.M{"actor.email": primitive.Regex{Pattern: `\(login\)`, Options: "i"}}, or[4])
}

func TestToFilter_Keyset(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectID()

	got, err := toFilter(query.Or{
		query.Gt(query.FieldTimestamp, ts),
		query.And{query.Eq(query.FieldTimestamp, ts), query.Gt(query.FieldID, oid.Hex())},
	})
	require.NoError(t, err)

	assert.Equal(t, bson.M{"$or": []bson.M{
		{"timestamp": bson.M{"$gt": ts}},
		{"$and": []bson.M{
			{"timestamp": ts},
			{"_id": bson.M{"$gt": oid}},
		}},
	}}, got)
}

func TestToFilter_BadObjectIDIsInvalidCursor(t *testing.T) {
	_, err := toFilter(query.Lt(query.FieldID, "018f-not-an-oid"))
	assert.ErrorIs(t, err, models.ErrInvalidCursor)
}

func TestToFilter_EmptyNodes(t *testing.T) {
	got, err := toFilter(query.And{})
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, got)

	got, err = toFilter(query.Or{})
	require.NoError(t, err)
	assert.Equal(t, matchNothing, got)
}

func TestToFilter_UnknownField(t *testing.T) {
	_, err := toFilter(query.Eq("metadata.$where", "x"))
	assert.Error(t, err)
}

func TestToSort(t *testing.T) {
	got, err := toSort([]query.Sort{
		{Field: query.FieldAction, Desc: false},
		{Field: query.FieldID, Desc: false},
	})
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "action", Value: 1}, {Key: "_id", Value: 1}}, got)
}
