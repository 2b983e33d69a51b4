package mongostore

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// logFields maps query fields to audit_logs document paths.
var logFields = map[query.Field]string{
	query.FieldID:             "_id",
	query.FieldOrganizationID: "organizationId",
	query.FieldAction:         "action",
	query.FieldEventType:      "eventType",
	query.FieldDescription:    "description",
	query.FieldActorID:        "actor.id",
	query.FieldActorName:      "actor.name",
	query.FieldActorEmail:     "actor.email",
	query.FieldTimestamp:      "timestamp",
	query.FieldCreatedAt:      "createdAt",
}

// matchNothing is a filter no document satisfies; $or rejects an empty array.
var matchNothing = bson.M{"_id": bson.M{"$exists": false}}

// toFilter translates e into a BSON filter document.
func toFilter(e query.Expr) (bson.M, error) {
	switch n := e.(type) {
	case nil:
		return bson.M{}, nil
	case query.And:
		if len(n) == 0 {
			return bson.M{}, nil
		}

		parts, err := toFilters(n)
		if err != nil {
			return nil, err
		}

		return bson.M{"$and": parts}, nil
	case query.Or:
		if len(n) == 0 {
			return matchNothing, nil
		}

		parts, err := toFilters(n)
		if err != nil {
			return nil, err
		}

		return bson.M{"$or": parts}, nil
	case query.Cond:
		return condFilter(n)
	}

	return nil, fmt.Errorf("unsupported expression %T", e)
}

func toFilters(children []query.Expr) ([]bson.M, error) {
	out := make([]bson.M, 0, len(children))
	for _, c := range children {
		f, err := toFilter(c)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	return out, nil
}

func condFilter(c query.Cond) (bson.M, error) {
	path, ok := logFields[c.Field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", c.Field)
	}

	v := c.Value
	if c.Field == query.FieldID {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("id comparison needs a string, got %T", v)
		}

		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: id is not an ObjectID", models.ErrInvalidCursor)
		}
		v = oid
	}

	switch c.Op {
	case query.OpEq:
		return bson.M{path: v}, nil
	case query.OpGt:
		return bson.M{path: bson.M{"$gt": v}}, nil
	case query.OpLt:
		return bson.M{path: bson.M{"$lt": v}}, nil
	case query.OpGte:
		return bson.M{path: bson.M{"$gte": v}}, nil
	case query.OpContainsFold:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("substring match on %q needs a string", c.Field)
		}

		return bson.M{path: primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}}, nil
	}

	return nil, fmt.Errorf("unsupported operator %s", c.Op)
}

// toSort translates sorts into an ordered sort document.
func toSort(sorts []query.Sort) (bson.D, error) {
	out := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		path, ok := logFields[s.Field]
		if !ok {
			return nil, fmt.Errorf("unknown sort field %q", s.Field)
		}

		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: path, Value: dir})
	}

	return out, nil
}
