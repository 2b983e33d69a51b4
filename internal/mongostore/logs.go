package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

// logDocument is the stored shape of a log entry: the entry with an ObjectID key.
type logDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	models.LogEntry `bson:",inline"`
}

func (d *logDocument) entry() models.LogEntry {
	e := d.LogEntry
	e.ID = d.ID.Hex()
	e.Timestamp = e.Timestamp.UTC()
	e.CreatedAt = e.CreatedAt.UTC()

	return e
}

// InsertLog writes entry, assigning an ObjectID and CreatedAt. BSON dates
// carry milliseconds, so times are truncated to match what reads return.
func (s *Store) InsertLog(ctx context.Context, entry *models.LogEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Millisecond)
	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	doc := logDocument{ID: primitive.NewObjectID(), LogEntry: *entry}

	if _, err := s.logs.InsertOne(ctx, doc); err != nil {
		return classify("inserting log entry", err)
	}

	entry.ID = doc.ID.Hex()

	return nil
}

// CountLogs counts entries matching filter.
func (s *Store) CountLogs(ctx context.Context, _ string, filter query.Expr) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	f, err := toFilter(filter)
	if err != nil {
		return 0, fmt.Errorf("building log filter: %w", err)
	}

	n, err := s.logs.CountDocuments(ctx, f)
	if err != nil {
		return 0, classify("counting log entries", err)
	}

	return n, nil
}

// FindLogs returns entries matching filter in opts order.
func (s *Store) FindLogs(ctx context.Context, _ string, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	f, err := toFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("building log filter: %w", err)
	}

	sort, err := toSort(opts.Sort)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	findOptions := options.Find().SetSort(sort).SetSkip(int64(opts.Skip)).SetLimit(int64(limit))

	cursor, err := s.logs.Find(ctx, f, findOptions)
	if err != nil {
		return nil, classify("querying log entries", err)
	}
	defer cursor.Close(ctx)

	var docs []logDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decoding log entries", err)
	}

	out := make([]models.LogEntry, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].entry())
	}

	return out, nil
}

// GetLog returns a single entry of tenantID.
func (s *Store) GetLog(ctx context.Context, tenantID, id string) (*models.LogEntry, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrLogNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc logDocument

	err = s.logs.FindOne(ctx, bson.M{"_id": oid, "organizationId": tenantID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrLogNotFound
	}
	if err != nil {
		return nil, classify("getting log entry", err)
	}

	e := doc.entry()

	return &e, nil
}

// SummarizeLogs counts entries per event type, largest first.
func (s *Store) SummarizeLogs(ctx context.Context, tenantID string) ([]models.EventTypeCount, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"organizationId": tenantID}}},
		{{Key: "$group", Value: bson.M{"_id": "$eventType", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := s.logs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classify("summarizing log entries", err)
	}
	defer cursor.Close(ctx)

	out := make([]models.EventTypeCount, 0, len(models.EventTypes))
	if err := cursor.All(ctx, &out); err != nil {
		return nil, classify("decoding summary", err)
	}

	return out, nil
}
