package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/persistorai/auditlog/internal/models"
)

// logRecord is an audit_logs document.
type logRecord struct {
	ID              primitive.ObjectID `bson:"_id"`
	models.LogEntry `bson:",inline"`
}

// searchRecord is a saved_searches document.
type searchRecord struct {
	ID                 primitive.ObjectID `bson:"_id"`
	models.SavedSearch `bson:",inline"`
}

// source reads the MongoDB collections.
type source struct {
	client *mongo.Client
	db     *mongo.Database
}

func openSource(ctx context.Context, uri, database string) (*source, error) {
	// Nested metadata documents decode as maps so they marshal to JSON objects.
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("auditlog-migrate").
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx) //nolint:errcheck // best-effort cleanup on failed connect.
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &source{client: client, db: client.Database(database)}, nil
}

func (s *source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// tenantFilter limits a collection to one organization when tenantID is set.
func tenantFilter(field, tenantID string) bson.M {
	if tenantID == "" {
		return bson.M{}
	}
	return bson.M{field: tenantID}
}

func (s *source) readOrganizations(ctx context.Context, tenantID string) ([]models.Organization, error) {
	cursor, err := s.db.Collection("organizations").Find(ctx, tenantFilter("_id", tenantID),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orgs []models.Organization
	if err := cursor.All(ctx, &orgs); err != nil {
		return nil, fmt.Errorf("decode organization: %w", err)
	}
	return orgs, nil
}

func (s *source) readSavedSearches(ctx context.Context, tenantID string) ([]models.SavedSearch, error) {
	cursor, err := s.db.Collection("saved_searches").Find(ctx, tenantFilter("organizationId", tenantID))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.SavedSearch
	for cursor.Next(ctx) {
		var rec searchRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode saved search: %w", err)
		}
		ss := rec.SavedSearch
		ss.ID = rec.ID.Hex()
		out = append(out, ss)
	}
	return out, cursor.Err()
}

func (s *source) countLogs(ctx context.Context, tenantID string) (int, error) {
	n, err := s.db.Collection("audit_logs").CountDocuments(ctx, tenantFilter("organizationId", tenantID))
	return int(n), err
}

// eachLogBatch streams log documents in _id order and hands them to fn in
// batches of size.
func (s *source) eachLogBatch(ctx context.Context, tenantID string, size int, fn func([]logRecord) error) error {
	if size <= 0 {
		size = 500
	}

	cursor, err := s.db.Collection("audit_logs").Find(ctx, tenantFilter("organizationId", tenantID),
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetBatchSize(int32(size)))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]logRecord, 0, size)
	for cursor.Next(ctx) {
		var rec logRecord
		if err := cursor.Decode(&rec); err != nil {
			return fmt.Errorf("decode log entry: %w", err)
		}
		batch = append(batch, rec)

		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
