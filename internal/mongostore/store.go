// Package mongostore provides the MongoDB backend for the audit log.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/persistorai/auditlog/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Collection names.
const (
	logsCollection          = "audit_logs"
	organizationsCollection = "organizations"
	savedSearchesCollection = "saved_searches"
)

// Store is the complete MongoDB backend.
type Store struct {
	client   *mongo.Client
	logs     *mongo.Collection
	orgs     *mongo.Collection
	searches *mongo.Collection
	log      *logrus.Logger
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string, log *logrus.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("auditlog").
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx) //nolint:errcheck // best-effort cleanup on failed connect.

		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return New(client, database, log), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, log *logrus.Logger) *Store {
	db := client.Database(database)

	return &Store{
		client:   client,
		logs:     db.Collection(logsCollection),
		orgs:     db.Collection(organizationsCollection),
		searches: db.Collection(savedSearchesCollection),
		log:      log,
	}
}

// EnsureIndexes creates the indexes list queries and uniqueness rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "action", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "eventType", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "actor.id", Value: 1}}},
	})
	if err != nil {
		return classify("creating log indexes", err)
	}

	_, err = s.orgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "apiKeyHash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
	})
	if err != nil {
		return classify("creating organization indexes", err)
	}

	_, err = s.searches.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "userId", Value: 1}},
	})
	if err != nil {
		return classify("creating saved search indexes", err)
	}

	s.log.Debug("mongo indexes ensured")

	return nil
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// classify wraps err with msg and marks network failures as
// ErrStoreUnavailable and duplicate keys as ErrDuplicateKey.
func classify(msg string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", msg, models.ErrDuplicateKey)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", msg, models.ErrStoreUnavailable, err)
	}

	var sse mongo.ServerError
	if errors.As(err, &sse) && sse.HasErrorLabel("RetryableWriteError") {
		return fmt.Errorf("%s: %w: %w", msg, models.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
