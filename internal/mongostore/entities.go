package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/persistorai/auditlog/internal/models"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateOrganization inserts org keyed by a fresh UUID.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	org.ID = uuid.NewString()
	org.CreatedAt = now()
	org.UpdatedAt = org.CreatedAt

	if _, err := s.orgs.InsertOne(ctx, org); err != nil {
		org.ID = ""
		return classify("inserting organization", err)
	}

	return nil
}

// GetOrganization returns the organization with id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return s.findOrganization(ctx, bson.M{"_id": id})
}

// GetOrganizationByAPIKeyHash returns the organization owning hash.
func (s *Store) GetOrganizationByAPIKeyHash(ctx context.Context, hash string) (*models.Organization, error) {
	return s.findOrganization(ctx, bson.M{"apiKeyHash": hash})
}

func (s *Store) findOrganization(ctx context.Context, filter bson.M) (*models.Organization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var org models.Organization

	err := s.orgs.FindOne(ctx, filter).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, classify("getting organization", err)
	}

	org.CreatedAt = org.CreatedAt.UTC()
	org.UpdatedAt = org.UpdatedAt.UTC()

	return &org, nil
}

// CountOrganizations returns the number of organizations.
func (s *Store) CountOrganizations(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	n, err := s.orgs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classify("counting organizations", err)
	}

	return n, nil
}

// ListOrganizations returns a page of organizations, newest first.
func (s *Store) ListOrganizations(ctx context.Context, skip, limit int) ([]models.Organization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.orgs.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, classify("listing organizations", err)
	}
	defer cursor.Close(ctx)

	orgs := make([]models.Organization, 0, limit)
	if err := cursor.All(ctx, &orgs); err != nil {
		return nil, classify("decoding organizations", err)
	}

	return orgs, nil
}

// UpdateOrganization persists name and email changes on org.
func (s *Store) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	org.UpdatedAt = now()

	res, err := s.orgs.UpdateByID(ctx, org.ID, bson.M{"$set": bson.M{
		"name":      org.Name,
		"email":     org.Email,
		"updatedAt": org.UpdatedAt,
	}})
	if err != nil {
		return classify("updating organization", err)
	}

	if res.MatchedCount == 0 {
		return models.ErrOrganizationNotFound
	}

	return nil
}

// SetAPIKeyHash replaces an organization's API key hash.
func (s *Store) SetAPIKeyHash(ctx context.Context, id, hash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.orgs.UpdateByID(ctx, id, bson.M{"$set": bson.M{"apiKeyHash": hash, "updatedAt": now()}})
	if err != nil {
		return classify("rotating API key", err)
	}

	if res.MatchedCount == 0 {
		return models.ErrOrganizationNotFound
	}

	return nil
}

// DeleteOrganization removes an organization with its logs and saved searches.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.orgs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify("deleting organization", err)
	}

	if res.DeletedCount == 0 {
		return models.ErrOrganizationNotFound
	}

	if _, err := s.logs.DeleteMany(ctx, bson.M{"organizationId": id}); err != nil {
		return classify("deleting organization logs", err)
	}

	if _, err := s.searches.DeleteMany(ctx, bson.M{"organizationId": id}); err != nil {
		return classify("deleting organization saved searches", err)
	}

	return nil
}

// savedSearchDocument is the stored shape of a saved search.
type savedSearchDocument struct {
	ID                 primitive.ObjectID `bson:"_id"`
	models.SavedSearch `bson:",inline"`
}

func (d *savedSearchDocument) search() models.SavedSearch {
	ss := d.SavedSearch
	ss.ID = d.ID.Hex()
	ss.CreatedAt = ss.CreatedAt.UTC()
	ss.UpdatedAt = ss.UpdatedAt.UTC()

	return ss
}

func visibleTo(tenantID, userID string) bson.M {
	return bson.M{
		"organizationId": tenantID,
		"$or":            []bson.M{{"userId": userID}, {"isGlobal": true}},
	}
}

// CreateSavedSearch inserts ss.
func (s *Store) CreateSavedSearch(ctx context.Context, ss *models.SavedSearch) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ss.CreatedAt = now()
	ss.UpdatedAt = ss.CreatedAt

	doc := savedSearchDocument{ID: primitive.NewObjectID(), SavedSearch: *ss}
	if _, err := s.searches.InsertOne(ctx, doc); err != nil {
		return classify("inserting saved search", err)
	}

	ss.ID = doc.ID.Hex()

	return nil
}

// ListSavedSearches returns the caller's and the tenant's global searches, newest first.
func (s *Store) ListSavedSearches(ctx context.Context, tenantID, userID string) ([]models.SavedSearch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := s.searches.Find(ctx, visibleTo(tenantID, userID),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, classify("listing saved searches", err)
	}
	defer cursor.Close(ctx)

	var docs []savedSearchDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decoding saved searches", err)
	}

	out := make([]models.SavedSearch, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].search())
	}

	return out, nil
}

// GetSavedSearch returns one search visible to userID within tenantID.
func (s *Store) GetSavedSearch(ctx context.Context, tenantID, userID, id string) (*models.SavedSearch, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrSavedSearchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := visibleTo(tenantID, userID)
	filter["_id"] = oid

	var doc savedSearchDocument

	err = s.searches.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrSavedSearchNotFound
	}
	if err != nil {
		return nil, classify("getting saved search", err)
	}

	ss := doc.search()

	return &ss, nil
}

// DeleteSavedSearch removes a search owned by userID within tenantID.
func (s *Store) DeleteSavedSearch(ctx context.Context, tenantID, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrSavedSearchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.searches.DeleteOne(ctx, bson.M{"_id": oid, "organizationId": tenantID, "userId": userID})
	if err != nil {
		return classify("deleting saved search", err)
	}

	if res.DeletedCount == 0 {
		return models.ErrSavedSearchNotFound
	}

	return nil
}
