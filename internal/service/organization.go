package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/pagination"
	"github.com/persistorai/auditlog/internal/query"
	"github.com/persistorai/auditlog/internal/security"
)

// contactActorID is the token subject issued to an organization's contact.
const contactActorID = "org-admin"

// TokenIssuer mints identity tokens.
type TokenIssuer interface {
	Issue(id models.Identity) (string, time.Time, error)
}

// OrganizationPage is one page of organizations.
type OrganizationPage = pagination.Page[models.Organization]

// orgPlanner pages organizations by creation time only.
var orgPlanner = pagination.NewPlanner(pagination.Config{
	DefaultSort: "createdAt",
	SortFields: map[string]pagination.SortField{
		"createdAt": {Field: query.FieldCreatedAt, Kind: pagination.KindTime},
	},
})

// OrganizationService manages tenants and their API keys.
type OrganizationService struct {
	store  domain.OrganizationStore
	tokens TokenIssuer
	log    *logrus.Logger
}

// NewOrganizationService creates an OrganizationService. tokens may be nil, in
// which case Create returns no token.
func NewOrganizationService(store domain.OrganizationStore, tokens TokenIssuer, log *logrus.Logger) *OrganizationService {
	return &OrganizationService{store: store, tokens: tokens, log: log}
}

// Create registers a tenant. The plaintext API key is returned once; only its
// hash is stored.
func (s *OrganizationService) Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.CreatedOrganization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	apiKey, err := security.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	org := &models.Organization{
		Name:       req.Name,
		Email:      req.Email,
		APIKeyHash: security.HashAPIKey(apiKey),
	}

	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	out := &models.CreatedOrganization{Organization: org, APIKey: apiKey}

	if s.tokens != nil {
		token, _, err := s.tokens.Issue(models.Identity{
			TenantID: org.ID,
			ActorID:  contactActorID,
			Name:     org.Name,
			Email:    org.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("issuing token: %w", err)
		}
		out.Token = token
	}

	s.log.WithField("tenant_id", org.ID).Info("organization created")

	return out, nil
}

// List returns one page of organizations, newest first.
func (s *OrganizationService) List(ctx context.Context, params url.Values) (*OrganizationPage, error) {
	p, err := orgPlanner.Parse(params)
	if err != nil {
		return nil, err
	}

	p.Cursor = ""
	p.Order = pagination.Desc

	plan, err := orgPlanner.Plan(p)
	if err != nil {
		return nil, err
	}

	page, err := pagination.Run[models.Organization](ctx, orgSource{store: s.store}, nil, plan)
	if err != nil {
		return nil, err
	}

	page.Meta.NextCursor = nil

	return page, nil
}

// Get returns the organization with id.
func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// Update applies the non-nil fields of req.
func (s *OrganizationService) Update(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		org.Name = *req.Name
	}

	if req.Email != nil {
		org.Email = *req.Email
	}

	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("updating organization: %w", err)
	}

	return org, nil
}

// Delete removes the organization with its logs and saved searches.
func (s *OrganizationService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteOrganization(ctx, id); err != nil {
		return err
	}

	s.log.WithField("tenant_id", id).Info("organization deleted")

	return nil
}

// RotateKey replaces the tenant's API key and returns the new plaintext key.
// The previous key stops working once auth caches expire.
func (s *OrganizationService) RotateKey(ctx context.Context, tenantID string) (string, error) {
	apiKey, err := security.GenerateAPIKey()
	if err != nil {
		return "", err
	}

	if err := s.store.SetAPIKeyHash(ctx, tenantID, security.HashAPIKey(apiKey)); err != nil {
		return "", fmt.Errorf("rotating api key: %w", err)
	}

	s.log.WithField("tenant_id", tenantID).Info("api key rotated")

	return apiKey, nil
}

// GetTenantByAPIKey resolves an API key to its tenant ID.
func (s *OrganizationService) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	org, err := s.store.GetOrganizationByAPIKeyHash(ctx, security.HashAPIKey(apiKey))
	if err != nil {
		return "", err
	}

	return org.ID, nil
}

// orgSource adapts an OrganizationStore to a pagination source. Filters are
// ignored: organizations are listed without scoping.
type orgSource struct {
	store domain.OrganizationStore
}

func (o orgSource) Count(ctx context.Context, _ query.Expr) (int64, error) {
	return o.store.CountOrganizations(ctx)
}

func (o orgSource) Find(ctx context.Context, _ query.Expr, opts query.FindOptions) ([]models.Organization, error) {
	return o.store.ListOrganizations(ctx, opts.Skip, opts.Limit)
}
