package models

import (
	"net/mail"
	"strings"
	"time"
)

// Organization is a tenant. Its email is the contact for anomaly alerts.
type Organization struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	Email      string    `json:"email" bson:"email"`
	APIKeyHash string    `json:"-" bson:"apiKeyHash"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateOrganizationRequest is the payload for registering a tenant.
type CreateOrganizationRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required,email,max=320"`
}

// Validate checks required fields and normalizes the email.
func (r *CreateOrganizationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrMissingName
	}

	if len(r.Name) > 255 {
		return ErrFieldTooLong("name", 255)
	}

	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email

	return nil
}

// UpdateOrganizationRequest is the payload for updating a tenant.
// Nil fields are left unchanged.
type UpdateOrganizationRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=255"`
	Email *string `json:"email,omitempty" binding:"omitempty,email,max=320"`
}

// Validate checks the provided fields.
func (r *UpdateOrganizationRequest) Validate() error {
	if r.Name == nil && r.Email == nil {
		return NewValidationError("", "at least one of name, email is required")
	}

	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return ErrMissingName
		}
		r.Name = &name
	}

	if r.Email != nil {
		email, err := normalizeEmail(*r.Email)
		if err != nil {
			return err
		}
		r.Email = &email
	}

	return nil
}

// CreatedOrganization is returned once on registration: it carries the plaintext
// API key, which is never retrievable again.
type CreatedOrganization struct {
	Organization *Organization `json:"organization"`
	APIKey       string        `json:"apiKey"`
	Token        string        `json:"token,omitempty"`
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrMissingEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", NewValidationError("email", "must be a valid email address")
	}

	return email, nil
}

// CursorID returns the tiebreak identifier used in keyset cursors.
func (o Organization) CursorID() string { return o.ID }

// CursorValue returns the value of the named sort field.
func (o Organization) CursorValue(field string) (any, bool) {
	switch field {
	case "createdAt":
		return o.CreatedAt, true
	case "name":
		return o.Name, true
	}

	return nil, false
}
