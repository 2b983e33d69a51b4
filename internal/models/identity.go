package models

// IdentityKind distinguishes end-user tokens from machine API keys.
type IdentityKind string

// Identity kinds.
const (
	IdentityUser    IdentityKind = "user"
	IdentityService IdentityKind = "service"
)

// Identity is the authenticated caller, produced once by the auth middleware.
type Identity struct {
	TenantID string       `json:"organizationId"`
	ActorID  string       `json:"userId,omitempty"`
	Name     string       `json:"name,omitempty"`
	Email    string       `json:"email,omitempty"`
	Kind     IdentityKind `json:"kind"`
}

// IsService reports whether the caller authenticated with an API key.
func (i Identity) IsService() bool { return i.Kind == IdentityService }

// Actor returns the caller as a log actor snapshot.
func (i Identity) Actor() Actor {
	return Actor{ID: i.ActorID, Name: i.Name, Email: i.Email}
}
