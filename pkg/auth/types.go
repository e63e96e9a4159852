// Package auth models the trust boundary with the external identity provider.
//
// The service never creates or destroys identities. It receives a signed token
// from the hosted identity provider, verifies it, and extracts a Principal.
// Everything downstream trusts the Principal and nothing else.
package auth

// Principal is the authenticated caller identity supplied by the external
// identity provider: an opaque stable id plus claims.
type Principal struct {
	ID          string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Role represents organization-level roles
type Role string

const (
	RoleOwner  Role = "owner"  // Created the organization, full access
	RoleMember Role = "member" // Regular organization member
)
