package tenant

import "errors"

var (
	// ErrProfileNotFound indicates no user profile exists for the principal.
	ErrProfileNotFound = errors.New("user profile not found")

	// ErrOrganizationNotFound indicates the referenced organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrAlreadyOnboarded indicates the principal already belongs to an organization.
	ErrAlreadyOnboarded = errors.New("principal already belongs to an organization")
)
