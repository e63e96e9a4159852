package tenant

import (
	"time"

	"github.com/safesight/hseai/pkg/auth"
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanStarter    PlanTier = "starter"
	PlanEnterprise PlanTier = "enterprise"
)

// freePlanMonthlyLimit is the hard cap for organizations on the free plan,
// applied regardless of their configured report limit.
const freePlanMonthlyLimit = 5

// defaultMonthlyLimit applies when an organization has no configured limit.
const defaultMonthlyLimit = 50

// SubscriptionStatus represents the status of an organization's subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// OrganizationType classifies an organization at onboarding
type OrganizationType string

const (
	OrgTypeStartup    OrganizationType = "startup"
	OrgTypeSME        OrganizationType = "sme"
	OrgTypeEnterprise OrganizationType = "enterprise"
	OrgTypeNGO        OrganizationType = "ngo"
	OrgTypeGovernment OrganizationType = "government"
)

// ValidOrganizationType reports whether t belongs to the allowed set.
func ValidOrganizationType(t OrganizationType) bool {
	switch t {
	case OrgTypeStartup, OrgTypeSME, OrgTypeEnterprise, OrgTypeNGO, OrgTypeGovernment:
		return true
	}
	return false
}

// OrgSettings holds organization-level configuration
type OrgSettings struct {
	AIReportsLimit int      `json:"aiReportsLimit"`
	MaxUsers       int      `json:"maxUsers"`
	MaxReports     int      `json:"maxReports"`
	Features       []string `json:"features"`
}

// DefaultOrgSettings returns the settings a newly onboarded organization gets.
func DefaultOrgSettings() OrgSettings {
	return OrgSettings{
		AIReportsLimit: defaultMonthlyLimit,
		MaxUsers:       10,
		MaxReports:     100,
		Features:       []string{"ai-reports", "dashboard", "analytics"},
	}
}

// Subscription holds an organization's plan state
type Subscription struct {
	Plan      PlanTier           `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	ExpiresAt *time.Time         `json:"expiresAt"`
}

// Organization is a tenant: it owns users, a usage ledger, and reports.
type Organization struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         OrganizationType `json:"type"`
	OwnerID      string           `json:"ownerId"`
	Settings     OrgSettings      `json:"settings"`
	Subscription Subscription     `json:"subscription"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// EffectivePlan returns the organization's plan, defaulting to free when unset.
func (o *Organization) EffectivePlan() PlanTier {
	if o.Subscription.Plan == "" {
		return PlanFree
	}
	return o.Subscription.Plan
}

// EffectiveMonthlyLimit computes the monthly report cap for a plan and
// settings. The free plan forces a hard cap regardless of the configured
// limit; other plans use the configured limit, defaulting when unset.
func EffectiveMonthlyLimit(tier PlanTier, settings OrgSettings) int {
	if tier == PlanFree || tier == "" {
		return freePlanMonthlyLimit
	}
	if settings.AIReportsLimit <= 0 {
		return defaultMonthlyLimit
	}
	return settings.AIReportsLimit
}

// FreeUserMonthlyLimit is the per-user monthly cap on the free plan, layered
// on top of the organization-wide cap.
func FreeUserMonthlyLimit() int {
	return freePlanMonthlyLimit
}

// UserProfile links a principal to its organization. The profile's id equals
// the principal id, so at most one profile exists per principal; onboarding
// uses this as its idempotency key.
type UserProfile struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"displayName"`
	OrganizationID      string    `json:"organizationId"`
	Role                auth.Role `json:"role"`
	Permissions         []string  `json:"permissions"`
	IsActive            bool      `json:"isActive"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// UsageLedger tracks report generation volume for one organization. A single
// row exists per organization; monthly counters reset on the first of each
// month (UTC).
type UsageLedger struct {
	OrgID          string    `json:"orgId"`
	TotalReports   int       `json:"totalReports"`
	MonthlyReports int       `json:"monthlyReports"`
	LastResetDate  time.Time `json:"lastResetDate"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
