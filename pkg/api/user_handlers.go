package api

import (
	"errors"
	"net/http"

	"github.com/safesight/hseai/pkg/fault"
	"github.com/safesight/hseai/pkg/httputil"
	"github.com/safesight/hseai/pkg/middleware"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/tenant"
)

type identitySummary struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type getMeResponse struct {
	Success         bool                 `json:"success"`
	User            interface{}          `json:"user"`
	Organization    *tenant.Organization `json:"organization"`
	NeedsOnboarding bool                 `json:"needsOnboarding"`
}

// handleGetMe returns the caller's profile and organization. This read path
// never fails on a missing profile or organization, it reports
// needsOnboarding instead so clients can route to the onboarding flow.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteFaultKind(w, fault.KindUnauthenticated, "not authenticated")
		return
	}

	profile, err := s.tenants.GetProfile(r.Context(), principal.ID)
	if errors.Is(err, tenant.ErrProfileNotFound) {
		httputil.WriteSuccess(w, getMeResponse{
			Success: true,
			User: identitySummary{
				UID:         principal.ID,
				Email:       principal.Email,
				DisplayName: principal.DisplayName,
			},
			NeedsOnboarding: true,
		})
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load profile")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to get user data")
		return
	}

	if profile.OrganizationID == "" {
		httputil.WriteSuccess(w, getMeResponse{
			Success:         true,
			User:            profile,
			NeedsOnboarding: true,
		})
		return
	}

	org, err := s.tenants.GetOrganization(r.Context(), profile.OrganizationID)
	if err != nil && !errors.Is(err, tenant.ErrOrganizationNotFound) {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load organization")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to get user data")
		return
	}

	httputil.WriteSuccess(w, getMeResponse{
		Success:      true,
		User:         profile,
		Organization: org,
	})
}

type usageResponse struct {
	Success bool                `json:"success"`
	Plan    string              `json:"plan"`
	Limit   int                 `json:"limit"`
	Usage   *tenant.UsageLedger `json:"usage"`
}

// handleGetUsage returns the caller's organization usage counters and the
// effective monthly limit.
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteFaultKind(w, fault.KindUnauthenticated, "not authenticated")
		return
	}

	profile, err := s.tenants.GetProfile(r.Context(), principal.ID)
	if errors.Is(err, tenant.ErrProfileNotFound) {
		httputil.WriteFaultKind(w, fault.KindNotFound, "user profile not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load profile")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to get usage")
		return
	}
	if profile.OrganizationID == "" {
		httputil.WriteFaultKind(w, fault.KindPermissionDenied, "user does not belong to an organization")
		return
	}

	org, err := s.tenants.GetOrganization(r.Context(), profile.OrganizationID)
	if errors.Is(err, tenant.ErrOrganizationNotFound) {
		httputil.WriteFaultKind(w, fault.KindNotFound, "organization not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load organization")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to get usage")
		return
	}

	ledger, err := s.tenants.GetUsage(r.Context(), org.ID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load usage")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to get usage")
		return
	}

	plan := org.EffectivePlan()
	httputil.WriteSuccess(w, usageResponse{
		Success: true,
		Plan:    string(plan),
		Limit:   tenant.EffectiveMonthlyLimit(plan, org.Settings),
		Usage:   ledger,
	})
}
