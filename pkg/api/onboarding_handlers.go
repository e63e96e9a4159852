package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/fault"
	"github.com/safesight/hseai/pkg/httputil"
	"github.com/safesight/hseai/pkg/middleware"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/tenant"
)

const minOrgNameLength = 2

type onboardingRequest struct {
	OrganizationName string `json:"organizationName"`
	OrganizationType string `json:"organizationType"`
}

type onboardingResponse struct {
	Success        bool   `json:"success"`
	OrganizationID string `json:"organizationId"`
	Message        string `json:"message"`
}

// handleOnboarding creates the caller's organization, profile and usage
// ledger. The operation is idempotent per principal: a second call fails with
// already-exists and leaves the first call's records untouched.
func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteFaultKind(w, fault.KindUnauthenticated, "not authenticated")
		return
	}

	var req onboardingRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.recordOnboarding("invalid")
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.OrganizationName)
	if len(name) < minOrgNameLength {
		s.recordOnboarding("invalid")
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "organization name must be at least 2 characters")
		return
	}

	orgType := tenant.OrganizationType(req.OrganizationType)
	if req.OrganizationType == "" {
		orgType = tenant.OrgTypeStartup
	}
	if !tenant.ValidOrganizationType(orgType) {
		s.recordOnboarding("invalid")
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "invalid organization type")
		return
	}

	effective := *principal
	effective.DisplayName = effectiveDisplayName(principal)

	org, _, err := s.tenants.Onboard(r.Context(), &effective, name, orgType)
	if errors.Is(err, tenant.ErrAlreadyOnboarded) {
		s.recordOnboarding("already_exists")
		httputil.WriteFaultKind(w, fault.KindAlreadyExists, "user already belongs to an organization")
		return
	}
	if err != nil {
		s.recordOnboarding("error")
		observability.FromContext(r.Context()).WithError(err).Error("onboarding failed")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to complete onboarding")
		return
	}

	s.recordOnboarding("success")
	httputil.WriteSuccess(w, onboardingResponse{
		Success:        true,
		OrganizationID: org.ID,
		Message:        "onboarding completed successfully",
	})
}

func (s *Server) recordOnboarding(status string) {
	if s.metrics != nil {
		s.metrics.OnboardingsTotal.WithLabelValues(status).Inc()
	}
}

// effectiveDisplayName falls back from the token's name to the local part of
// the email, then to "User".
func effectiveDisplayName(p *auth.Principal) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		if at := strings.Index(p.Email, "@"); at > 0 {
			return p.Email[:at]
		}
	}
	return "User"
}
