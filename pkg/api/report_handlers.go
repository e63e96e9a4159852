package api

import (
	"errors"
	"net/http"

	"github.com/safesight/hseai/pkg/fault"
	"github.com/safesight/hseai/pkg/httputil"
	"github.com/safesight/hseai/pkg/middleware"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/reports"
	"github.com/safesight/hseai/pkg/tenant"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// handleGenerateReport runs the generation flow for the caller.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteFaultKind(w, fault.KindUnauthenticated, "not authenticated")
		return
	}

	var input reports.GenerateInput
	if err := httputil.ParseJSON(r, &input); err != nil {
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "invalid request body")
		return
	}

	out, err := s.generator.Generate(r.Context(), principal, input)
	if err != nil {
		if fault.KindOf(err) == fault.KindInternal {
			observability.FromContext(r.Context()).WithError(err).Error("report generation failed")
		}
		httputil.WriteFault(w, err)
		return
	}

	httputil.WriteSuccess(w, struct {
		Success bool `json:"success"`
		*reports.GenerateOutput
	}{Success: true, GenerateOutput: out})
}

type listReportsResponse struct {
	Success bool              `json:"success"`
	Reports []*reports.Report `json:"reports"`
	HasMore bool              `json:"hasMore"`
}

// handleListReports pages through the caller's organization reports, newest
// first.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteFaultKind(w, fault.KindUnauthenticated, "not authenticated")
		return
	}

	limit, err := httputil.QueryInt(r, "limit", defaultPageSize)
	if err != nil {
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "limit must be an integer")
		return
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	cursor := httputil.QueryString(r, "cursor", "")

	profile, err := s.tenants.GetProfile(r.Context(), principal.ID)
	if errors.Is(err, tenant.ErrProfileNotFound) {
		httputil.WriteFaultKind(w, fault.KindNotFound, "user profile not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load profile")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to load user profile")
		return
	}
	if profile.OrganizationID == "" {
		httputil.WriteFaultKind(w, fault.KindPermissionDenied, "user does not belong to an organization")
		return
	}

	page, err := s.reports.List(r.Context(), profile.OrganizationID, limit, cursor)
	if errors.Is(err, reports.ErrInvalidCursor) {
		httputil.WriteFaultKind(w, fault.KindInvalidArgument, "unknown pagination cursor")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list reports")
		httputil.WriteFaultKind(w, fault.KindInternal, "failed to list reports")
		return
	}

	httputil.WriteSuccess(w, listReportsResponse{
		Success: true,
		Reports: page.Reports,
		HasMore: page.HasMore,
	})
}
