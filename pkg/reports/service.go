package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/fault"
	"github.com/safesight/hseai/pkg/genai"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/tenant"
)

const minPromptLength = 10

// DefaultReportType is used when a generation request carries no type.
const DefaultReportType = "incident"

// GenerateInput is a report generation request for an authenticated principal.
type GenerateInput struct {
	Prompt     string `json:"prompt"`
	ReportType string `json:"reportType"`
}

// GenerateOutput is the successful generation response.
type GenerateOutput struct {
	ReportID string `json:"reportId"`
	Result   string `json:"result"`
	Message  string `json:"message"`
	Usage    Usage  `json:"usage"`
}

// Usage reports the organization counter state after a successful generation.
type Usage struct {
	MonthlyReports int `json:"monthlyReports"`
	Limit          int `json:"limit"`
}

// Generator orchestrates report generation: it validates the request,
// resolves the caller's tenancy, enforces quota, calls the provider and
// commits the report together with the counter advance.
type Generator struct {
	tenants  tenant.Service
	store    Store
	provider genai.Provider
	metrics  *observability.Metrics

	providerTimeout time.Duration
	now             func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithProviderTimeout bounds the provider call.
func WithProviderTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.providerTimeout = d }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator.
func NewGenerator(tenants tenant.Service, store Store, provider genai.Provider, metrics *observability.Metrics, opts ...GeneratorOption) *Generator {
	g := &Generator{
		tenants:         tenants,
		store:           store,
		provider:        provider,
		metrics:         metrics,
		providerTimeout: 90 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the full generation flow for the principal.
//
// Quota is checked twice: an advisory read before the provider call rejects
// requests that have no chance of committing, and the conditional counter
// advance inside the commit transaction is what actually enforces the cap
// under concurrency. A request can pass the advisory check, pay for the
// provider call and still be rejected at commit time when a concurrent
// request took the last slot.
func (g *Generator) Generate(ctx context.Context, principal *auth.Principal, input GenerateInput) (*GenerateOutput, error) {
	start := g.now()

	out, err := g.generate(ctx, principal, input)
	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = string(fault.KindOf(err))
		}
		g.metrics.GenerationsTotal.WithLabelValues(status).Inc()
		g.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		if out != nil {
			g.metrics.ProviderTokensTotal.Add(float64(out.tokens))
		}
	}
	if err != nil {
		return nil, err
	}
	return out.GenerateOutput, nil
}

type generateResult struct {
	*GenerateOutput
	tokens int
}

func (g *Generator) generate(ctx context.Context, principal *auth.Principal, input GenerateInput) (*generateResult, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if len(prompt) < minPromptLength {
		return nil, fault.New(fault.KindInvalidArgument,
			fmt.Sprintf("prompt must be at least %d characters", minPromptLength))
	}
	reportType := strings.TrimSpace(input.ReportType)
	if reportType == "" {
		reportType = DefaultReportType
	}

	profile, err := g.tenants.GetProfile(ctx, principal.ID)
	if errors.Is(err, tenant.ErrProfileNotFound) {
		return nil, fault.New(fault.KindNotFound, "user profile not found")
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "failed to load user profile", err)
	}
	if profile.OrganizationID == "" {
		return nil, fault.New(fault.KindPermissionDenied, "user does not belong to an organization")
	}

	org, err := g.tenants.GetOrganization(ctx, profile.OrganizationID)
	if errors.Is(err, tenant.ErrOrganizationNotFound) {
		return nil, fault.New(fault.KindNotFound, "organization not found")
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "failed to load organization", err)
	}

	plan := org.EffectivePlan()
	monthlyLimit := tenant.EffectiveMonthlyLimit(plan, org.Settings)

	if plan == tenant.PlanFree {
		monthStart := startOfMonth(g.now())
		count, err := g.store.CountByUserSince(ctx, org.ID, principal.ID, monthStart)
		if err != nil {
			return nil, fault.Wrap(fault.KindInternal, "failed to check free plan usage", err)
		}
		if count >= tenant.FreeUserMonthlyLimit() {
			g.recordQuotaRejection("user")
			return nil, fault.New(fault.KindResourceExhausted,
				fmt.Sprintf("free plan limit of %d reports this month reached, upgrade to continue", tenant.FreeUserMonthlyLimit()))
		}
	}

	// Advisory read. The commit below re-checks atomically.
	ledger, err := g.tenants.GetUsage(ctx, org.ID)
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "failed to read usage", err)
	}
	if ledger.MonthlyReports >= monthlyLimit {
		g.recordQuotaRejection("organization")
		return nil, quotaExhausted(plan, monthlyLimit)
	}

	providerCtx, cancel := context.WithTimeout(ctx, g.providerTimeout)
	defer cancel()
	result, err := g.provider.Generate(providerCtx, genai.Request{Prompt: prompt, ReportType: reportType})
	if errors.Is(err, genai.ErrRateLimited) {
		return nil, fault.New(fault.KindResourceExhausted, "AI service rate limit exceeded, try again later")
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "failed to generate report content", err)
	}

	now := g.now().UTC()
	report := &Report{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Title:          deriveTitle(reportType),
		Content:        result.Text,
		Type:           reportType,
		GeneratedBy:    principal.ID,
		AIGenerated:    true,
		Category:       CategorySafety,
		Status:         StatusDraft,
		Metadata: Metadata{
			PromptUsed: prompt,
			AIModel:    result.Model,
			Tokens:     result.Tokens,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := g.store.CreateWithUsage(ctx, report, monthlyLimit); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			g.recordQuotaRejection("organization")
			return nil, quotaExhausted(plan, monthlyLimit)
		}
		return nil, fault.Wrap(fault.KindInternal, "failed to save report", err)
	}

	return &generateResult{
		GenerateOutput: &GenerateOutput{
			ReportID: report.ID,
			Result:   result.Text,
			Message:  "AI report generated successfully",
			Usage: Usage{
				MonthlyReports: ledger.MonthlyReports + 1,
				Limit:          monthlyLimit,
			},
		},
		tokens: result.Tokens,
	}, nil
}

func (g *Generator) recordQuotaRejection(scope string) {
	if g.metrics != nil {
		g.metrics.QuotaRejectionsTotal.WithLabelValues(scope).Inc()
	}
}

func quotaExhausted(plan tenant.PlanTier, limit int) error {
	msg := fmt.Sprintf("monthly limit of %d reports reached, contact us to raise it", limit)
	if plan == tenant.PlanFree {
		msg = fmt.Sprintf("monthly limit of %d reports reached, upgrade to continue", limit)
	}
	return fault.New(fault.KindResourceExhausted, msg)
}

// deriveTitle builds the report title from its type, e.g. "incident" becomes
// "Incident Report".
func deriveTitle(reportType string) string {
	if reportType == "" {
		return "Report"
	}
	return strings.ToUpper(reportType[:1]) + reportType[1:] + " Report"
}

// startOfMonth returns the first instant of t's calendar month in UTC.
func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
