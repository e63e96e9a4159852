package reports

import "time"

// Generated reports are always created as drafts; review-flow transitions
// live outside this service.
const (
	StatusDraft = "draft"

	CategorySafety = "safety"
)

// Report is a generated HSE report belonging to an organization.
type Report struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	GeneratedBy    string    `json:"generatedBy"`
	AIGenerated    bool      `json:"aiGenerated"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	Metadata       Metadata  `json:"metadata"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Metadata records how the report content was produced.
type Metadata struct {
	PromptUsed string `json:"promptUsed"`
	AIModel    string `json:"aiModel"`
	Tokens     int    `json:"tokens"`
}

// Page is one page of an organization's report listing.
type Page struct {
	Reports []*Report `json:"reports"`
	HasMore bool      `json:"hasMore"`
}
