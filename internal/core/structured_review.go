package core

// FindingType is the category the model assigns to a finding.
type FindingType string

const (
	FindingBug         FindingType = "bug"
	FindingStyle       FindingType = "style"
	FindingPerformance FindingType = "performance"
	FindingSecurity    FindingType = "security"
)

// Finding is a single issue reported by the model for a line of code.
type Finding struct {
	Line       int         `json:"line"`
	Type       FindingType `json:"type"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion"`
}

// StructuredReview is the JSON object the review prompt asks the model to
// return. The raw reply is always what gets persisted; this shape is a
// best-effort view of it.
type StructuredReview struct {
	Summary          string    `json:"summary"`
	Findings         []Finding `json:"findings"`
	EffortEstimation string    `json:"effort_estimation"`
}
