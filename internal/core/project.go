// Package core defines the domain types shared by the store, the prompt
// builder, the review orchestrator and the HTTP layer.
package core

import "time"

// User is the resolved identity of the caller. Accounts are provisioned
// outside this service; only the id is used for ownership checks.
type User struct {
	ID    int64
	Email string
}

// Project groups reviews and guidelines for one codebase.
type Project struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Language  string    `db:"language"`
	CreatedAt time.Time `db:"created_at"`
	OwnerID   int64     `db:"owner_id"`
}

// Guideline is a free-text rule injected verbatim into every review prompt of
// its project, in insertion order.
type Guideline struct {
	ID        int64     `db:"id"`
	RuleText  string    `db:"rule_text"`
	ProjectID int64     `db:"project_id"`
	CreatedAt time.Time `db:"created_at"`
}

// RuleTexts returns the rule text of each guideline, preserving order.
func RuleTexts(guidelines []*Guideline) []string {
	rules := make([]string, 0, len(guidelines))
	for _, g := range guidelines {
		rules = append(rules, g.RuleText)
	}
	return rules
}
