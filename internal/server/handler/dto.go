package handler

import (
	"time"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/llm"
)

const timeLayout = "2006-01-02T15:04:05"

// Timestamp renders times without zone or fractional seconds.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timeLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	parsed, err := time.Parse(`"`+timeLayout+`"`, string(b))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

type createProjectRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type addGuidelineRequest struct {
	RuleText string `json:"rule_text"`
}

type submitReviewRequest struct {
	Code string `json:"code"`
}

type askRequest struct {
	Question string `json:"question"`
}

type ProjectResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	CreatedAt Timestamp `json:"created_at"`
}

type GuidelineResponse struct {
	ID        int64     `json:"id"`
	RuleText  string    `json:"rule_text"`
	CreatedAt Timestamp `json:"created_at"`
}

type ReviewResponse struct {
	ID               int64                  `json:"id"`
	ProjectID        int64                  `json:"project_id"`
	Timestamp        Timestamp              `json:"timestamp"`
	Status           core.ReviewStatus      `json:"status"`
	CodeSnapshot     string                 `json:"code_snapshot"`
	LLMResponse      *string                `json:"llm_response"`
	EffortEstimation *string                `json:"effort_estimation"`
	CompletedAt      *Timestamp             `json:"completed_at,omitempty"`
	Parsed           *core.StructuredReview `json:"parsed,omitempty"`
}

type CommentResponse struct {
	ID        int64     `json:"id"`
	Seq       int64     `json:"seq"`
	Role      core.Role `json:"role"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

type AskResponse struct {
	Question CommentResponse   `json:"question"`
	Answer   CommentResponse   `json:"answer"`
	History  []CommentResponse `json:"history"`
	Fallback bool              `json:"fallback"`
}

func toProject(p *core.Project) ProjectResponse {
	return ProjectResponse{ID: p.ID, Name: p.Name, Language: p.Language, CreatedAt: Timestamp(p.CreatedAt)}
}

func toGuideline(g *core.Guideline) GuidelineResponse {
	return GuidelineResponse{ID: g.ID, RuleText: g.RuleText, CreatedAt: Timestamp(g.CreatedAt)}
}

// toReview converts a review. withParsed adds the structured view of the
// reply when it decodes.
func toReview(r *core.Review, withParsed bool) ReviewResponse {
	resp := ReviewResponse{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Timestamp:        Timestamp(r.Timestamp),
		Status:           r.Status,
		CodeSnapshot:     r.CodeSnapshot,
		LLMResponse:      r.LLMResponse,
		EffortEstimation: r.EffortEstimation,
	}
	if r.CompletedAt != nil {
		ts := Timestamp(*r.CompletedAt)
		resp.CompletedAt = &ts
	}
	if withParsed && r.LLMResponse != nil {
		if parsed, err := llm.ParseReviewReply(*r.LLMResponse); err == nil {
			resp.Parsed = parsed
		}
	}
	return resp
}

func toComment(c *core.ReviewComment) CommentResponse {
	return CommentResponse{ID: c.ID, Seq: c.Seq, Role: c.Role, Message: c.Message, Timestamp: Timestamp(c.Timestamp)}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
