package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sevigo/codezen/internal/core"
)

const (
	effortKey = `"effort_estimation"`
	// Anything longer is not an estimate, most likely the model leaked prose
	// into the value.
	maxEffortLength = 64
)

// ExtractEffortEstimation scans a raw model reply for the effort_estimation
// key and returns the quoted string that follows it. The reply is not
// expected to be valid JSON. Any miss yields nil and never an error.
func ExtractEffortEstimation(reply string) (effort *string) {
	defer func() {
		if r := recover(); r != nil {
			effort = nil
		}
	}()

	idx := strings.Index(reply, effortKey)
	if idx < 0 {
		return nil
	}
	rest := strings.TrimLeft(reply[idx+len(effortKey):], " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return nil
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) {
		return nil
	}
	rest = rest[1:]

	end := strings.IndexByte(rest, '"')
	if end <= 0 || end > maxEffortLength {
		return nil
	}
	value := strings.TrimSpace(rest[:end])
	if value == "" {
		return nil
	}
	return &value
}

// ParseReviewReply decodes the JSON object a model was asked to return. It
// tolerates markdown fences and prose around the object.
func ParseReviewReply(reply string) (*core.StructuredReview, error) {
	raw, err := extractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to extract JSON object: %w", err)
	}

	var review core.StructuredReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, fmt.Errorf("failed to parse review JSON: %w", err)
	}
	if review.Summary == "" && len(review.Findings) == 0 && review.EffortEstimation == "" {
		return nil, fmt.Errorf("failed to parse review: no recognized fields found")
	}
	return &review, nil
}

func extractJSON(raw string) (string, error) {
	raw = stripCodeFence(raw)

	if json.Valid([]byte(raw)) {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	if start == -1 {
		return "", fmt.Errorf("response did not contain valid JSON start")
	}

	// Decode the first complete value and ignore trailing prose.
	decoder := json.NewDecoder(strings.NewReader(raw[start:]))
	var msg json.RawMessage
	if err := decoder.Decode(&msg); err != nil {
		return "", fmt.Errorf("failed to decode JSON from response: %w", err)
	}
	return string(msg), nil
}

// stripCodeFence removes a ```json ... ``` wrapping that models add even when
// told not to.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	startFence := strings.Index(trimmed, "```")
	if startFence == -1 {
		return trimmed
	}
	remaining := trimmed[startFence+3:]
	endFence := strings.Index(remaining, "```")
	if endFence == -1 {
		return trimmed
	}
	inner := strings.TrimSpace(remaining[:endFence])
	if strings.HasPrefix(strings.ToLower(inner), "json") {
		inner = strings.TrimSpace(inner[4:])
	}
	return inner
}
