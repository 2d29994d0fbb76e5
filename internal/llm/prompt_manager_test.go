package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codezen/internal/core"
)

func newTestPromptManager(t *testing.T) *PromptManager {
	t.Helper()
	pm, err := NewPromptManager(DefaultProvider)
	require.NoError(t, err)
	return pm
}

func TestBuildReviewPrompt_Deterministic(t *testing.T) {
	pm := newTestPromptManager(t)
	guidelines := []string{"no bare except", "prefer pathlib"}

	first, err := pm.BuildReviewPrompt("def f(): pass", "python", guidelines)
	require.NoError(t, err)
	second, err := pm.BuildReviewPrompt("def f(): pass", "python", guidelines)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildReviewPrompt_Structure(t *testing.T) {
	pm := newTestPromptManager(t)

	prompt, err := pm.BuildReviewPrompt("def f(): pass", "python", []string{"no bare except", "prefer pathlib"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "You are a senior software engineer"))
	assert.Contains(t, prompt, "IMPORTANT PROJECT-SPECIFIC GUIDELINES:\n- no bare except\n- prefer pathlib\n\nCODE TO REVIEW:")
	assert.Contains(t, prompt, "```python\ndef f(): pass\n```")
	assert.Contains(t, prompt, `"effort_estimation": "X/10"`)
	assert.Contains(t, prompt, "bug, style, performance, security")
	assert.Contains(t, prompt, "10/10: Major rewrite needed")

	// Sections appear in a fixed order.
	order := []string{
		"You are a senior software engineer",
		"IMPORTANT PROJECT-SPECIFIC GUIDELINES:",
		"```python",
		"CRITICAL INSTRUCTION",
		"EFFORT ESTIMATION GUIDE:",
		"ONLY the JSON object.",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		require.Greater(t, idx, last, "marker %q out of order", marker)
		last = idx
	}
}

func TestBuildReviewPrompt_GuidelineOrderMatters(t *testing.T) {
	pm := newTestPromptManager(t)

	ab, err := pm.BuildReviewPrompt("x = 1", "python", []string{"a", "b"})
	require.NoError(t, err)
	ba, err := pm.BuildReviewPrompt("x = 1", "python", []string{"b", "a"})
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
	assert.Less(t, strings.Index(ab, "- a\n"), strings.Index(ab, "- b\n"))
}

func TestBuildReviewPrompt_NoGuidelines(t *testing.T) {
	pm := newTestPromptManager(t)

	prompt, err := pm.BuildReviewPrompt("package main", "go", nil)
	require.NoError(t, err)

	assert.NotContains(t, prompt, "GUIDELINES")
	assert.Contains(t, prompt, "structured feedback.\n\nCODE TO REVIEW:\n```go\npackage main\n```")
}

func TestBuildChatPrompt(t *testing.T) {
	pm := newTestPromptManager(t)
	reply := `{"summary":"ok","findings":[],"effort_estimation":"2/10"}`
	review := &core.Review{CodeSnapshot: "def f(): pass", LLMResponse: &reply}

	t.Run("with history", func(t *testing.T) {
		history := []*core.ReviewComment{
			{Message: "why?", Role: core.RoleUser},
			{Message: "because", Role: core.RoleAI},
		}
		prompt, err := pm.BuildChatPrompt("and now?", review, history)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(prompt, "You are an AI code review assistant."))
		assert.Contains(t, prompt, "ORIGINAL CODE THAT WAS REVIEWED:\n```\ndef f(): pass\n```")
		assert.Contains(t, prompt, "YOUR PREVIOUS REVIEW:\n"+reply+"\n\nCONVERSATION HISTORY:\nUser: why?\nYou: because\n\nUSER'S QUESTION:\nand now?")
		assert.Contains(t, prompt, "concise answer")

		again, err := pm.BuildChatPrompt("and now?", review, history)
		require.NoError(t, err)
		assert.Equal(t, prompt, again)
	})

	t.Run("without history", func(t *testing.T) {
		prompt, err := pm.BuildChatPrompt("why?", review, nil)
		require.NoError(t, err)

		assert.NotContains(t, prompt, "CONVERSATION HISTORY")
		assert.Contains(t, prompt, reply+"\n\nUSER'S QUESTION:\nwhy?")
	})

	t.Run("nil review", func(t *testing.T) {
		_, err := pm.BuildChatPrompt("why?", nil, nil)
		assert.Error(t, err)
	})
}

func TestPromptManager_ProviderFallsBackToDefault(t *testing.T) {
	pm, err := NewPromptManager("gemini")
	require.NoError(t, err)

	tmpl, err := pm.Get(CodeReviewPrompt, "gemini")
	require.NoError(t, err)
	assert.Equal(t, "code_review_default", tmpl.Name())

	_, err = pm.Get("unknown", DefaultProvider)
	assert.Error(t, err)
}
