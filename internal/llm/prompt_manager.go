package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/sevigo/codezen/internal/core"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

type ModelProvider string
type PromptKey string

const (
	DefaultProvider  ModelProvider = "default"
	CodeReviewPrompt PromptKey     = "code_review"
	ReviewChatPrompt PromptKey     = "review_chat"
)

// PromptManager holds the embedded prompt templates, keyed by task and
// provider. A provider without its own file falls back to "default".
type PromptManager struct {
	prompts  map[PromptKey]map[ModelProvider]*template.Template
	provider ModelProvider
}

type reviewPromptData struct {
	Code       string
	Language   string
	Guidelines []string
}

type chatTurn struct {
	Speaker string
	Message string
}

type chatPromptData struct {
	Code     string
	Review   string
	History  []chatTurn
	Question string
}

// NewPromptManager parses every embedded prompt. provider selects the
// template variant used by the Build methods.
func NewPromptManager(provider ModelProvider) (*PromptManager, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	pm := &PromptManager{
		prompts:  make(map[PromptKey]map[ModelProvider]*template.Template),
		provider: provider,
	}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		fileName := file.Name()
		baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		lastUnderscore := strings.LastIndex(baseName, "_")
		if lastUnderscore <= 0 || lastUnderscore == len(baseName)-1 {
			return nil, fmt.Errorf("invalid prompt filename format: %s (expected 'key_provider.prompt')", fileName)
		}

		key := PromptKey(baseName[:lastUnderscore])
		variant := ModelProvider(baseName[lastUnderscore+1:])

		content, err := promptFiles.ReadFile("prompts/" + fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", fileName, err)
		}

		if err := pm.register(key, variant, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register prompt from file %s: %w", fileName, err)
		}
	}

	return pm, nil
}

func (pm *PromptManager) register(key PromptKey, provider ModelProvider, content string) error {
	tmpl, err := template.New(string(key) + "_" + string(provider)).Option("missingkey=error").Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}

	if _, ok := pm.prompts[key]; !ok {
		pm.prompts[key] = make(map[ModelProvider]*template.Template)
	}

	pm.prompts[key][provider] = tmpl
	return nil
}

func (pm *PromptManager) Get(key PromptKey, provider ModelProvider) (*template.Template, error) {
	taskPrompts, ok := pm.prompts[key]
	if !ok {
		return nil, fmt.Errorf("no prompts found for key '%s'", key)
	}

	if tmpl, ok := taskPrompts[provider]; ok {
		return tmpl, nil
	}
	if tmpl, ok := taskPrompts[DefaultProvider]; ok {
		return tmpl, nil
	}

	return nil, fmt.Errorf("no template found for key '%s' and provider '%s', and no default was available", key, provider)
}

func (pm *PromptManager) Render(key PromptKey, provider ModelProvider, data any) (string, error) {
	tmpl, err := pm.Get(key, provider)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return buf.String(), nil
}

// BuildReviewPrompt renders the review request for a code snapshot. The
// output depends only on its arguments; guidelines keep their order.
func (pm *PromptManager) BuildReviewPrompt(code, language string, guidelines []string) (string, error) {
	return pm.Render(CodeReviewPrompt, pm.provider, reviewPromptData{
		Code:       code,
		Language:   language,
		Guidelines: guidelines,
	})
}

// BuildChatPrompt renders a follow-up question about a completed review.
// history must already be in conversation order.
func (pm *PromptManager) BuildChatPrompt(question string, review *core.Review, history []*core.ReviewComment) (string, error) {
	if review == nil {
		return "", fmt.Errorf("review is required to build a chat prompt")
	}

	data := chatPromptData{
		Code:     review.CodeSnapshot,
		Question: question,
	}
	if review.LLMResponse != nil {
		data.Review = *review.LLMResponse
	}
	for _, c := range history {
		speaker := "You"
		if c.Role == core.RoleUser {
			speaker = "User"
		}
		data.History = append(data.History, chatTurn{Speaker: speaker, Message: c.Message})
	}

	return pm.Render(ReviewChatPrompt, pm.provider, data)
}
