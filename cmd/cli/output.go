package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/llm"
)

const timeLayout = "2006-01-02 15:04:05"

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

func printProject(p *core.Project) {
	boldColor.Printf("#%d %s", p.ID, p.Name)
	dimColor.Printf("  [%s]  created %s\n", p.Language, p.CreatedAt.Format(timeLayout))
}

func printGuidelines(guidelines []*core.Guideline) {
	if len(guidelines) == 0 {
		dimColor.Println("   No guidelines.")
		return
	}
	for i, g := range guidelines {
		dimColor.Printf("   %d. ", i+1)
		infoColor.Println(g.RuleText)
	}
}

func printReviewLine(r *core.Review) {
	boldColor.Printf("#%d", r.ID)
	dimColor.Printf("  %s  ", r.Timestamp.Format(timeLayout))
	if r.IsPending() {
		warnColor.Print("pending")
	} else {
		successColor.Print("completed")
	}
	if r.EffortEstimation != nil {
		dimColor.Printf("  effort %s", *r.EffortEstimation)
	}
	fmt.Println()
}

func printReview(r *core.Review) {
	separator := strings.Repeat("═", 60)
	thinSeparator := strings.Repeat("─", 60)

	fmt.Println()
	titleColor.Println(separator)
	titleColor.Printf("📋 REVIEW #%d\n", r.ID)
	titleColor.Println(separator)
	dimColor.Printf("   Submitted: %s\n", r.Timestamp.Format(timeLayout))
	if r.EffortEstimation != nil {
		dimColor.Printf("   Effort:    %s\n", *r.EffortEstimation)
	}

	if r.LLMResponse == nil {
		fmt.Println()
		warnColor.Println("⏳ Review is still pending.")
		return
	}

	parsed, err := llm.ParseReviewReply(*r.LLMResponse)
	if err != nil {
		// The model ignored the JSON format; show what it said.
		fmt.Println()
		fmt.Print(renderMarkdown(*r.LLMResponse))
		return
	}

	fmt.Println()
	infoColor.Println(parsed.Summary)

	if len(parsed.Findings) == 0 {
		fmt.Println()
		successColor.Println("✅ No issues found!")
		return
	}

	fmt.Println()
	warnColor.Println(thinSeparator)
	warnColor.Printf("💡 FINDINGS (%d)\n", len(parsed.Findings))
	warnColor.Println(thinSeparator)

	for i, f := range parsed.Findings {
		fmt.Println()
		printTypeBadge(f.Type)
		dimColor.Printf(" line %d\n", f.Line)
		infoColor.Printf("%s\n", f.Message)
		if f.Suggestion != "" {
			successColor.Printf("→ %s\n", f.Suggestion)
		}
		if i < len(parsed.Findings)-1 {
			dimColor.Println(strings.Repeat("─", 40))
		}
	}
	fmt.Println()
}

func printTypeBadge(t core.FindingType) {
	label := strings.ToUpper(string(t))
	switch t {
	case core.FindingSecurity:
		color.New(color.BgRed, color.FgWhite, color.Bold).Printf(" %s ", label)
	case core.FindingBug:
		color.New(color.BgHiRed, color.FgWhite).Printf(" %s ", label)
	case core.FindingPerformance:
		color.New(color.BgYellow, color.FgBlack).Printf(" %s ", label)
	case core.FindingStyle:
		color.New(color.BgGreen, color.FgWhite).Printf(" %s ", label)
	default:
		color.New(color.BgWhite, color.FgBlack).Printf(" %s ", label)
	}
}

func printConversation(comments []*core.ReviewComment) {
	if len(comments) == 0 {
		return
	}
	fmt.Println()
	titleColor.Println("💬 CONVERSATION")
	for _, c := range comments {
		fmt.Println()
		if c.Role == core.RoleUser {
			boldColor.Print("You")
		} else {
			successColor.Print("AI")
		}
		dimColor.Printf("  %s\n", c.Timestamp.Format(timeLayout))
		if c.Role == core.RoleAI {
			fmt.Print(renderMarkdown(c.Message))
		} else {
			infoColor.Println(c.Message)
		}
	}
}

// renderMarkdown formats model output for the terminal, falling back to the
// raw text.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md + "\n"
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}
