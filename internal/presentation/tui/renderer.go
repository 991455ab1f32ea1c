package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// It falls back to the raw markdown when the terminal renderer is unavailable.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// StepView is the presentational subset of a step render contract.
type StepView struct {
	Title    string
	Subtitle string
	Index    int
	Count    int
	Errors   []string
}

// StepMarkdown formats a step header, progress and attempted errors as markdown.
func StepMarkdown(v StepView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", v.Title)
	if v.Subtitle != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", v.Subtitle)
	}
	fmt.Fprintf(&sb, "Step %d of %d\n", v.Index+1, v.Count)
	if len(v.Errors) > 0 {
		sb.WriteString("\n")
		for _, e := range v.Errors {
			fmt.Fprintf(&sb, "- **%s**\n", e)
		}
	}
	return sb.String()
}
