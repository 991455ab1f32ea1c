package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Overlay contains run state to visualize on the flow.
type Overlay struct {
	Completed []string
	Hidden    []string
	Current   string
}

// NewOverlay derives the overlay of a run: completed steps, steps hidden by
// the current data and the active step.
func NewOverlay(cfg domain.Config, state *domain.State) *Overlay {
	if state == nil {
		return nil
	}
	visible := make(map[string]bool)
	for _, step := range cfg.Visible(state.Data) {
		visible[step.ID] = true
	}

	o := &Overlay{Completed: state.Completed.IDs(), Current: state.CurrentStepID}
	for _, step := range cfg.Steps {
		if !visible[step.ID] {
			o.Hidden = append(o.Hidden, step.ID)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the declared steps.
// Shapes:
// - Conditional step: {{Hexagon}}
// - Skippable step: ([Stadium])
// - Default: [Rectangle]
// Conditional steps also get a dashed bypass edge from the step before them.
func GenerateMermaid(cfg domain.Config, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	steps := cfg.Steps
	for i, step := range steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case step.ShouldShow != nil:
			opener, closer = "{{", "}}"
		case step.CanSkip:
			opener, closer = "([", "])"
		}

		label := step.ID
		if step.Title != "" {
			label = step.Title
		}
		label = strings.ReplaceAll(label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if i+1 >= len(steps) {
			continue
		}
		next := steps[i+1]
		arrow := "-->"
		if next.ShouldShow != nil {
			arrow = "-. \"if shown\" .->"
		}
		if step.CanSkip {
			arrow = "-- \"next / skip\" -->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(next.ID)))
	}

	// Bypass edges: a hidden step is jumped over to the next visible candidate.
	for i, step := range steps {
		if step.ShouldShow == nil || i == 0 || i+1 >= len(steps) {
			continue
		}
		from := sanitizeMermaidID(steps[i-1].ID)
		to := sanitizeMermaidID(steps[i+1].ID)
		sb.WriteString(fmt.Sprintf("    %s -. \"hidden\" .-> %s\n", from, to))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both themes.
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef hidden fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#616161;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		writeClass(&sb, "completed", overlay.Completed)
		writeClass(&sb, "hidden", overlay.Hidden)
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, class string, ids []string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", safeID, class))
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
