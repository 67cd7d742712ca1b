// Package report extracts the final text from a research interaction and
// writes it out: a bare markdown file, a structured artifact bundle, or a
// standalone document with per-step sections.
package report

import (
	"fmt"
	"strings"

	"github.com/24601/agent-deep-research/internal/gemini"
)

// FinalText returns the text of the last output step that produced any,
// scanning from the end. ok is false when no step carries text; a completed
// run without text is the caller's warning case, not an error.
func FinalText(steps []gemini.OutputStep) (string, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Text != "" {
			return steps[i].Text, true
		}
	}
	return "", false
}

// BuildDocument assembles the standalone markdown report: a header block,
// each intermediate thinking step under its own section, and the final
// step's text verbatim.
func BuildDocument(id, status string, steps []gemini.OutputStep) string {
	sections := []string{
		"# Deep Research Report\n",
		fmt.Sprintf("**Interaction ID:** `%s`\n", id),
		fmt.Sprintf("**Status:** %s\n", status),
		"---\n",
	}
	for i, step := range steps {
		if step.Text == "" {
			continue
		}
		if i == len(steps)-1 {
			sections = append(sections, step.Text)
			continue
		}
		sections = append(sections,
			fmt.Sprintf("### Research Step %d\n", i+1),
			step.Text,
			"\n---\n")
	}
	return strings.Join(sections, "\n")
}

// TruncateRunes caps s at limit characters. Counting runes keeps multi-byte
// report text from being cut mid-character.
func TruncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
