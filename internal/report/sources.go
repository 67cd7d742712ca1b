package report

import (
	"regexp"

	"github.com/24601/agent-deep-research/internal/gemini"
)

// urlPattern matches http(s) URLs permissively, stopping at whitespace and
// the punctuation that typically closes a markdown link or quote.
var urlPattern = regexp.MustCompile(`https?://[^\s)>\]"']+`)

// ExtractSources harvests URLs from every step's text, deduplicated with
// first-occurrence order preserved.
func ExtractSources(steps []gemini.OutputStep) []string {
	seen := make(map[string]struct{})
	sources := []string{}
	for _, step := range steps {
		if step.Text == "" {
			continue
		}
		for _, u := range urlPattern.FindAllString(step.Text, -1) {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			sources = append(sources, u)
		}
	}
	return sources
}
