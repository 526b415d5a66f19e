package report

import (
	"fmt"
	"strings"

	"thoreinstein.com/chronicle/pkg/mining"
)

// FormatMarkdownReport renders summary as a markdown document.
func FormatMarkdownReport(summary *mining.WorkflowSummary) string {
	var md strings.Builder

	p := summary.Profile

	// Header and Summary
	md.WriteString("## Workflow Report\n\n")
	md.WriteString(fmt.Sprintf("Generated: %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05")))

	md.WriteString("### Summary\n")
	md.WriteString(fmt.Sprintf("- **Total Commands:** %d\n", p.TotalCommands))
	md.WriteString(fmt.Sprintf("- **Unique Commands:** %d\n", p.UniqueSignatures))
	md.WriteString(fmt.Sprintf("- **Diversity:** %.1f%%\n", p.Diversity*100))
	md.WriteString(fmt.Sprintf("- **Sessions:** %d\n", p.Sessions))
	if dominant := summary.DominantCategory(); dominant != "" {
		md.WriteString(fmt.Sprintf("- **Dominant Category:** %s\n", dominant))
	}
	md.WriteString("\n")

	if len(summary.TopPatterns) == 0 {
		md.WriteString("_No recurring patterns found._\n")
		return md.String()
	}

	md.WriteString("### Categories\n\n")
	md.WriteString("| Category | Total |\n|---|---|\n")
	for _, category := range sortedCategories(summary.CategoryTotals) {
		md.WriteString(fmt.Sprintf("| %s | %.3f |\n", category, summary.CategoryTotals[category]))
	}
	md.WriteString("\n")

	md.WriteString("### Top Patterns\n\n")
	for i, sp := range summary.TopPatterns {
		md.WriteString(fmt.Sprintf("%d. **%.3f** %s (seen %d times)\n", i+1, sp.Score, sp.Category, sp.SupportCount))
		for _, sig := range sp.Sequence {
			md.WriteString(fmt.Sprintf("   - `%s`\n", sig))
		}
	}
	md.WriteString("\n")

	if len(summary.Suggestions) > 0 {
		md.WriteString("### Suggestions\n\n")
		for _, s := range summary.Suggestions {
			md.WriteString(fmt.Sprintf("#### %s `%s`\n\n", s.Kind, s.Name))
			md.WriteString("```sh\n")
			md.WriteString(strings.TrimRight(s.Body, "\n"))
			md.WriteString("\n```\n\n")
		}
	}

	if len(p.MostFrequent) > 0 {
		md.WriteString("### Most Frequent Commands\n\n")
		for _, sc := range p.MostFrequent {
			md.WriteString(fmt.Sprintf("- `%s` x%d\n", sc.Signature, sc.Count))
		}
		md.WriteString("\n")
	}

	return md.String()
}
