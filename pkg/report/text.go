package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"thoreinstein.com/chronicle/pkg/mining"
)

func writeText(w io.Writer, summary *mining.WorkflowSummary) error {
	fmt.Fprintf(w, "Workflow report (%s)\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05"))

	p := summary.Profile
	fmt.Fprintf(w, "Commands: %d  Unique: %d  Diversity: %.2f  Sessions: %d\n",
		p.TotalCommands, p.UniqueSignatures, p.Diversity, p.Sessions)
	if p.DegradedCount > 0 {
		fmt.Fprintf(w, "Unparsed commands: %d\n", p.DegradedCount)
	}
	fmt.Fprintln(w)

	if len(summary.TopPatterns) == 0 {
		fmt.Fprintln(w, "No recurring patterns found.")
		return nil
	}

	fmt.Fprintln(w, "Categories:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, category := range sortedCategories(summary.CategoryTotals) {
		fmt.Fprintf(tw, "  %s\t%.3f\n", category, summary.CategoryTotals[category])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Top patterns:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tSCORE\tSUPPORT\tLEN\tCATEGORY\tSEQUENCE")
	for i, sp := range summary.TopPatterns {
		fmt.Fprintf(tw, "  %d\t%.3f\t%d\t%d\t%s\t%s\n",
			i+1, sp.Score, sp.SupportCount, sp.Len(), sp.Category, sp.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(summary.Suggestions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range summary.Suggestions {
			fmt.Fprintf(w, "  [%s] %s\n", s.Kind, s.Name)
			for _, line := range strings.Split(strings.TrimRight(s.Body, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	return nil
}
