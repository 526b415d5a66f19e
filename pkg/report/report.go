// Package report renders a mining.WorkflowSummary for people and for other
// tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
	"thoreinstein.com/chronicle/pkg/mining"
)

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formats lists every supported format.
var Formats = []string{FormatText, FormatMarkdown, FormatJSON, FormatYAML}

// ResolveFormat picks the output format. An explicit format wins; otherwise
// terminals get text and everything else gets JSON.
func ResolveFormat(format string, terminal bool) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch {
	case format == "md":
		return FormatMarkdown, nil
	case format == "yml":
		return FormatYAML, nil
	case format == "" && terminal:
		return FormatText, nil
	case format == "":
		return FormatJSON, nil
	case slices.Contains(Formats, format):
		return format, nil
	default:
		return "", chronerrors.NewConfigError("output.format",
			fmt.Sprintf("unknown format %q (want one of: %s)", format, strings.Join(Formats, ", ")))
	}
}

// Write renders summary to w in the given format.
func Write(w io.Writer, summary *mining.WorkflowSummary, format string) error {
	switch format {
	case FormatText:
		return writeText(w, summary)
	case FormatMarkdown:
		_, err := io.WriteString(w, FormatMarkdownReport(summary))
		return err
	case FormatJSON:
		return WriteJSON(w, summary)
	case FormatYAML:
		return WriteYAML(w, summary)
	default:
		return chronerrors.NewConfigError("output.format", fmt.Sprintf("unknown format %q", format))
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return chronerrors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return chronerrors.Wrap(err, "failed to encode YAML")
	}
	return enc.Close()
}

// sortedCategories returns category names by total descending, then name.
func sortedCategories(totals map[string]float64) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if totals[a] != totals[b] {
			if totals[a] > totals[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return names
}
