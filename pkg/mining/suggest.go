package mining

import (
	"fmt"
	"regexp"
	"strings"
)

// SuggestionKind is the shape of an automation suggestion.
type SuggestionKind string

const (
	SuggestAlias    SuggestionKind = "alias"
	SuggestFunction SuggestionKind = "function"
	SuggestScript   SuggestionKind = "script"
)

// Suggestion is a ready-to-edit automation for a pattern, built from the
// literal commands of its first occurrence.
type Suggestion struct {
	PatternID string         `json:"pattern_id" yaml:"pattern_id"`
	Kind      SuggestionKind `json:"kind" yaml:"kind"`
	Name      string         `json:"name" yaml:"name"`
	Body      string         `json:"body" yaml:"body"`
}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// maxNameParts caps how many commands contribute to a generated name.
const maxNameParts = 4

// SuggestionKindFor picks the automation shape for a sequence: one plain
// command becomes an alias, a pipeline or a short sequence a function, and
// anything longer a script.
func SuggestionKindFor(sequence []string) SuggestionKind {
	switch {
	case len(sequence) == 1 && !hasMarker(sequence[0]):
		return SuggestAlias
	case len(sequence) <= 3:
		return SuggestFunction
	default:
		return SuggestScript
	}
}

func hasMarker(signature string) bool {
	for _, tok := range strings.Fields(signature) {
		if IsMarker(tok) {
			return true
		}
	}
	return false
}

// Suggest builds suggestions for patterns. stream is the normalized command
// stream the occurrences index into; patterns whose first occurrence falls
// outside it are skipped.
func Suggest(patterns []ScoredPattern, stream []NormalizedCommand) []Suggestion {
	var out []Suggestion
	for i := range patterns {
		p := &patterns[i]
		if len(p.Occurrences) == 0 {
			continue
		}
		start := p.Occurrences[0].StartIndex
		if start < 0 || start+p.Len() > len(stream) {
			continue
		}

		lines := make([]string, p.Len())
		for j := range lines {
			lines[j] = stream[start+j].Raw.Text
		}
		out = append(out, buildSuggestion(p.ID, p.Sequence, lines))
	}
	return out
}

func buildSuggestion(id string, sequence []string, lines []string) Suggestion {
	kind := SuggestionKindFor(sequence)
	s := Suggestion{PatternID: id, Kind: kind}

	switch kind {
	case SuggestAlias:
		s.Name = aliasName(sequence[0])
		s.Body = fmt.Sprintf("alias %s=%s", s.Name, shellQuote(lines[0]))
	case SuggestFunction:
		s.Name = suggestionName(sequence, "_")
		var b strings.Builder
		fmt.Fprintf(&b, "%s() {\n", s.Name)
		for _, line := range lines {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		b.WriteString("}")
		s.Body = b.String()
	case SuggestScript:
		s.Name = suggestionName(sequence, "-") + ".sh"
		var b strings.Builder
		b.WriteString("#!/usr/bin/env bash\nset -euo pipefail\n\n")
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		s.Body = b.String()
	}
	return s
}

// commandWords returns the leading lower-case words of a signature: the
// command name and a kept subcommand.
func commandWords(signature string) []string {
	var words []string
	for _, tok := range strings.Fields(signature) {
		if tok != strings.ToLower(tok) || IsMarker(tok) {
			break
		}
		words = append(words, tok)
	}
	return words
}

func aliasName(signature string) string {
	var b strings.Builder
	for _, word := range commandWords(signature) {
		clean := nameSanitizer.ReplaceAllString(word[strings.LastIndex(word, "/")+1:], "")
		if clean != "" {
			b.WriteByte(clean[0])
		}
	}
	if b.Len() >= 2 {
		return b.String()
	}
	if name := sanitize(strings.Join(commandWords(signature), "_"), "_"); name != "" {
		return "a_" + name
	}
	return "workflow"
}

func suggestionName(sequence []string, sep string) string {
	var parts []string
	for _, signature := range sequence {
		word := strings.Join(commandWords(signature), sep)
		if word == "" || (len(parts) > 0 && parts[len(parts)-1] == word) {
			continue
		}
		parts = append(parts, word)
		if len(parts) == maxNameParts {
			break
		}
	}
	name := sanitize(strings.Join(parts, sep), sep)
	if name == "" {
		return "workflow"
	}
	return name
}

func sanitize(s, sep string) string {
	return strings.Trim(nameSanitizer.ReplaceAllString(strings.ToLower(s), sep), sep)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
