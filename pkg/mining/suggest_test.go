package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionKindFor(t *testing.T) {
	assert.Equal(t, SuggestAlias, SuggestionKindFor([]string{"ls FLAG"}))
	assert.Equal(t, SuggestFunction, SuggestionKindFor([]string{"ps FLAG PIPE grep ARG"}))
	assert.Equal(t, SuggestFunction, SuggestionKindFor([]string{"a", "b"}))
	assert.Equal(t, SuggestFunction, SuggestionKindFor([]string{"a", "b", "c"}))
	assert.Equal(t, SuggestScript, SuggestionKindFor([]string{"a", "b", "c", "d"}))
}

func TestSuggest_UsesFirstOccurrenceText(t *testing.T) {
	opts := testNormalizeOptions()
	texts := []string{
		"git add .",
		`git commit -m "first"`,
		"git push",
		"git add ./src",
		`git commit -m "second"`,
		"git push",
	}
	var stream []NormalizedCommand
	for _, text := range texts {
		cmd, ok := Normalize(RawEvent{Text: text, SessionID: "s1"}, opts)
		require.True(t, ok)
		stream = append(stream, cmd)
	}

	catalogue := Aggregate(Index(stream, 3, nil), 2)
	p := findPattern(catalogue, "git add PATH", "git commit FLAG STR", "git push")
	require.NotNil(t, p)

	suggestions := Suggest([]ScoredPattern{{Pattern: *p}}, stream)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, p.ID, s.PatternID)
	assert.Equal(t, SuggestFunction, s.Kind)
	assert.Equal(t, "git_add_git_commit_git_push", s.Name)
	assert.Contains(t, s.Body, "git add .\n")
	assert.Contains(t, s.Body, `git commit -m "first"`)
	assert.NotContains(t, s.Body, "second")
}

func TestSuggest_Alias(t *testing.T) {
	stream := []NormalizedCommand{
		{Signature: "kubectl get ARG", Raw: RawEvent{Text: "kubectl get pods"}},
	}
	p := Pattern{ID: "p1", Sequence: []string{"kubectl get ARG"}, Occurrences: []Occurrence{{StartIndex: 0}}, SupportCount: 1}

	suggestions := Suggest([]ScoredPattern{{Pattern: p}}, stream)
	require.Len(t, suggestions, 1)
	assert.Equal(t, SuggestAlias, suggestions[0].Kind)
	assert.Equal(t, "kg", suggestions[0].Name)
	assert.Equal(t, "alias kg='kubectl get pods'", suggestions[0].Body)
}

func TestSuggest_ScriptAndQuoting(t *testing.T) {
	sigs := []string{"cd PATH", "make build", "make test", "echo STR"}
	texts := []string{"cd ~/src", "make build", "make test", `echo 'it''s done'`}
	stream := make([]NormalizedCommand, len(sigs))
	for i := range sigs {
		stream[i] = NormalizedCommand{Signature: sigs[i], Raw: RawEvent{Text: texts[i]}}
	}
	p := Pattern{ID: "p2", Sequence: sigs, Occurrences: []Occurrence{{StartIndex: 0}}, SupportCount: 1}

	suggestions := Suggest([]ScoredPattern{{Pattern: p}}, stream)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, SuggestScript, s.Kind)
	assert.Equal(t, "cd-make-build-make-test-echo.sh", s.Name)
	assert.True(t, len(s.Body) > 0 && s.Body[:2] == "#!")
	assert.Contains(t, s.Body, "cd ~/src\nmake build\nmake test\n")

	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestSuggest_SkipsOccurrenceOutsideStream(t *testing.T) {
	p := Pattern{ID: "p3", Sequence: []string{"a", "b"}, Occurrences: []Occurrence{{StartIndex: 5}}, SupportCount: 1}
	assert.Empty(t, Suggest([]ScoredPattern{{Pattern: p}}, nil))
}
