package mining

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

// CategoryOther is the bucket for sequences no rule matches.
const CategoryOther = "other"

// Classifier assigns a signature sequence to exactly one category.
// Implementations must be pure.
type Classifier interface {
	Classify(sequence []string) string
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(sequence []string) string

// Classify calls f(sequence).
func (f ClassifierFunc) Classify(sequence []string) string {
	return f(sequence)
}

// DefaultCategoryOrder is the tie-break order of the built-in categories.
var DefaultCategoryOrder = []string{
	"version-control",
	"build",
	"containers",
	"navigation",
	"file-management",
	"editing",
	"network",
	"database",
	"monitoring",
	"system",
}

// DefaultCategories returns the built-in command table.
func DefaultCategories() map[string][]string {
	return map[string][]string{
		"version-control": {"git", "gh", "hg", "svn", "tig", "lazygit"},
		"build": {
			"make", "go", "cargo", "npm", "npx", "yarn", "pnpm", "node", "mvn", "gradle",
			"python", "python3", "pip", "pip3", "uv", "poetry", "pytest", "bundle", "rake", "just",
		},
		"containers":      {"docker", "podman", "kubectl", "k9s", "helm", "docker-compose", "incus", "lxc"},
		"navigation":      {"cd", "ls", "pwd", "pushd", "popd", "z", "tree", "find", "fd"},
		"file-management": {"cp", "mv", "rm", "mkdir", "rmdir", "touch", "chmod", "chown", "ln", "tar", "unzip", "zip", "cat", "less", "grep", "rg", "sed", "awk", "head", "tail"},
		"editing":         {"vim", "nvim", "vi", "nano", "emacs", "code", "subl", "hx"},
		"network":         {"ssh", "scp", "rsync", "curl", "wget", "ping", "telnet", "dig", "nc"},
		"database":        {"mysql", "psql", "sqlite3", "sqlite", "mongo", "mongosh", "redis-cli"},
		"monitoring":      {"top", "htop", "btop", "ps", "df", "du", "netstat", "lsof", "free"},
		"system":          {"sudo", "apt", "apt-get", "brew", "yum", "dnf", "systemctl", "launchctl", "kill", "pkill"},
	}
}

// KeywordClassifier votes on a category by looking up every command name in
// the sequence. The category with the most votes wins; ties go to the
// category listed first.
type KeywordClassifier struct {
	order  []string
	lookup map[string]int // command name -> index into order
}

// NewKeywordClassifier builds a classifier from a category table. Categories
// named in order come first; the rest follow alphabetically. A command
// listed under several categories belongs to the first.
func NewKeywordClassifier(categories map[string][]string, order []string) *KeywordClassifier {
	var full []string
	for _, name := range order {
		if _, ok := categories[name]; ok && !slices.Contains(full, name) {
			full = append(full, name)
		}
	}
	var rest []string
	for name := range categories {
		if !slices.Contains(full, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	full = append(full, rest...)

	lookup := make(map[string]int)
	for i, name := range full {
		for _, cmd := range categories[name] {
			cmd = strings.ToLower(cmd)
			if _, taken := lookup[cmd]; !taken {
				lookup[cmd] = i
			}
		}
	}

	return &KeywordClassifier{order: full, lookup: lookup}
}

// DefaultKeywordClassifier returns a KeywordClassifier over the built-in
// table.
func DefaultKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifier(DefaultCategories(), DefaultCategoryOrder)
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(sequence []string) string {
	votes := make([]int, len(k.order))
	matched := false
	for _, signature := range sequence {
		for _, name := range CommandNames(signature) {
			if i, ok := k.lookup[path.Base(name)]; ok {
				votes[i]++
				matched = true
			}
		}
	}
	if !matched {
		return CategoryOther
	}

	best := 0
	for i, v := range votes {
		if v > votes[best] {
			best = i
		}
	}
	return k.order[best]
}

type regexRule struct {
	category string
	re       *regexp.Regexp
}

// RegexClassifier matches ordered rules against the sequence joined with
// newlines, one signature per line. The first matching rule wins.
type RegexClassifier struct {
	rules []regexRule
}

// NewRegexClassifier compiles rules. An invalid expression is a
// configuration error.
func NewRegexClassifier(rules []config.ClassifierRule) (*RegexClassifier, error) {
	compiled := make([]regexRule, 0, len(rules))
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, chronerrors.NewConfigErrorWithCause("classifier.rules",
				fmt.Sprintf("rule %d has an invalid pattern", i), err)
		}
		compiled = append(compiled, regexRule{category: rule.Category, re: re})
	}
	return &RegexClassifier{rules: compiled}, nil
}

// Classify implements Classifier.
func (r *RegexClassifier) Classify(sequence []string) string {
	joined := strings.Join(sequence, "\n")
	for _, rule := range r.rules {
		if rule.re.MatchString(joined) {
			return rule.category
		}
	}
	return CategoryOther
}

// NewClassifier builds the classifier selected by cfg. The keyword scheme
// uses the built-in table unless categories are configured.
func NewClassifier(cfg *config.ClassifierConfig) (Classifier, error) {
	switch cfg.Scheme {
	case "", "keyword":
		if len(cfg.Categories) == 0 {
			return DefaultKeywordClassifier(), nil
		}
		return NewKeywordClassifier(cfg.Categories, cfg.Order), nil
	case "regex":
		rc, err := NewRegexClassifier(cfg.Rules)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, chronerrors.NewConfigError("classifier.scheme", "must be one of: keyword, regex")
	}
}
