package mining

import (
	"bytes"
	"regexp"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Structural classes and markers that make up a signature.
const (
	ClassFlag = "FLAG"
	ClassPath = "PATH"
	ClassNum  = "NUM"
	ClassStr  = "STR"
	ClassArg  = "ARG"

	MarkerPipe  = "PIPE"
	MarkerAnd   = "AND"
	MarkerOr    = "OR"
	MarkerSeq   = "SEQ"
	MarkerRedir = "REDIR"
)

var (
	numericRe    = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)
	fileExtRe    = regexp.MustCompile(`^[^\s=]+\.[A-Za-z0-9]{1,6}$`)
	subcommandRe = regexp.MustCompile(`^[a-z][a-z0-9:_-]*$`)
)

// IsMarker reports whether a signature token joins two commands rather than
// describing one.
func IsMarker(token string) bool {
	switch token {
	case MarkerPipe, MarkerAnd, MarkerOr, MarkerSeq:
		return true
	}
	return false
}

// CommandNames returns the command names that appear in a signature: the
// first token and every token that follows a marker.
func CommandNames(signature string) []string {
	tokens := strings.Fields(signature)
	var names []string
	expectCommand := true
	for _, tok := range tokens {
		if IsMarker(tok) {
			expectCommand = true
			continue
		}
		if expectCommand {
			names = append(names, tok)
			expectCommand = false
		}
	}
	return names
}

// NormalizeOptions tunes how signatures are built.
type NormalizeOptions struct {
	// SubcommandTools lists commands whose first bare-word argument is part
	// of the command identity, e.g. "git" keeps "commit" in "git commit".
	SubcommandTools []string
}

// Normalizer maps raw commands to signatures. A Normalizer is not safe for
// concurrent use.
type Normalizer struct {
	parser      *syntax.Parser
	printer     *syntax.Printer
	subcommands map[string]bool
}

// NewNormalizer creates a Normalizer for the given options.
func NewNormalizer(opts NormalizeOptions) *Normalizer {
	subcommands := make(map[string]bool, len(opts.SubcommandTools))
	for _, tool := range opts.SubcommandTools {
		subcommands[strings.ToLower(tool)] = true
	}
	return &Normalizer{
		parser:      syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false)),
		printer:     syntax.NewPrinter(),
		subcommands: subcommands,
	}
}

// Normalize is a convenience wrapper that builds a one-off Normalizer.
func Normalize(raw RawEvent, opts NormalizeOptions) (NormalizedCommand, bool) {
	return NewNormalizer(opts).Normalize(raw)
}

// Normalize reduces raw to its signature. The second return value is false
// when the command is empty or only a comment and should be discarded.
func (n *Normalizer) Normalize(raw RawEvent) (NormalizedCommand, bool) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return NormalizedCommand{}, false
	}

	b := &signatureBuilder{literals: make(map[string]struct{})}

	file, err := n.parser.Parse(strings.NewReader(text), "")
	degraded := err != nil
	if degraded {
		n.normalizeFields(b, text)
	} else {
		if len(file.Stmts) == 0 {
			return NormalizedCommand{}, false
		}
		for i, stmt := range file.Stmts {
			if i > 0 {
				b.add(MarkerSeq)
			}
			n.walkStmt(b, stmt)
		}
	}

	if len(b.tokens) == 0 {
		return NormalizedCommand{}, false
	}

	return NormalizedCommand{
		Signature: strings.Join(b.tokens, " "),
		Raw:       raw,
		Literals:  b.sortedLiterals(),
		Degraded:  degraded,
	}, true
}

type signatureBuilder struct {
	tokens   []string
	literals map[string]struct{}
}

func (b *signatureBuilder) add(token string) {
	b.tokens = append(b.tokens, token)
}

func (b *signatureBuilder) literal(value string) {
	if value != "" {
		b.literals[value] = struct{}{}
	}
}

func (b *signatureBuilder) sortedLiterals() []string {
	if len(b.literals) == 0 {
		return nil
	}
	out := make([]string, 0, len(b.literals))
	for v := range b.literals {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (n *Normalizer) walkStmt(b *signatureBuilder, stmt *syntax.Stmt) {
	if stmt == nil {
		return
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		n.walkCall(b, cmd)
	case *syntax.BinaryCmd:
		n.walkStmt(b, cmd.X)
		switch cmd.Op {
		case syntax.Pipe, syntax.PipeAll:
			b.add(MarkerPipe)
		case syntax.AndStmt:
			b.add(MarkerAnd)
		case syntax.OrStmt:
			b.add(MarkerOr)
		}
		n.walkStmt(b, cmd.Y)
	case *syntax.TimeClause:
		b.add("time")
		n.walkStmt(b, cmd.Stmt)
	case *syntax.DeclClause:
		b.add(strings.ToLower(cmd.Variant.Value))
		for _, assign := range cmd.Args {
			if assign.Name != nil {
				b.literal(assign.Name.Value)
			}
			b.add(ClassArg)
		}
	case *syntax.Subshell:
		b.add("SUBSHELL")
	case *syntax.Block:
		b.add("BLOCK")
	case *syntax.IfClause:
		b.add("IF")
	case *syntax.WhileClause, *syntax.ForClause:
		b.add("LOOP")
	case *syntax.CaseClause:
		b.add("CASE")
	case *syntax.FuncDecl:
		b.add("FUNC")
	case *syntax.TestClause:
		b.add("TEST")
	case *syntax.ArithmCmd, *syntax.LetClause:
		b.add("ARITH")
	default:
		b.add("COMPOUND")
	}

	for _, redir := range stmt.Redirs {
		b.add(MarkerRedir)
		if redir.Word != nil {
			b.literal(n.wordValue(redir.Word))
		}
	}
}

func (n *Normalizer) walkCall(b *signatureBuilder, call *syntax.CallExpr) {
	if len(call.Args) == 0 {
		// Bare assignment such as FOO=bar
		b.add("ASSIGN")
		return
	}

	name := strings.ToLower(n.wordValue(call.Args[0]))
	b.add(name)

	for i, word := range call.Args[1:] {
		value := n.wordValue(word)
		quoted := isQuoted(word)

		if i == 0 && !quoted && n.subcommands[name] && subcommandRe.MatchString(value) {
			b.add(value)
			continue
		}

		b.literal(value)
		if quoted {
			b.add(ClassStr)
			continue
		}
		b.add(classify(value))
	}
}

// normalizeFields is the fallback for text the shell parser rejects, e.g.
// unbalanced quotes. It splits on whitespace and classifies each field.
func (n *Normalizer) normalizeFields(b *signatureBuilder, text string) {
	expectCommand := true
	argIndex := 0
	var command string

	for _, field := range strings.Fields(text) {
		switch field {
		case "|", "|&":
			b.add(MarkerPipe)
			expectCommand = true
			continue
		case "&&":
			b.add(MarkerAnd)
			expectCommand = true
			continue
		case "||":
			b.add(MarkerOr)
			expectCommand = true
			continue
		case ";":
			b.add(MarkerSeq)
			expectCommand = true
			continue
		}

		if expectCommand {
			command = strings.ToLower(field)
			b.add(command)
			expectCommand = false
			argIndex = 0
			continue
		}

		quoted := strings.HasPrefix(field, `"`) || strings.HasPrefix(field, `'`)
		if argIndex == 0 && !quoted && n.subcommands[command] && subcommandRe.MatchString(field) {
			b.add(field)
			argIndex++
			continue
		}
		argIndex++

		b.literal(strings.Trim(field, `"'`))
		if quoted {
			b.add(ClassStr)
			continue
		}
		b.add(classify(field))
	}
}

// classify assigns an unquoted argument to a structural class.
func classify(value string) string {
	switch {
	case numericRe.MatchString(value):
		return ClassNum
	case len(value) > 1 && value[0] == '-':
		return ClassFlag
	case strings.Contains(value, "/"),
		strings.HasPrefix(value, "~"),
		strings.HasPrefix(value, "."),
		fileExtRe.MatchString(value):
		return ClassPath
	default:
		return ClassArg
	}
}

func isQuoted(word *syntax.Word) bool {
	for _, part := range word.Parts {
		switch part.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			return true
		}
	}
	return false
}

// wordValue returns the literal value of a word with quotes removed.
// Expansions are kept in their source form.
func (n *Normalizer) wordValue(word *syntax.Word) string {
	if lit := word.Lit(); lit != "" {
		return lit
	}

	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
					continue
				}
				sb.WriteString(n.print(inner))
			}
		default:
			sb.WriteString(n.print(part))
		}
	}
	return sb.String()
}

func (n *Normalizer) print(node syntax.Node) string {
	var buf bytes.Buffer
	if err := n.printer.Print(&buf, node); err != nil {
		return ""
	}
	return buf.String()
}
