package history

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

// zshExtendedRe matches EXTENDED_HISTORY lines: ": <start>:<elapsed>;<command>".
var zshExtendedRe = regexp.MustCompile(`^:\s*(\d+):(\d+);(.*)$`)

// bashTimestampRe matches the "#<epoch>" lines bash writes when
// HISTTIMEFORMAT is set.
var bashTimestampRe = regexp.MustCompile(`^#(\d{9,})$`)

// untimedSpacing separates commands from history files that carry no
// timestamps.
const untimedSpacing = time.Minute

// maxLineBytes bounds a single history line.
const maxLineBytes = 1 << 20

// zshMeta is the byte zsh uses to escape non-ASCII bytes in its history file.
const zshMeta = 0x83

// fishCmdPrefix starts an entry in a fish history file.
const fishCmdPrefix = "- cmd: "

// ReadHistoryFile parses a zsh, bash or fish history file. Commands without a
// recorded time are spaced one minute apart, ending at the file's
// modification time.
func ReadHistoryFile(path, shell string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause(shell, "Open", "failed to open history file "+path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause(shell, "Open", "failed to stat history file "+path, err)
	}

	var (
		commands []Command
		timed    []bool
	)
	switch shell {
	case SourceZsh:
		commands, timed, err = parseZshHistory(f)
	case SourceBash:
		commands, timed, err = parseBashHistory(f)
	case SourceFish:
		commands, timed, err = parseFishHistory(f)
	default:
		return nil, chronerrors.NewHistoryError(shell, "Parse", "unsupported history file format")
	}
	if err != nil {
		return nil, chronerrors.NewHistoryErrorWithCause(shell, "Parse", "failed to read history file "+path, err)
	}

	assignUntimed(commands, timed, stat.ModTime())
	return commands, nil
}

// ParseZshHistory parses zsh history, in plain or EXTENDED_HISTORY form.
// Multi-line commands are joined with newlines. Commands without a
// timestamp are spaced one minute apart, ending at end.
func ParseZshHistory(r io.Reader, end time.Time) ([]Command, error) {
	commands, timed, err := parseZshHistory(r)
	if err != nil {
		return nil, err
	}
	assignUntimed(commands, timed, end)
	return commands, nil
}

// ParseBashHistory parses bash history. A "#<epoch>" line sets the time of
// the command that follows it; other commands are spaced one minute apart,
// ending at end.
func ParseBashHistory(r io.Reader, end time.Time) ([]Command, error) {
	commands, timed, err := parseBashHistory(r)
	if err != nil {
		return nil, err
	}
	assignUntimed(commands, timed, end)
	return commands, nil
}

// ParseFishHistory parses a fish history file. Entries without a "when"
// field are spaced one minute apart, ending at end.
func ParseFishHistory(r io.Reader, end time.Time) ([]Command, error) {
	commands, timed, err := parseFishHistory(r)
	if err != nil {
		return nil, err
	}
	assignUntimed(commands, timed, end)
	return commands, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func parseZshHistory(r io.Reader) ([]Command, []bool, error) {
	var (
		commands []Command
		timed    []bool
		pending  *strings.Builder
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := unmetafy(scanner.Text())

		// A trailing backslash continues the command on the next line
		if pending != nil {
			pending.WriteString("\n")
			pending.WriteString(strings.TrimSuffix(line, `\`))
			if !strings.HasSuffix(line, `\`) {
				commands[len(commands)-1].Command = pending.String()
				pending = nil
			}
			continue
		}

		var cmd Command
		isTimed := false
		if m := zshExtendedRe.FindStringSubmatch(line); m != nil {
			start, _ := strconv.ParseInt(m[1], 10, 64)
			elapsed, _ := strconv.ParseInt(m[2], 10, 64)
			cmd = Command{Timestamp: time.Unix(start, 0), Duration: elapsed * 1000, Command: m[3]}
			isTimed = true
		} else {
			cmd = Command{Command: line}
		}

		if strings.HasSuffix(cmd.Command, `\`) {
			pending = &strings.Builder{}
			pending.WriteString(strings.TrimSuffix(cmd.Command, `\`))
		}
		if strings.TrimSpace(cmd.Command) == "" && pending == nil {
			continue
		}

		cmd.ID = int64(len(commands) + 1)
		commands = append(commands, cmd)
		timed = append(timed, isTimed)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return commands, timed, nil
}

func parseBashHistory(r io.Reader) ([]Command, []bool, error) {
	var (
		commands []Command
		timed    []bool
		next     *time.Time
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if m := bashTimestampRe.FindStringSubmatch(line); m != nil {
			epoch, _ := strconv.ParseInt(m[1], 10, 64)
			ts := time.Unix(epoch, 0)
			next = &ts
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd := Command{ID: int64(len(commands) + 1), Command: line}
		if next != nil {
			cmd.Timestamp = *next
			next = nil
		}
		commands = append(commands, cmd)
		timed = append(timed, !cmd.Timestamp.IsZero())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return commands, timed, nil
}

// fishEntryMeta is the YAML mapping that follows the command line of a fish
// history entry.
type fishEntryMeta struct {
	When int64 `yaml:"when"`
}

// parseFishHistory reads the "- cmd: <command>" entries of a fish history
// file. Fish writes the command unquoted, so it is taken from the line as
// is; the indented lines after it are decoded as YAML.
func parseFishHistory(r io.Reader) ([]Command, []bool, error) {
	var (
		commands []Command
		timed    []bool
		meta     []string
		inEntry  bool // meta belongs to the last command
	)

	flush := func() {
		if !inEntry || len(meta) == 0 {
			meta = meta[:0]
			return
		}
		var m fishEntryMeta
		if err := yaml.Unmarshal([]byte(strings.Join(meta, "\n")), &m); err == nil && m.When > 0 {
			commands[len(commands)-1].Timestamp = time.Unix(m.When, 0)
			timed[len(timed)-1] = true
		}
		meta = meta[:0]
	}

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if text, ok := strings.CutPrefix(line, fishCmdPrefix); ok {
			flush()
			text = unescapeFish(text)
			inEntry = strings.TrimSpace(text) != ""
			if !inEntry {
				continue
			}
			commands = append(commands, Command{ID: int64(len(commands) + 1), Command: text})
			timed = append(timed, false)
			continue
		}
		if strings.HasPrefix(line, " ") {
			meta = append(meta, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	flush()

	return commands, timed, nil
}

// unescapeFish reverses the escaping fish applies to backslashes and
// newlines in history entries.
func unescapeFish(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// assignUntimed gives every untimed command a synthetic time based on its
// position, so that the last command lands on end.
func assignUntimed(commands []Command, timed []bool, end time.Time) {
	last := len(commands) - 1
	for i := range commands {
		if !timed[i] {
			commands[i].Timestamp = end.Add(-time.Duration(last-i) * untimedSpacing)
		}
	}
}

// unmetafy reverses zsh's metafication of non-ASCII bytes.
func unmetafy(s string) string {
	if strings.IndexByte(s, zshMeta) < 0 {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == zshMeta && i+1 < len(s) {
			i++
			b = append(b, s[i]^32)
			continue
		}
		b = append(b, s[i])
	}
	return string(b)
}
