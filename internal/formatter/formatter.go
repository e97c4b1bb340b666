// Package formatter defines the opaque Formatter dependency the host
// delegates to; the actual code-formatting algorithm inside the host is
// out of scope here. It also ships one trivial implementation so the rest
// of the bridge can be exercised end to end in tests and the demo CLI
// without a real formatting engine.
package formatter

import (
	"strings"
	"time"

	"github.com/loom/formatbridge/internal/protocol"
)

// Result is what the host's format handler expects back from a Formatter.
type Result struct {
	Formatted        string
	ParseDiagnostics int
	Elapsed          time.Duration
}

// Formatter reformats content (or just the given range of it) per options.
// Implementations must be deterministic and must not mutate content.
type Formatter interface {
	Format(content string, opts protocol.FormattingOptions, rng *protocol.Range) (Result, error)
}

// Whitespace is a minimal Formatter: it trims trailing whitespace from each
// line and normalises leading indentation to the requested tab width /
// tabs-vs-spaces setting. It never touches bytes outside rng when rng is
// non-nil, which makes range formatting observable without a real parser.
type Whitespace struct{}

func (Whitespace) Format(content string, opts protocol.FormattingOptions, rng *protocol.Range) (Result, error) {
	start := time.Now()
	if rng == nil {
		out := reindentLines(content, opts)
		return Result{Formatted: out, ParseDiagnostics: 0, Elapsed: time.Since(start)}, nil
	}
	before := content[:rng.Start]
	target := content[rng.Start:rng.End]
	after := content[rng.End:]
	out := before + reindentLines(target, opts) + after
	return Result{Formatted: out, ParseDiagnostics: 0, Elapsed: time.Since(start)}, nil
}

// reindentLines trims trailing whitespace from every line and converts
// leading indentation between tabs and spaces per opts. It deliberately
// does not attempt real re-flowing: the actual formatting algorithm is an
// opaque dependency the host delegates to.
func reindentLines(s string, opts protocol.FormattingOptions) string {
	lines := strings.Split(s, "\n")
	tabWidth := opts.TabWidth
	if tabWidth <= 0 {
		tabWidth = 1
	}
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		leading := 0
		for leading < len(trimmed) && (trimmed[leading] == ' ' || trimmed[leading] == '\t') {
			leading++
		}
		levels := 0
		for _, c := range trimmed[:leading] {
			if c == '\t' {
				levels += tabWidth
			} else {
				levels++
			}
		}
		levels /= tabWidth
		rest := trimmed[leading:]
		var indent string
		if opts.UseTabs {
			indent = strings.Repeat("\t", levels)
		} else {
			indent = strings.Repeat(" ", levels*tabWidth)
		}
		lines[i] = indent + rest
	}
	return strings.Join(lines, "\n")
}
