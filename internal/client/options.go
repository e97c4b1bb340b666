package client

import "github.com/loom/formatbridge/internal/protocol"

const defaultTabWidth = 4

// NormalizeOptions fills in defaults and clamps out-of-range values.
// Normalisation happens here, once, before a request ever reaches the
// worker or host; the host's own clamp is only a defensive fallback for a
// foreign process.
func NormalizeOptions(o protocol.FormattingOptions) protocol.FormattingOptions {
	out := o
	if out.PrintWidth <= 0 {
		out.PrintWidth = 80
	} else if out.PrintWidth < 40 {
		out.PrintWidth = 40
	}
	if out.TabWidth <= 0 {
		out.TabWidth = defaultTabWidth
	} else if out.TabWidth > 16 {
		out.TabWidth = 16
	}
	if out.EndOfLine != "lf" && out.EndOfLine != "crlf" {
		out.EndOfLine = "lf"
	}
	return out
}

// NormalizeRange returns nil if the range covers the whole document,
// otherwise a copy clamped to [0, textLen].
func NormalizeRange(r *protocol.Range, textLen int) *protocol.Range {
	if r == nil {
		return nil
	}
	start := r.Start
	if start < 0 {
		start = 0
	}
	end := r.End
	if end > textLen {
		end = textLen
	}
	if end <= start {
		return nil
	}
	if start == 0 && end == textLen {
		return nil
	}
	return &protocol.Range{Start: start, End: end}
}
