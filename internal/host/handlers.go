package host

import (
	"strings"
	"time"

	"github.com/loom/formatbridge/internal/protocol"
)

func (h *Host) handleInitialize(env protocol.Envelope) {
	var req protocol.InitializeRequest
	_ = env.Decode(&req)

	h.respond(env.RequestID, env.Command, protocol.InitializeResponse{
		Ok:                    true,
		HostVersion:           h.opts.HostVersion,
		RoslynLanguageVersion: req.Options.RoslynLanguageVersion,
		Capabilities: &protocol.Capabilities{
			SupportsRangeFormatting: true,
			SupportsDiagnostics:     true,
			SupportsTelemetry:       true,
		},
	})
	h.notifyLog(protocol.LogInfo, "initialize completed", map[string]any{
		"clientVersion": req.ClientVersion,
		"platform":      req.Platform,
		"hostVersion":   h.opts.HostVersion,
	})
}

func (h *Host) handlePing(env protocol.Envelope) {
	var req protocol.PingRequest
	_ = env.Decode(&req)
	ts := time.Now().UnixMilli()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	h.respond(env.RequestID, env.Command, protocol.PingResponse{
		Ok:             true,
		Timestamp:      ts,
		UptimeMs:       h.uptime().Milliseconds(),
		ActiveRequests: int(h.activeRequests.Load()),
	})
}

func (h *Host) handleShutdown(env protocol.Envelope) {
	var req protocol.ShutdownRequest
	_ = env.Decode(&req)
	h.respond(env.RequestID, env.Command, protocol.ShutdownResponse{Ok: true})
	h.opts.Log.Infof("shutdown requested: %s", req.Reason)
}

// handleFormat runs the full format pipeline. The bool return reports
// whether the host must terminate (memory guard tripped past the
// 0.9*budget post-collection threshold); code is only meaningful then.
func (h *Host) handleFormat(env protocol.Envelope) (code int, exit bool) {
	h.activeRequests.Add(1)
	defer h.activeRequests.Add(-1)

	var req protocol.FormatRequest
	if err := env.Decode(&req); err != nil {
		h.respondValidationError(env, protocol.NewWireError(protocol.ErrInvalidJSON, "malformed format payload", nil))
		return 0, false
	}

	opts := protocol.ClampOptions(req.Options)
	var rng *protocol.Range
	if protocol.ValidateRange(req.Range, len(req.Content)) {
		rng = req.Range
	}

	before := h.opts.Sampler()

	result, ferr := h.opts.Formatter.Format(req.Content, opts, rng)
	if ferr != nil {
		h.respond(env.RequestID, env.Command, protocol.FormatResponse{
			Ok: false, ErrorCode: protocol.ErrInternal, Message: ferr.Error(),
		})
		return 0, false
	}

	formatted := normalizeLineEndings(result.Formatted, opts.EndOfLine)
	diagnostics := todoDiagnostics(formatted)

	after := h.opts.Sampler()
	delta := after.WorkingSetMB - before.WorkingSetMB
	if delta < 0 {
		delta = 0
	}

	metrics := &protocol.Metrics{
		ElapsedMs:         float64(result.Elapsed) / float64(time.Millisecond),
		ParseDiagnostics:  result.ParseDiagnostics,
		ManagedMemoryMb:   ptr(after.ManagedMB),
		WorkingSetMb:      ptr(after.WorkingSetMB),
		WorkingSetDeltaMb: ptr(delta),
	}

	if after.WorkingSetMB > h.opts.MemoryBudgetMB {
		details := map[string]any{
			"managedMemoryMb":   after.ManagedMB,
			"workingSetMb":      after.WorkingSetMB,
			"workingSetDeltaMb": delta,
			"budgetMb":          h.opts.MemoryBudgetMB,
		}
		msg := "host working set exceeded the configured memory budget"
		h.respond(env.RequestID, env.Command, protocol.FormatResponse{
			Ok: false, ErrorCode: protocol.ErrMemoryBudgetExceeded, Message: msg, Details: details,
		})
		h.notifyError(protocol.SeverityFatal, protocol.ErrMemoryBudgetExceeded, msg, details)

		ForceCollect()
		post := h.opts.Sampler()
		if post.WorkingSetMB > 0.9*h.opts.MemoryBudgetMB {
			return ExitMemoryBudget, true
		}
		return 0, false
	}

	h.respond(env.RequestID, env.Command, protocol.FormatResponse{
		Ok: true, Formatted: formatted, Diagnostics: diagnostics, Metrics: metrics,
	})
	h.notifyLog(protocol.LogDebug, "format completed", map[string]any{
		"elapsedMs":    metrics.ElapsedMs,
		"workingSetMb": after.WorkingSetMB,
	})
	return 0, false
}

func ptr(f float64) *float64 { return &f }

// normalizeLineEndings converts all newlines to the requested style and
// ensures exactly one trailing terminator.
func normalizeLineEndings(s string, eol string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimRight(s, "\n")
	term := "\n"
	if eol == "crlf" {
		term = "\r\n"
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	return s + term
}

// todoDiagnostics emits a warning diagnostic for every literal "TODO"
// occurrence.
func todoDiagnostics(text string) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	const needle = "TODO"
	from := 0
	for {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(needle)
		diags = append(diags, protocol.Diagnostic{
			Severity: protocol.SeverityWarning,
			Message:  "TODO comment detected.",
			Start:    intPtr(start),
			End:      intPtr(end),
		})
		from = end
	}
	return diags
}

func intPtr(i int) *int { return &i }
