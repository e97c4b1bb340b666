// Package host implements the persistent formatter process: read a frame,
// dispatch, write the response, repeat, enforcing a memory budget along
// the way. Its wire handling is the dual of what the client-side worker
// transport expects from its peer.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/loom/formatbridge/internal/formatter"
	"github.com/loom/formatbridge/internal/logging"
	"github.com/loom/formatbridge/internal/protocol"
)

// Exit codes for the host process.
const (
	ExitClean        = 0
	ExitMemoryBudget = 86
)

// Options configures a Host. Formatter, In, Out are required; everything
// else has a documented default.
type Options struct {
	HostVersion    string
	MemoryBudgetMB float64
	Formatter      formatter.Formatter
	In             io.Reader
	Out            io.Writer
	Sampler        Sampler
	Log            *logging.Logger
}

// Host is a single instance of the long-running formatter process.
type Host struct {
	opts           Options
	writer         *protocol.Writer
	reader         *protocol.Reader
	start          time.Time
	activeRequests atomic.Int32
}

func New(opts Options) *Host {
	if opts.Sampler == nil {
		opts.Sampler = DefaultSampler
	}
	if opts.MemoryBudgetMB <= 0 {
		opts.MemoryBudgetMB = 512
	}
	if opts.Log == nil {
		opts.Log = logging.New("host")
	}
	return &Host{
		opts:   opts,
		writer: protocol.NewWriter(opts.Out),
		reader: protocol.NewReader(opts.In),
	}
}

// Run drives the host's read-dispatch-write loop until EOF, shutdown, or a
// fatal condition. It returns the process exit code; it never calls
// os.Exit itself so it stays unit-testable.
func (h *Host) Run(ctx context.Context) int {
	h.start = time.Now()
	for {
		body, err := h.reader.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ExitClean
			}
			var ihe *protocol.InvalidHeadersError
			if errors.As(err, &ihe) {
				h.opts.Log.Errorf("invalid headers, terminating: %v", ihe)
				return 1
			}
			h.opts.Log.Errorf("read failed: %v", err)
			return 1
		}

		var env protocol.Envelope
		if jerr := json.Unmarshal(body, &env); jerr != nil {
			h.notifyError(protocol.SeverityRecoverable, protocol.ErrInvalidJSON, "request body is not valid JSON", nil)
			continue
		}
		if verr := protocol.ValidateEnvelope(env); verr != nil {
			h.respondValidationError(env, verr)
			continue
		}
		if env.Type != protocol.TypeRequest {
			h.respondValidationError(env, protocol.NewWireError(protocol.ErrInvalidMessage, "host accepts only request messages", nil))
			continue
		}

		switch env.Command {
		case protocol.CmdInitialize:
			h.handleInitialize(env)
		case protocol.CmdFormat:
			if code, exit := h.handleFormat(env); exit {
				return code
			}
		case protocol.CmdPing:
			h.handlePing(env)
		case protocol.CmdShutdown:
			h.handleShutdown(env)
			return ExitClean
		}
	}
}

// respondValidationError replies with the wire error on the envelope's own
// requestId when recoverable, or emits it as a notification when no id
// could be recovered.
func (h *Host) respondValidationError(env protocol.Envelope, verr error) {
	var we *protocol.WireError
	code, msg := protocol.ErrInvalidMessage, verr.Error()
	if errors.As(verr, &we) {
		code, msg = we.Code, we.Error()
	}
	if env.RequestID != "" {
		resp, _ := protocol.NewResponse(env.RequestID, env.Command, map[string]any{
			"ok": false, "errorCode": code, "message": msg,
		})
		_ = h.writer.WriteFrame(resp)
		return
	}
	h.notifyError(protocol.SeverityRecoverable, code, msg, nil)
}

func (h *Host) notifyLog(level, message string, ctx map[string]any) {
	n, _ := protocol.NewNotification(protocol.CmdLog, protocol.LogNotification{Level: level, Message: message, Context: ctx})
	_ = h.writer.WriteFrame(n)
}

func (h *Host) notifyError(severity, code, message string, details map[string]any) {
	n, _ := protocol.NewNotification(protocol.CmdError, protocol.ErrorNotification{Severity: severity, ErrorCode: code, Message: message, Details: details})
	_ = h.writer.WriteFrame(n)
}

func (h *Host) respond(requestID string, cmd protocol.Command, payload any) {
	resp, err := protocol.NewResponse(requestID, cmd, payload)
	if err != nil {
		h.opts.Log.Errorf("marshal response: %v", err)
		return
	}
	if werr := h.writer.WriteFrame(resp); werr != nil {
		h.opts.Log.Errorf("write response: %v", werr)
	}
}

func (h *Host) uptime() time.Duration { return time.Since(h.start) }
