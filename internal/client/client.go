// Package client implements the caller-visible facade: format(text,
// options, range?) -> text, with option/range normalisation, bounded
// restart-on-failure, telemetry, and identity fallback unless strict mode
// is set. It owns a long-lived worker resource and rebuilds it on failure.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/loom/formatbridge/internal/config"
	"github.com/loom/formatbridge/internal/hostproc"
	"github.com/loom/formatbridge/internal/logging"
	"github.com/loom/formatbridge/internal/protocol"
	"github.com/loom/formatbridge/internal/sharedbuf"
	"github.com/loom/formatbridge/internal/telemetry"
	"github.com/loom/formatbridge/internal/worker"
)

// resultPayload mirrors the worker's caller-facing JSON contract. It is
// decoded here rather than imported because the contract is deliberately
// a boundary, not a shared type.
type resultPayload struct {
	Status      string                `json:"status"`
	Formatted   string                `json:"formatted,omitempty"`
	Diagnostics []protocol.Diagnostic `json:"diagnostics,omitempty"`
	Metrics     *protocol.Metrics     `json:"metrics,omitempty"`
	Message     string                `json:"message,omitempty"`
	ErrorCode   string                `json:"errorCode,omitempty"`
}

// Client supervises one host on the caller's behalf. Concurrent Format
// calls on the same Client are not supported; a Client serialises them
// internally with a mutex so it cannot corrupt its own state even if a
// caller races it.
type Client struct {
	cfg           config.Config
	clientVersion string

	resolver  *hostproc.Cache
	telemetry *telemetry.Sink
	log       *logging.Logger
	pressure  pressureTracker

	mu        sync.Mutex
	w         *worker.Worker
	sessionID string

	warnedFallback bool
}

// New constructs a Client from an explicit Config (tests build these
// directly; production code normally goes through Default()).
func New(cfg config.Config) *Client {
	return &Client{
		cfg:           cfg,
		clientVersion: "1.0.0",
		resolver:      hostproc.NewCache(cfg.HostPath, cfg.HostCache),
		telemetry:     telemetry.NewSink(cfg.TelemetryFile),
		log:           logging.New("client"),
	}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide singleton client, built from the
// environment on first use. Every operation it performs is also reachable
// on a constructed *Client, so tests never need to touch this singleton.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(config.FromEnv())
	}
	return defaultClient
}

// Format is the public operation: normalise, retry, fall back. text is
// returned unchanged on terminal failure unless strict mode propagates the
// error instead.
func (c *Client) Format(text string, opts protocol.FormattingOptions, rng *protocol.Range) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	normOpts := NormalizeOptions(opts)
	normRange := NormalizeRange(rng, len(text))

	attempts := c.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		formatted, ferr := c.attemptOnce(text, normOpts, normRange)
		if ferr == nil {
			return formatted, nil
		}
		lastErr = ferr
		c.log.Debugf("format attempt %d/%d failed: %v", attempt+1, attempts, ferr)
	}

	if c.cfg.Strict {
		_ = c.telemetry.Append(failureRecord(lastErr, normOpts, normRange, "", float64(c.cfg.MemoryBudgetMB)))
		return "", fmt.Errorf("formatbridge: format failed after %d attempt(s): %w", attempts, lastErr)
	}

	if !c.warnedFallback {
		c.log.Warnf("format failed after %d attempt(s), falling back to identity output: %v", attempts, lastErr)
		c.warnedFallback = true
	}
	_ = c.telemetry.Append(failureRecord(lastErr, normOpts, normRange, "", float64(c.cfg.MemoryBudgetMB)))
	return text, nil
}

func (c *Client) attemptOnce(text string, opts protocol.FormattingOptions, rng *protocol.Range) (string, error) {
	if err := c.ensureWorker(); err != nil {
		return "", err
	}

	req := protocol.FormatRequest{Content: text, Range: rng, Options: opts, SessionID: c.sessionID}
	buf, err := c.w.Format(context.Background(), req)
	if err != nil {
		c.disposeWorker()
		return "", err
	}

	waitTimeout := c.cfg.RequestTimeout + c.cfg.HandshakeTimeout + time.Second
	waitCtx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	status, payload, werr := buf.Wait(waitCtx)
	if werr != nil {
		c.disposeWorker()
		return "", werr
	}

	var p resultPayload
	_ = json.Unmarshal(payload, &p)

	if status != sharedbuf.StatusOK {
		guardHit := p.ErrorCode == protocol.ErrMemoryBudgetExceeded
		c.pressure.observeOutcome(guardHit, c.log)
		c.disposeWorker()
		_ = c.telemetry.Append(failureRecord(fmt.Errorf("%s", p.Message), opts, rng, p.ErrorCode, float64(c.cfg.MemoryBudgetMB)))
		if p.Message == "" {
			return "", fmt.Errorf("formatbridge: host returned error %s", p.ErrorCode)
		}
		return "", fmt.Errorf("formatbridge: %s", p.Message)
	}

	for _, d := range p.Diagnostics {
		c.logDiagnostic(d)
	}
	if p.Metrics != nil && p.Metrics.WorkingSetMb != nil {
		c.pressure.observeWorkingSet(*p.Metrics.WorkingSetMb, float64(c.cfg.MemoryBudgetMB), c.log)
	}
	c.pressure.observeOutcome(false, c.log)
	_ = c.telemetry.Append(successRecord(p, opts, rng, float64(c.cfg.MemoryBudgetMB)))
	return p.Formatted, nil
}

func (c *Client) logDiagnostic(d protocol.Diagnostic) {
	switch d.Severity {
	case protocol.SeverityError:
		c.log.Errorf("diagnostic: %s", d.Message)
	case protocol.SeverityWarning:
		c.log.Warnf("diagnostic: %s", d.Message)
	default:
		c.log.Infof("diagnostic: %s", d.Message)
	}
}

func (c *Client) ensureWorker() error {
	if c.w != nil && c.w.Valid() {
		return nil
	}
	if c.w != nil {
		c.disposeWorker()
	}
	resolution, err := c.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("formatbridge: resolving host binary: %w", err)
	}
	c.sessionID = uuid.NewString()
	c.w = worker.New(resolution, worker.Options{
		ClientVersion:     c.clientVersion,
		HostBinaryVersion: resolution.Path,
		LanguageVersion:   "latest",
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		RequestTimeout:    c.cfg.RequestTimeout,
		Log:               logging.New("worker"),
	})
	return nil
}

func (c *Client) disposeWorker() {
	if c.w == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	c.w.Dispose(ctx)
	cancel()
	c.w = nil
}

// Close disposes the underlying worker, if any. Safe to call on an
// already-idle Client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeWorker()
	c.resolver.Close()
}

// Diff renders a unified-ish diff between original and formatted for the
// CLI demo's verbose mode.
func Diff(original, formatted string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, formatted, false)
	return dmp.DiffPrettyText(diffs)
}
