// Package worker implements the client-side worker transport: an isolated
// execution context that owns the host child process, performs the
// initialize handshake once, serializes format requests, demultiplexes
// responses by request id, forwards notifications, and hands results to
// the caller through a shared buffer.
//
// The request-id counter, the waiter map guarded by a mutex, the single
// dispatching read loop, and the EnsureInitialized handshake-coalescing
// pattern follow the same shape as a typical JSON-RPC-over-stdio client,
// generalized here to add deadline enforcement and fatal-notification
// handling.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loom/formatbridge/internal/hostproc"
	"github.com/loom/formatbridge/internal/logging"
	"github.com/loom/formatbridge/internal/protocol"
	"github.com/loom/formatbridge/internal/sharedbuf"
)

// Options configures a Worker.
type Options struct {
	ClientVersion     string
	HostBinaryVersion string
	LanguageVersion   string
	HandshakeTimeout  time.Duration
	RequestTimeout    time.Duration
	Log               *logging.Logger
	// OnError is called for every error-kind notification observed from the
	// host, regardless of severity. Optional; used by the postinstall
	// smoke test to fail on any error seen before success.
	OnError func(protocol.ErrorNotification)
}

type pendingRequest struct {
	command  protocol.Command
	deadline time.Time
	complete func(env *protocol.Envelope, transportErr error)
}

// Worker owns one host child process for its entire lifetime. Once invalid
// it must be discarded by the caller: the client disposes and restarts on
// a fatal condition, it never reuses an invalidated worker.
type Worker struct {
	resolution hostproc.Resolution
	opts       Options
	log        *logging.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	writer      *protocol.Writer
	reader      *protocol.Reader
	exited      chan struct{}
	hostVersion string

	inited  bool
	initCh  chan struct{}
	initErr error

	waitMu  sync.Mutex
	pending map[string]*pendingRequest

	invalid  atomic.Bool
	killOnce sync.Once
	done     chan struct{}
}

// New constructs a Worker that will lazily spawn resolution on first use.
func New(resolution hostproc.Resolution, opts Options) *Worker {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 8 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logging.New("worker")
	}
	w := &Worker{
		resolution: resolution,
		opts:       opts,
		log:        opts.Log,
		pending:    make(map[string]*pendingRequest),
		done:       make(chan struct{}),
	}
	go w.reaperLoop()
	return w
}

// Valid reports whether this worker is still safe to use. Once false, the
// caller must Dispose it and construct a new Worker.
func (w *Worker) Valid() bool { return !w.invalid.Load() }

// Invalidate marks the worker unusable and force-kills the child, exactly
// once. Called on fatal notifications, child exit, and request timeouts.
func (w *Worker) Invalidate() {
	w.invalid.Store(true)
	go w.forceKill()
}

func (w *Worker) forceKill() {
	w.killOnce.Do(func() {
		w.mu.Lock()
		cmd := w.cmd
		w.mu.Unlock()
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	})
}

func (w *Worker) ensureStarted() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil {
		return nil
	}
	cmd := exec.Command(w.resolution.Command, w.resolution.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = &stderrForwarder{log: w.log}
	if err := cmd.Start(); err != nil {
		return err
	}
	w.cmd = cmd
	w.stdin = stdin
	w.writer = protocol.NewWriter(stdin)
	w.reader = protocol.NewReader(stdout)
	w.exited = make(chan struct{})
	go w.readLoop()
	go w.waitForExit()
	return nil
}

func (w *Worker) waitForExit() {
	err := w.cmd.Wait()
	w.mu.Lock()
	exited := w.exited
	code := -1
	if w.cmd.ProcessState != nil {
		code = w.cmd.ProcessState.ExitCode()
	}
	w.mu.Unlock()
	close(exited)

	desc := fmt.Sprintf("host process exited (code=%d)", code)
	if err != nil {
		desc = fmt.Sprintf("host process exited: %v (code=%d)", err, code)
	}
	w.rejectAllPending(fmt.Errorf("%s", desc))
	w.Invalidate()
}

// sendRequest writes a request frame and registers a pending entry with the
// given timeout; complete is invoked at most once: by the read loop (a
// matching response arrived), by the reaper (deadline elapsed), or when all
// pending requests are rejected on host exit or a fatal notification. If the
// frame cannot be written, the entry is removed, complete is not invoked,
// and the write error is returned.
func (w *Worker) sendRequest(cmd protocol.Command, payload any, timeout time.Duration, complete func(*protocol.Envelope, error)) (string, error) {
	if err := w.ensureStarted(); err != nil {
		return "", err
	}
	requestID := uuid.NewString()
	env, err := protocol.NewRequest(requestID, cmd, payload)
	if err != nil {
		return "", err
	}
	pr := &pendingRequest{command: cmd, deadline: time.Now().Add(timeout), complete: complete}
	w.waitMu.Lock()
	w.pending[requestID] = pr
	w.waitMu.Unlock()

	w.mu.Lock()
	writer := w.writer
	w.mu.Unlock()
	if err := writer.WriteFrame(env); err != nil {
		w.removePending(requestID)
		return "", err
	}
	return requestID, nil
}

func (w *Worker) removePending(id string) {
	w.waitMu.Lock()
	delete(w.pending, id)
	w.waitMu.Unlock()
}

func (w *Worker) rejectAllPending(err error) {
	w.waitMu.Lock()
	pending := w.pending
	w.pending = make(map[string]*pendingRequest)
	w.waitMu.Unlock()
	for _, pr := range pending {
		pr.complete(nil, err)
	}
}

func (w *Worker) reaperLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.reapExpired()
		}
	}
}

func (w *Worker) reapExpired() {
	now := time.Now()
	var expired []*pendingRequest
	w.waitMu.Lock()
	for id, pr := range w.pending {
		if now.After(pr.deadline) {
			expired = append(expired, pr)
			delete(w.pending, id)
		}
	}
	w.waitMu.Unlock()
	if len(expired) == 0 {
		return
	}
	for _, pr := range expired {
		pr.complete(nil, fmt.Errorf("request timed out waiting for %s response", pr.command))
	}
	// A host with a timed-out request in flight is presumed poisoned.
	w.Invalidate()
}

// EnsureInitialized performs the initialize handshake exactly once per
// child process. Concurrent callers before the first success share the
// same in-flight attempt.
func (w *Worker) EnsureInitialized(ctx context.Context) error {
	w.mu.Lock()
	if w.inited {
		w.mu.Unlock()
		return nil
	}
	if w.initCh != nil {
		ch := w.initCh
		w.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			w.mu.Lock()
			err := w.initErr
			w.mu.Unlock()
			return err
		}
	}
	ch := make(chan struct{})
	w.initCh = ch
	w.mu.Unlock()

	err := w.doInitialize(ctx)

	w.mu.Lock()
	if err == nil {
		w.inited = true
	}
	w.initErr = err
	w.initCh = nil
	w.mu.Unlock()
	close(ch)
	return err
}

func (w *Worker) doInitialize(ctx context.Context) error {
	resultCh := make(chan error, 1)
	_, err := w.sendRequest(protocol.CmdInitialize, protocol.InitializeRequest{
		ClientVersion:     w.opts.ClientVersion,
		HostBinaryVersion: w.opts.HostBinaryVersion,
		Platform:          runtime.GOOS + "-" + runtime.GOARCH,
		Options:           protocol.InitializeOptions{RoslynLanguageVersion: w.opts.LanguageVersion},
	}, w.opts.HandshakeTimeout, func(env *protocol.Envelope, terr error) {
		if terr != nil {
			resultCh <- terr
			return
		}
		var resp protocol.InitializeResponse
		_ = env.Decode(&resp)
		if !resp.Ok {
			resultCh <- fmt.Errorf("initialize rejected: %s", resp.Reason)
			return
		}
		w.mu.Lock()
		w.hostVersion = resp.HostVersion
		w.mu.Unlock()
		resultCh <- nil
	})
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-resultCh:
		return err
	}
}

// Format issues a fresh format request and arranges for the result to be
// delivered into buf once it arrives. Format itself does not block on the
// result; the caller waits on buf.
func (w *Worker) Format(ctx context.Context, req protocol.FormatRequest) (*sharedbuf.Buffer, error) {
	if err := w.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	buf := sharedbuf.New(sharedbuf.CapacityFor(len(req.Content)))
	_, err := w.sendRequest(protocol.CmdFormat, req, w.opts.RequestTimeout, func(env *protocol.Envelope, terr error) {
		if terr != nil {
			buf.Write(sharedbuf.StatusError, errorPayload(terr))
			return
		}
		var resp protocol.FormatResponse
		_ = env.Decode(&resp)
		if resp.Ok {
			buf.Write(sharedbuf.StatusOK, okPayload(resp))
		} else {
			buf.Write(sharedbuf.StatusError, errorResponsePayload(resp))
		}
	})
	if err != nil {
		buf.Write(sharedbuf.StatusError, errorPayload(err))
		return buf, err
	}
	return buf, nil
}

// Ping issues a ping and waits for its response directly (not via a shared
// buffer: the payload is tiny and internal, so a channel suffices).
func (w *Worker) Ping(ctx context.Context, timestamp *int64) (protocol.PingResponse, error) {
	if err := w.EnsureInitialized(ctx); err != nil {
		return protocol.PingResponse{}, err
	}
	resultCh := make(chan any, 1) // *protocol.PingResponse or error
	_, err := w.sendRequest(protocol.CmdPing, protocol.PingRequest{Timestamp: timestamp}, w.opts.RequestTimeout, func(env *protocol.Envelope, terr error) {
		if terr != nil {
			resultCh <- terr
			return
		}
		var resp protocol.PingResponse
		_ = env.Decode(&resp)
		resultCh <- resp
	})
	if err != nil {
		return protocol.PingResponse{}, err
	}
	select {
	case <-ctx.Done():
		return protocol.PingResponse{}, ctx.Err()
	case v := <-resultCh:
		switch t := v.(type) {
		case error:
			return protocol.PingResponse{}, t
		case protocol.PingResponse:
			return t, nil
		default:
			return protocol.PingResponse{}, fmt.Errorf("unexpected ping result type")
		}
	}
}

// Dispose posts a best-effort shutdown, closes stdin, waits briefly for
// exit, then force-kills.
func (w *Worker) Dispose(ctx context.Context) {
	close(w.done)
	w.mu.Lock()
	cmd := w.cmd
	stdin := w.stdin
	exited := w.exited
	w.mu.Unlock()
	if cmd == nil {
		return
	}

	shCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	resultCh := make(chan error, 1)
	_, err := w.sendRequest(protocol.CmdShutdown, protocol.ShutdownRequest{Reason: "client disposing"}, 1*time.Second, func(env *protocol.Envelope, terr error) {
		resultCh <- terr
	})
	if err == nil {
		select {
		case <-shCtx.Done():
		case <-resultCh:
		}
	}
	cancel()

	if stdin != nil {
		_ = stdin.Close()
	}
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		w.forceKill()
		<-exited
	}
}

func (w *Worker) readLoop() {
	for {
		body, err := w.reader.ReadFrame(context.Background())
		if err != nil {
			return
		}
		var env protocol.Envelope
		if jerr := json.Unmarshal(body, &env); jerr != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeResponse:
			w.dispatchResponse(env)
		case protocol.TypeNotification:
			w.dispatchNotification(env)
		}
	}
}

func (w *Worker) dispatchResponse(env protocol.Envelope) {
	w.waitMu.Lock()
	pr, ok := w.pending[env.RequestID]
	if ok {
		delete(w.pending, env.RequestID)
	}
	w.waitMu.Unlock()
	if ok {
		pr.complete(&env, nil)
	}
}

func (w *Worker) dispatchNotification(env protocol.Envelope) {
	switch env.Command {
	case protocol.CmdLog:
		var n protocol.LogNotification
		_ = env.Decode(&n)
		w.forwardLog(n)
	case protocol.CmdError:
		var n protocol.ErrorNotification
		_ = env.Decode(&n)
		w.log.Warnf("host error notification (%s): %s", n.Severity, n.Message)
		if w.opts.OnError != nil {
			w.opts.OnError(n)
		}
		if n.Severity == protocol.SeverityFatal {
			w.rejectAllPending(fmt.Errorf("fatal host error: %s", n.Message))
			w.Invalidate()
		}
	}
}

func (w *Worker) forwardLog(n protocol.LogNotification) {
	switch n.Level {
	case protocol.LogDebug:
		w.log.Debugf("host: %s", n.Message)
	case protocol.LogInfo:
		w.log.Infof("host: %s", n.Message)
	case protocol.LogWarn:
		w.log.Warnf("host: %s", n.Message)
	case protocol.LogError:
		w.log.Errorf("host: %s", n.Message)
	default:
		w.log.Infof("host: %s", n.Message)
	}
}
