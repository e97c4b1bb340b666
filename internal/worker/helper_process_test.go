package worker

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/loom/formatbridge/internal/protocol"
)

// TestHelperProcess is not a real test. It is re-executed as a subprocess by
// tests in this package (the same os/exec_test.go trick the standard
// library uses to test process-spawning code without a real external
// binary): when GO_WANT_HELPER_PROCESS=1 it behaves like a minimal host
// process instead of running any assertions.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	runFakeHost()
	os.Exit(0)
}

// runFakeHost speaks just enough of the wire protocol to drive Worker
// through its handshake, format, ping, and shutdown paths. GO_HELPER_MODE
// selects misbehavior scenarios the worker must defend against.
func runFakeHost() {
	mode := os.Getenv("GO_HELPER_MODE")
	r := protocol.NewReader(os.Stdin)
	w := protocol.NewWriter(os.Stdout)
	for {
		body, err := r.ReadFrame(context.Background())
		if err != nil {
			return
		}
		var env protocol.Envelope
		if jerr := json.Unmarshal(body, &env); jerr != nil {
			continue
		}
		switch env.Command {
		case protocol.CmdInitialize:
			if mode == "crash-before-init" {
				os.Exit(1)
			}
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.InitializeResponse{Ok: true, HostVersion: "9.9.9"})
			_ = w.WriteFrame(resp)
			if mode == "fatal-after-init" {
				n, _ := protocol.NewNotification(protocol.CmdError, protocol.ErrorNotification{
					Severity: protocol.SeverityFatal, ErrorCode: protocol.ErrMemoryBudgetExceeded, Message: "simulated fatal condition",
				})
				_ = w.WriteFrame(n)
			}
		case protocol.CmdFormat:
			if mode == "hang-format" {
				time.Sleep(5 * time.Second)
			}
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.FormatResponse{Ok: true, Formatted: "formatted!"})
			_ = w.WriteFrame(resp)
		case protocol.CmdPing:
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.PingResponse{Ok: true, Timestamp: 1, UptimeMs: 5})
			_ = w.WriteFrame(resp)
		case protocol.CmdShutdown:
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.ShutdownResponse{Ok: true})
			_ = w.WriteFrame(resp)
			return
		}
	}
}
