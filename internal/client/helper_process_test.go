package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/loom/formatbridge/internal/protocol"
)

// TestHelperProcess is re-executed as a subprocess by this package's
// integration tests, the same way internal/worker drives its own fake host
// (the os/exec_test.go re-exec pattern): it behaves like a minimal host
// process when GO_WANT_HELPER_PROCESS=1, and is a no-op otherwise.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
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
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.InitializeResponse{Ok: true, HostVersion: "9.9.9"})
			_ = w.WriteFrame(resp)
		case protocol.CmdFormat:
			if mode == "fail-format" {
				resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.FormatResponse{
					Ok: false, ErrorCode: "SIMULATED_FAILURE", Message: "simulated formatter failure",
				})
				_ = w.WriteFrame(resp)
				continue
			}
			var req protocol.FormatRequest
			_ = env.Decode(&req)
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.FormatResponse{
				Ok: true, Formatted: "formatted:" + req.Content,
			})
			_ = w.WriteFrame(resp)
		case protocol.CmdShutdown:
			resp, _ := protocol.NewResponse(env.RequestID, env.Command, protocol.ShutdownResponse{Ok: true})
			_ = w.WriteFrame(resp)
			return
		}
	}
}

// writeHostScript wraps this test binary's own executable in a shell script
// so hostproc.Resolve (which only accepts a bare, argument-less command) can
// still launch it with the flags needed to re-enter TestHelperProcess.
func writeHostScript(t *testing.T, mode string) string {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("GO_HELPER_MODE", mode)

	path := filepath.Join(t.TempDir(), "fake-host.sh")
	script := fmt.Sprintf("#!/bin/sh\nexec %q -test.run=TestHelperProcess --\n", self)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake host script: %v", err)
	}
	return path
}
