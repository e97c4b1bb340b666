package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/loom/formatbridge/internal/config"
	"github.com/loom/formatbridge/internal/hostproc"
	"github.com/loom/formatbridge/internal/protocol"
	"github.com/loom/formatbridge/internal/worker"
)

// smokeCmd runs a postinstall smoke test: spawn the host, initialize
// within 8s, shut down within a 4s exit window. Any error-kind
// notification observed before success fails the test. It exercises the
// exact same protocol and worker code path as production.
var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run the postinstall smoke test against the configured host binary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		resolution, err := hostproc.Resolve(cfg.HostPath, cfg.HostCache)
		if err != nil {
			return fmt.Errorf("smoke: %w", err)
		}

		var sawError atomic.Bool
		w := worker.New(resolution, worker.Options{
			ClientVersion:     "1.0.0",
			HostBinaryVersion: resolution.Path,
			LanguageVersion:   "latest",
			HandshakeTimeout:  8 * time.Second,
			RequestTimeout:    8 * time.Second,
			OnError: func(protocol.ErrorNotification) {
				sawError.Store(true)
			},
		})

		initCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		err = w.EnsureInitialized(initCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("smoke: initialize failed: %w", err)
		}
		if sawError.Load() {
			return fmt.Errorf("smoke: host emitted an error notification before success")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		w.Dispose(shutdownCtx)
		cancel()

		if sawError.Load() {
			return fmt.Errorf("smoke: host emitted an error notification during shutdown")
		}

		fmt.Println("smoke test passed")
		return nil
	},
}
