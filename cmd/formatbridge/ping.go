package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loom/formatbridge/internal/config"
	"github.com/loom/formatbridge/internal/hostproc"
	"github.com/loom/formatbridge/internal/worker"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Spawn the host, handshake, and report its reported uptime",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		resolution, err := hostproc.Resolve(cfg.HostPath, cfg.HostCache)
		if err != nil {
			return err
		}
		w := worker.New(resolution, worker.Options{
			ClientVersion:     "1.0.0",
			HostBinaryVersion: resolution.Path,
			LanguageVersion:   "latest",
			HandshakeTimeout:  cfg.HandshakeTimeout,
			RequestTimeout:    cfg.RequestTimeout,
		})
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			w.Dispose(ctx)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout+cfg.RequestTimeout)
		defer cancel()
		resp, err := w.Ping(ctx, nil)
		if err != nil {
			return err
		}
		fmt.Printf("host uptime=%dms activeRequests=%d\n", resp.UptimeMs, resp.ActiveRequests)
		return nil
	},
}
