// Command formatbridge-host is a standalone build of the host runtime,
// wired with the trivial whitespace formatter so the whole client<->host
// pipe can be exercised without a real formatting engine.
package main

import (
	"context"
	"os"

	"github.com/loom/formatbridge/internal/config"
	"github.com/loom/formatbridge/internal/formatter"
	"github.com/loom/formatbridge/internal/host"
)

const hostVersion = "1.0.0"

func main() {
	cfg := config.FromEnv()
	h := host.New(host.Options{
		HostVersion:    hostVersion,
		MemoryBudgetMB: float64(cfg.MemoryBudgetMB),
		Formatter:      formatter.Whitespace{},
		In:             os.Stdin,
		Out:            os.Stdout,
	})
	os.Exit(h.Run(context.Background()))
}
