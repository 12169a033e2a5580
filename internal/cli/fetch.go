package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the collection once and print the grouped items",
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPipeline(cfg, logger, registry)
	serveMetrics(ctx, cfg.Metrics.Addr, registry)

	logger.Info("fetching items", "url", p.client.URL())
	p.controller.Invoke(ctx)
	defer p.logDiagnostics(logger)

	state := p.controller.State()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := renderState(cmd.OutOrStdout(), state); err != nil {
		return err
	}

	if failed, ok := state.(fetchlist.Failed); ok {
		return fmt.Errorf("fetch failed: %w", failed.Err)
	}
	return nil
}
