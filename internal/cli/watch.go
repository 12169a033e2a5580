package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every state change and refresh the collection periodically",
	Long: `watch subscribes to the fetch state, prints every transition and refreshes
on each interval. After a failure the next tick uses the failure's retry.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPipeline(cfg, logger, registry)
	serveMetrics(ctx, cfg.Metrics.Addr, registry)

	states := p.controller.Subscribe(ctx)
	p.controller.Refresh(ctx)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var retry fetchlist.RetryFunc
	out := cmd.OutOrStdout()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil

		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := renderState(out, state); err != nil {
				return err
			}
			retry = nil
			switch s := state.(type) {
			case fetchlist.Failed:
				retry = s.Retry
				p.logDiagnostics(logger)
			case fetchlist.Ready:
				p.logDiagnostics(logger)
			}

		case <-ticker.C:
			if retry != nil {
				go retry(ctx)
				continue
			}
			p.controller.Refresh(ctx)
		}
	}
}
