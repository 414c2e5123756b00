package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexora/nexora-analytics/internal/server"
)

var (
	collectAddr    string
	collectOrigins []string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the development collector",
	Long: `Run a local collector for POST /api/v1/tracking/collect.

Valid payloads are logged and answered with 204; malformed ones get 400,
and payloads that break the wire contract get 422.

Examples:
  nexora-track collect
  nexora-track collect --addr 0.0.0.0:8123 --cors-origin https://shop.example.com`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8123)")
	collectCmd.Flags().StringSliceVar(&collectOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable)")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	addr := cfg.Collect.Addr
	if collectAddr != "" {
		addr = collectAddr
	}
	origins := cfg.Collect.CORSOrigins
	if len(collectOrigins) > 0 {
		origins = collectOrigins
	}

	srv := server.NewServer(server.LogSink{Logger: logger}, addr, logger)
	srv.AllowOrigins(origins...)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
