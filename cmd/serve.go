package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/http"
	eventpump "github.com/kychandar/hammer/services/eventPump"
	metricsregistry "github.com/kychandar/hammer/services/metricsRegistry"
	natssession "github.com/kychandar/hammer/services/pubsub/nats"
	websocketbridge "github.com/kychandar/hammer/services/websocketBridge"
	wswritechannelmanager "github.com/kychandar/hammer/services/wsWriteChanManager"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve inspector workspaces over WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return startServer(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(ctx context.Context, cfg *config.Config) error {
	logger, cleanup := NewAsyncLogger(cfg, cfg.Log.Console)
	defer cleanup()
	ctx = slogctx.NewCtx(ctx, logger)

	hostName, err := os.Hostname()
	if err != nil {
		return err
	}

	metrics := metricsregistry.New(hostName)
	writer := wswritechannelmanager.NewClientWriterManager()
	factory := websocketbridge.NewWsBridgeFactory(websocketbridge.Options{
		Pump: eventpump.Options{
			Opener:       natssession.Open,
			PollInterval: cfg.Bridge.PollInterval,
			Metrics:      metrics,
		},
		FrameInterval: cfg.UI.FrameInterval,
		HexColumns:    cfg.UI.HexColumns,
	}, writer)

	logger.InfoContext(ctx, "serve starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
	return http.New(factory, writer, metrics, logger, cfg).Start(ctx)
}
