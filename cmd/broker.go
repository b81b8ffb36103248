package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/kychandar/hammer/config"
	demofeed "github.com/kychandar/hammer/services/demoFeed"
	natssession "github.com/kychandar/hammer/services/pubsub/nats"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
)

const brokerReadyWait = 5 * time.Second

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run an embedded NATS server, optionally with the demo feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("demo") {
			cfg.Broker.Demo, _ = cmd.Flags().GetBool("demo")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBroker(ctx, cfg)
	},
}

func init() {
	brokerCmd.Flags().Bool("demo", false, "publish the demo feed and answer demo queries (overrides broker.demo)")
	rootCmd.AddCommand(brokerCmd)
}

// natsLogger forwards nats-server logs to slog.
type natsLogger struct {
	logger *slog.Logger
}

func (l natsLogger) Noticef(format string, v ...any) { l.logger.Info(fmt.Sprintf(format, v...)) }
func (l natsLogger) Warnf(format string, v ...any)   { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l natsLogger) Fatalf(format string, v ...any)  { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l natsLogger) Errorf(format string, v ...any)  { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l natsLogger) Debugf(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l natsLogger) Tracef(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }

func runBroker(ctx context.Context, cfg *config.Config) error {
	logger, cleanup := NewAsyncLogger(cfg, cfg.Log.Console)
	defer cleanup()
	ctx = slogctx.NewCtx(ctx, logger)

	ns, err := startBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()
	logger.InfoContext(ctx, "broker ready", "url", ns.ClientURL())

	if cfg.Broker.Demo {
		sessCfg := config.DefaultSession()
		sessCfg.URL = ns.ClientURL()
		sessCfg.Name = "hammer-demo"
		sess, err := natssession.Connect(ctx, sessCfg)
		if err != nil {
			return fmt.Errorf("demo session: %w", err)
		}
		defer sess.Close()

		feed := demofeed.New(sess, cfg.Broker.DemoInterval)
		if err := feed.Start(ctx); err != nil {
			return fmt.Errorf("demo feed: %w", err)
		}
		defer feed.Stop(context.WithoutCancel(ctx))
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "broker stopping")
	return nil
}

func startBroker(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:       cfg.Broker.Host,
		Port:       cfg.Broker.Port,
		ServerName: "hammer-broker",
	})
	if err != nil {
		return nil, fmt.Errorf("nats server: %w", err)
	}
	ns.SetLogger(natsLogger{logger: logger.With("component", "nats-server")}, false, false)
	go ns.Start()
	if !ns.ReadyForConnections(brokerReadyWait) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready on %s:%d", cfg.Broker.Host, cfg.Broker.Port)
	}
	return ns, nil
}
