package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/services"
	"github.com/kychandar/hammer/services/archive"
	eventpump "github.com/kychandar/hammer/services/eventPump"
	natssession "github.com/kychandar/hammer/services/pubsub/nats"
	"github.com/kychandar/hammer/tui"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
)

// inspectShutdownWait bounds how long quitting waits for the bridge to
// close the session.
const inspectShutdownWait = 5 * time.Second

var archivePath string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Open the terminal inspector",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if archivePath != "" {
			cfg.Archive.Path = archivePath
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runInspect(ctx, cfg)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&archivePath, "archive", "", "workspace archive to load and save (overrides archive.path)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(ctx context.Context, cfg *config.Config) error {
	// The terminal belongs to the UI; logs go to the file only.
	logger, cleanup := NewAsyncLogger(cfg, false)
	defer cleanup()
	ctx = slogctx.NewCtx(ctx, logger)

	store, err := archive.New(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := openWorkspace(ctx, store, eventpump.Options{
		Opener:       natssession.Open,
		PollInterval: cfg.Bridge.PollInterval,
	})
	if err != nil {
		return err
	}

	runErr := tui.Run(ctx, app, tui.Options{FrameInterval: cfg.UI.FrameInterval, HexColumns: cfg.UI.HexColumns})
	if err := closeWorkspace(ctx, app, store, cfg.UI.FrameInterval); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func openWorkspace(ctx context.Context, store services.ArchiveStore, opts eventpump.Options) (*eventpump.App, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	app := eventpump.New(ctx, opts)
	app.LoadArchive(doc)
	slogctx.FromCtx(ctx).InfoContext(ctx, "workspace loaded",
		"subscribers", len(app.Sub.Items), "puts", len(app.Put.Items), "gets", len(app.Get.Items))
	return app, nil
}

// closeWorkspace disconnects, waits for the bridge to finish, then saves the
// panels. It runs even when ctx is already done.
func closeWorkspace(ctx context.Context, app *eventpump.App, store services.ArchiveStore, frame time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inspectShutdownWait)
	defer cancel()
	app.Shutdown(shutdownCtx, frame)

	if err := store.Save(shutdownCtx, app.ToArchive()); err != nil {
		slogctx.FromCtx(ctx).ErrorContext(ctx, "save workspace", "error", err)
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}
