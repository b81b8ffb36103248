package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kychandar/hammer/config"
	slogzap "github.com/samber/slog-zap/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgFile string
	env     string
	rootCmd = &cobra.Command{
		Use:           "hammer",
		Short:         "Inspector for a pub/sub message bus: subscribe, publish and query from one workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment overlay, merges config.<env>.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// NewAsyncLogger writes JSON to a rotated file and, when console is set,
// errors to stdout. Both writers are buffered.
func NewAsyncLogger(cfg *config.Config, console bool) (*slog.Logger, func()) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// Lumberjack for file rotation
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     28, // days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	bufferedFileWriter := &zapcore.BufferedWriteSyncer{
		WS:            zapcore.AddSync(fileWriter),
		Size:          256 * 1024, // 256KB buffer
		FlushInterval: 5 * time.Second,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), bufferedFileWriter, level),
	}
	syncers := []*zapcore.BufferedWriteSyncer{bufferedFileWriter}

	if console {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		bufferedConsoleWriter := &zapcore.BufferedWriteSyncer{
			WS:            zapcore.AddSync(os.Stdout),
			Size:          64 * 1024, // 64KB buffer
			FlushInterval: 1 * time.Second,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), bufferedConsoleWriter, max(level, zapcore.InfoLevel)))
		syncers = append(syncers, bufferedConsoleWriter)
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	handler := slogzap.Option{
		Level:  slogLevel(level),
		Logger: zapLogger,
	}.NewZapHandler()

	return slog.New(handler), func() {
		_ = zapLogger.Sync()
		for _, s := range syncers {
			_ = s.Stop()
		}
		_ = fileWriter.Close()
	}
}

func slogLevel(level zapcore.Level) slog.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return slog.LevelDebug
	case level == zapcore.InfoLevel:
		return slog.LevelInfo
	case level == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
