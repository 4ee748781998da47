package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/verbi/internal/app"
	"github.com/MrWong99/verbi/internal/audio"
	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
	"github.com/MrWong99/verbi/internal/observe"
)

var (
	runServe bool
	runWatch bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a spoken conversation",
	Long: `Start a spoken conversation with the assistant.

Each turn records with audio.record_command, transcribes, replies and plays
the answer with audio.play_command. Streaming speech providers play through
audio.pcm_play_command instead. Say one of assistant.exit_words to stop.

While running, /healthz, /readyz and /metrics are served on
server.listen_addr, and the config file is watched for changes to providers,
exit words and log level.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runConversation(ctx, cmd, cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runServe, "serve", true, "serve health and metrics endpoints on server.listen_addr")
	runCmd.Flags().BoolVar(&runWatch, "watch", true, "reload the config file when it changes")
	rootCmd.AddCommand(runCmd)
}

func runConversation(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	shutdownOTel, err := observe.InitProvider(ctx)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownOTel(context.Background())
	metrics := observe.DefaultMetrics()

	env, err := newEnv(cfg, metrics)
	if err != nil {
		return err
	}
	var sink *audio.PCMSink
	if cfg.Audio.PCMPlayCommand != "" {
		if sink, err = audio.NewPCMSink(cfg.Audio.PCMPlayCommand); err != nil {
			return err
		}
		env.Sink = sink
	}

	d, err := dispatch.New(ctx, cfg, env)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printStartupSummary(out, cfg, d)

	opts := []app.Option{
		app.WithConsole(app.NewConsole(out, app.DefaultTheme)),
		app.WithMetrics(metrics),
	}
	if sink != nil {
		opts = append(opts, app.WithSink(sink))
	}
	application, err := app.New(cfg, d, opts...)
	if err != nil {
		return err
	}

	if runServe {
		srv, err := startServer(cfg.Server.ListenAddr, cfg, env)
		if err != nil {
			return err
		}
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Warn("observability server shutdown", "err", err)
				}
			}()
		}
	}

	if runWatch {
		if w := watchConfig(ctx, application, env); w != nil {
			defer w.Stop()
		}
	}

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// watchConfig reloads the conversation when the config file changes. It
// returns nil when there is no file to watch.
func watchConfig(ctx context.Context, application *app.App, env dispatch.Env) *config.Watcher {
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}
	lookup, err := config.EnvLookup()
	if err != nil {
		slog.Warn("config watch disabled", "err", err)
		return nil
	}
	w, err := config.NewWatcher(configPath, func(_, new *config.Config, diff config.ConfigDiff) {
		applyReload(ctx, application, env, new, diff)
	}, config.WithLookup(lookup))
	if err != nil {
		slog.Warn("config watch disabled", "err", err)
		return nil
	}
	return w
}

func applyReload(ctx context.Context, application *app.App, env dispatch.Env, next *config.Config, diff config.ConfigDiff) {
	if diff.LogLevelChanged && logLevel == "" {
		level.Set(diff.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.SystemPromptChanged {
		slog.Warn("system prompt changed; the running conversation keeps its original prompt until verbi restarts")
	}

	var d *dispatch.Dispatcher
	if len(diff.ProvidersChanged) > 0 {
		env.Local = next.Local
		nd, err := dispatch.New(ctx, next, env)
		if err != nil {
			slog.Error("provider change rejected; keeping current providers", "err", err)
			kept := *next
			cur := application.Config()
			kept.Providers, kept.Credentials, kept.Local = cur.Providers, cur.Credentials, cur.Local
			next = &kept
		} else {
			d = nd
			slog.Info("providers reloaded", "roles", diff.ProvidersChanged)
		}
	}
	application.Reload(next, d)
}
