package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
	"github.com/MrWong99/verbi/internal/health"
	"github.com/MrWong99/verbi/internal/observe"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/provider/stt"
	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health and metrics endpoints only",
	Long: `Serve /healthz, /readyz and /metrics on server.listen_addr until interrupted.

/readyz checks the locally hosted services the configured providers use
(fastwhisperapi, melotts, piper, ollama).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownOTel, err := observe.InitProvider(ctx)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdownOTel(context.Background())

		env, err := newEnv(cfg, observe.DefaultMetrics())
		if err != nil {
			return err
		}
		srv, err := startServer(cfg.Server.ListenAddr, cfg, env)
		if err != nil {
			return err
		}
		if srv == nil {
			return errors.New("serve: server.listen_addr is empty")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "serving on %s\n", srv.Addr)

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newMux registers health and metrics handlers wrapped in the observe
// middleware.
func newMux(cfg *config.Config, env dispatch.Env) http.Handler {
	mux := http.NewServeMux()
	health.New(checkers(cfg, env)...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	return observe.Middleware(observe.DefaultMetrics())(mux)
}

// checkers returns one readiness check per locally hosted service selected in
// cfg.
func checkers(cfg *config.Config, env dispatch.Env) []health.Checker {
	var out []health.Checker
	if k, err := stt.ParseKind(cfg.Providers.Transcription.Name); err == nil && k == stt.KindFastWhisper {
		if env.Probe != nil {
			out = append(out, health.ProbeChecker(string(k), env.Probe))
		}
	}
	if k, err := tts.ParseKind(cfg.Providers.Speech.Name); err == nil {
		switch k {
		case tts.KindMeloTTS:
			out = append(out, health.HTTPChecker(string(k), baseURL(cfg.Providers.Speech, cfg.Local.MeloTTSURL), env.HTTPClient))
		case tts.KindPiper:
			out = append(out, health.HTTPChecker(string(k), baseURL(cfg.Providers.Speech, cfg.Local.PiperURL), env.HTTPClient))
		}
	}
	if k, err := llm.ParseKind(cfg.Providers.Response.Name); err == nil && k == llm.KindOllama {
		out = append(out, health.HTTPChecker(string(k), baseURL(cfg.Providers.Response, cfg.Local.OllamaURL), env.HTTPClient))
	}
	return out
}

func baseURL(e config.ProviderEntry, fallback string) string {
	if e.BaseURL != "" {
		return e.BaseURL
	}
	return fallback
}

// startServer listens on addr and serves in the background. An empty addr
// disables the server and returns a nil server.
func startServer(addr string, cfg *config.Config, env dispatch.Env) (*http.Server, error) {
	if addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           newMux(cfg, env),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server error", "err", err)
		}
	}()
	slog.Info("observability server listening", "addr", srv.Addr)
	return srv, nil
}
