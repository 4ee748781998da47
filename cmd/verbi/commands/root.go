// Package commands implements the verbi command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
	"github.com/MrWong99/verbi/internal/observe"
	"github.com/MrWong99/verbi/pkg/liveness"
)

var (
	// Global flags
	configPath string
	logLevel   string

	// level is shared by every logger so config reloads can change it.
	level = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "verbi",
	Short: "Voice assistant chaining transcription, response and speech providers",
	Long: `verbi - a voice assistant pipeline.

Each turn records the microphone, transcribes the recording, asks a language
model for a reply and speaks it back. Every stage dispatches to one provider:

  transcription  openai, groq, deepgram, google, fastwhisperapi, local
  response       openai, groq, ollama, gemini, agent, local
  speech         openai, deepgram, elevenlabs, melotts, piper, polly, local

Configuration is read from a YAML file (default verbi.yaml) and overlaid with
the environment and a .env file in the working directory:

  VERBI_TRANSCRIPTION_MODEL, VERBI_RESPONSE_MODEL, VERBI_TTS_MODEL
  OPENAI_API_KEY, GROQ_API_KEY, DEEPGRAM_API_KEY, ELEVENLABS_API_KEY,
  GEMINI_API_KEY, GOOGLE_API_KEY, VERBI_LOG_LEVEL

Examples:
  # Talk to the assistant
  verbi run

  # Run a single stage
  verbi transcribe recording.wav --provider groq
  verbi reply "What is the capital of Italy?"
  verbi speak "Hello there" --output hello.mp3`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "verbi.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		l := config.LogLevel(logLevel)
		if !l.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q", logLevel)
		}
		cfg.Server.LogLevel = l
	}
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger())
	return cfg, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEnv builds the collaborators shared by every provider of one process.
// The fastwhisperapi probe reports to metrics, or to the default instance
// when metrics is nil.
func newEnv(cfg *config.Config, metrics *observe.Metrics) (dispatch.Env, error) {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	env := dispatch.Env{Local: cfg.Local}
	if cfg.Local.FastWhisperURL != "" {
		p, err := liveness.New(cfg.Local.FastWhisperURL, liveness.WithObserver(func(ok bool) {
			metrics.RecordLivenessProbe(context.Background(), "fastwhisperapi", ok)
		}))
		if err != nil {
			return dispatch.Env{}, err
		}
		env.Probe = p
	}
	return env, nil
}

// credentialFor returns the key for provider in role. The configured entry's
// api_key applies only when provider is the configured one.
func credentialFor(cfg *config.Config, role config.Role, provider string) string {
	if provider == "" || provider == cfg.Entry(role).Name {
		return cfg.APIKey(role)
	}
	key, _ := cfg.Resolver().Resolve(role, provider)
	return key
}
