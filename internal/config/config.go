// Package config provides the configuration schema, loader, and credential
// resolver for the verbi voice assistant.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a slog.Level. Unknown and empty levels map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for verbi.
// It is typically loaded from a YAML file plus environment using [Load].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	Audio       AudioConfig       `yaml:"audio"`
	Local       LocalConfig       `yaml:"local"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the health and metrics server listens on
	// (e.g., ":9090").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline role.
type ProvidersConfig struct {
	Transcription ProviderEntry `yaml:"transcription"`
	Response      ProviderEntry `yaml:"response"`
	Speech        ProviderEntry `yaml:"speech"`
}

// ProviderEntry is the common configuration block shared by all roles.
type ProviderEntry struct {
	// Name selects the provider (e.g., "openai", "deepgram"). It is checked
	// against the role's allow-list by [Validate].
	Name string `yaml:"name"`

	// APIKey overrides the credential resolved from [CredentialsConfig].
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Voice selects a provider voice for speech synthesis.
	Voice string `yaml:"voice"`

	// Timeout bounds a single provider call. Zero keeps the provider default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered by the fields
	// above, such as melotts "accent" and "speed" or polly "region".
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] if it is a string.
func (e ProviderEntry) OptionString(key string) string {
	if s, ok := e.Options[key].(string); ok {
		return s
	}
	return ""
}

// OptionFloat returns Options[key] as a float64. YAML integers are accepted.
func (e ProviderEntry) OptionFloat(key string) (float64, bool) {
	switch v := e.Options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// CredentialsConfig holds one API key per provider family.
type CredentialsConfig struct {
	OpenAI     string `yaml:"openai"`
	Groq       string `yaml:"groq"`
	Deepgram   string `yaml:"deepgram"`
	ElevenLabs string `yaml:"elevenlabs"`
	Gemini     string `yaml:"gemini"`
	Google     string `yaml:"google"`
}

// AssistantConfig shapes the conversation.
type AssistantConfig struct {
	// SystemPrompt seeds every transcript.
	SystemPrompt string `yaml:"system_prompt"`

	// ExitWords end the session when they appear in a transcription.
	ExitWords []string `yaml:"exit_words"`

	// ExitWordSimilarity enables matching exit words by sound. Zero keeps
	// plain substring matching; otherwise it is the minimum Jaro-Winkler
	// score, between 0 and 1, a run of spoken words needs.
	ExitWordSimilarity float64 `yaml:"exit_word_similarity"`

	// InputAudio is the path recordings are written to.
	InputAudio string `yaml:"input_audio"`

	// OutputDir is where synthesised audio is written.
	OutputDir string `yaml:"output_dir"`
}

// AudioConfig names the external programs used for capture and playback.
// Each command is split on whitespace; the token "{file}" is replaced with
// the audio path.
type AudioConfig struct {
	RecordCommand string `yaml:"record_command"`
	PlayCommand   string `yaml:"play_command"`

	// PCMPlayCommand receives raw PCM on stdin for streaming providers.
	PCMPlayCommand string `yaml:"pcm_play_command"`
}

// LocalConfig holds base URLs of locally hosted services.
type LocalConfig struct {
	FastWhisperURL string `yaml:"fastwhisper_url"`
	MeloTTSURL     string `yaml:"melotts_url"`
	PiperURL       string `yaml:"piper_url"`
	OllamaURL      string `yaml:"ollama_url"`
}

// DefaultSystemPrompt is used when assistant.system_prompt is empty.
const DefaultSystemPrompt = "You are a helpful Assistant called Verbi. " +
	"You are friendly and fun and you will help the users with their requests. " +
	"Your answers are short and concise."

// Defaults returns a Config that runs fully offline.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: ":9090", LogLevel: LogInfo},
		Providers: ProvidersConfig{
			Transcription: ProviderEntry{Name: "local"},
			Response:      ProviderEntry{Name: "local"},
			Speech:        ProviderEntry{Name: "local"},
		},
		Assistant: AssistantConfig{
			SystemPrompt: DefaultSystemPrompt,
			ExitWords:    []string{"goodbye", "arrivederci"},
			InputAudio:   "test.wav",
			OutputDir:    ".",
		},
		Audio: AudioConfig{
			RecordCommand:  "sox -d -c 1 -r 16000 {file} silence 1 0.1 1% 1 1.5 1%",
			PlayCommand:    "ffplay -nodisp -autoexit -loglevel quiet {file}",
			PCMPlayCommand: "ffplay -nodisp -autoexit -loglevel quiet -f s16le -ar 16000 -ch_layout mono -i pipe:0",
		},
		Local: LocalConfig{
			FastWhisperURL: "http://localhost:8000",
			MeloTTSURL:     "http://localhost:5150",
			PiperURL:       "http://localhost:5000",
			OllamaURL:      "http://localhost:11434",
		},
	}
}

// OutputFile returns the file name synthesised audio for kind is written to:
// "output.mp3" or "output.wav" depending on the container the provider
// produces. Raw PCM providers stream and never write, but report
// "output.wav" for symmetry.
func OutputFile(kind tts.Kind) string {
	if kind.Format() == tts.FormatMP3 {
		return "output.mp3"
	}
	return "output.wav"
}
