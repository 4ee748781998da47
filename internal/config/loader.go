package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/verbi/pkg/provider"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/provider/stt"
	"github.com/MrWong99/verbi/pkg/provider/tts"
	"github.com/MrWong99/verbi/pkg/provider/tts/melotts"
)

// ErrUnsupportedProvider is wrapped by every validation error caused by a
// provider name outside a role's allow-list.
var ErrUnsupportedProvider = provider.ErrUnsupported

// Environment variables selecting providers and log level. They override
// values from the YAML file.
const (
	EnvTranscriptionModel = "VERBI_TRANSCRIPTION_MODEL"
	EnvResponseModel      = "VERBI_RESPONSE_MODEL"
	EnvTTSModel           = "VERBI_TTS_MODEL"
	EnvLogLevel           = "VERBI_LOG_LEVEL"
)

// DotEnvFile is the dotenv file [Load] reads from the working directory.
const DotEnvFile = ".env"

// LookupFunc resolves an environment variable. [os.LookupEnv] satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from [Defaults], the YAML file at path, the
// .env file in the working directory and the process environment, in that
// order of increasing precedence. Variables already set in the process win
// over .env. A missing YAML file or .env is not an error, and an empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	lookup, err := EnvLookup()
	if err != nil {
		return nil, err
	}

	var data []byte
	if path != "" {
		data, err = os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			data = nil
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}
	cfg, err := parse(data, lookup)
	if err != nil {
		return nil, fmt.Errorf("config: load %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Defaults] and
// validates the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvLookup returns the lookup [Load] uses: the process environment first,
// then the variables of [DotEnvFile] in the working directory.
func EnvLookup() (LookupFunc, error) {
	dotenv, err := ReadDotEnv(DotEnvFile)
	if err != nil {
		return nil, err
	}
	return chainLookup(os.LookupEnv, mapLookup(dotenv)), nil
}

// ReadDotEnv parses the dotenv file at path without touching the process
// environment. A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return env, nil
}

// ApplyEnv overlays provider selections, log level and API keys found via
// lookup onto cfg. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Providers.Transcription.Name, EnvTranscriptionModel)
	set(&cfg.Providers.Response.Name, EnvResponseModel)
	set(&cfg.Providers.Speech.Name, EnvTTSModel)

	level := string(cfg.Server.LogLevel)
	set(&level, EnvLogLevel)
	cfg.Server.LogLevel = LogLevel(level)

	set(&cfg.Credentials.OpenAI, EnvOpenAIKey)
	set(&cfg.Credentials.Groq, EnvGroqKey)
	set(&cfg.Credentials.Deepgram, EnvDeepgramKey)
	set(&cfg.Credentials.ElevenLabs, EnvElevenLabsKey)
	set(&cfg.Credentials.Gemini, EnvGeminiKey)
	set(&cfg.Credentials.Google, EnvGoogleKey)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Failures caused by an unknown provider name wrap [ErrUnsupportedProvider].
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider selections
	if k, err := stt.ParseKind(cfg.Providers.Transcription.Name); err != nil {
		errs = append(errs, fmt.Errorf("providers.transcription.name: %w", err))
	} else if k.NeedsCredential() {
		errs = append(errs, requireCredential(cfg, RoleTranscription)...)
	}
	if k, err := llm.ParseKind(cfg.Providers.Response.Name); err != nil {
		errs = append(errs, fmt.Errorf("providers.response.name: %w", err))
	} else if k.NeedsCredential() {
		errs = append(errs, requireCredential(cfg, RoleResponse)...)
	}
	if k, err := tts.ParseKind(cfg.Providers.Speech.Name); err != nil {
		errs = append(errs, fmt.Errorf("providers.speech.name: %w", err))
	} else {
		if k.NeedsCredential() {
			errs = append(errs, requireCredential(cfg, RoleSpeech)...)
		}
		if k == tts.KindMeloTTS {
			errs = append(errs, validateMeloTTS(cfg.Providers.Speech)...)
		}
	}

	if sim := cfg.Assistant.ExitWordSimilarity; sim < 0 || sim > 1 {
		errs = append(errs, fmt.Errorf("assistant.exit_word_similarity %v must be between 0 and 1", sim))
	}

	for _, role := range Roles() {
		if cfg.Entry(role).Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative", role))
		}
	}

	return errors.Join(errs...)
}

func requireCredential(cfg *Config, role Role) []error {
	if cfg.APIKey(role) != "" {
		return nil
	}
	name := cfg.Entry(role).Name
	return []error{fmt.Errorf("providers.%s: provider %q requires a credential; set %s or providers.%s.api_key",
		role, name, CredentialEnv(role, name), role)}
}

func validateMeloTTS(e ProviderEntry) []error {
	var errs []error
	if accent := e.OptionString("accent"); accent != "" && !melotts.ValidAccent(accent) {
		errs = append(errs, fmt.Errorf("providers.speech.options.accent %q is invalid; valid values: %v", accent, melotts.Accents()))
	}
	if speed, ok := e.OptionFloat("speed"); ok && (speed < melotts.MinSpeed || speed > melotts.MaxSpeed) {
		errs = append(errs, fmt.Errorf("providers.speech.options.speed %.2f is out of range [%.1f, %.1f]", speed, melotts.MinSpeed, melotts.MaxSpeed))
	}
	return errs
}

// parse decodes data over [Defaults], overlays the environment and validates.
func parse(data []byte, lookup LookupFunc) (*Config, error) {
	cfg := Defaults()
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, err
	}
	ApplyEnv(cfg, lookup)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func chainLookup(fns ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, fn := range fns {
			if v, ok := fn(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
