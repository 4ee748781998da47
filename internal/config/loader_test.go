package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/verbi/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: debug

providers:
  transcription:
    name: fastwhisperapi
  response:
    name: openai
    model: gpt-4o-mini
    timeout: 30s
  speech:
    name: melotts
    options:
      accent: EN-BR
      speed: 1.2

credentials:
  openai: sk-test

assistant:
  system_prompt: "Be brief."
  exit_words: [bye]

local:
  fastwhisper_url: http://whisper:8000
`

func mapEnv(m map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ---- YAML loading ----

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Providers.Response.Model != "gpt-4o-mini" {
		t.Errorf("providers.response.model: got %q", cfg.Providers.Response.Model)
	}
	if cfg.Providers.Response.Timeout != 30*time.Second {
		t.Errorf("providers.response.timeout: got %v", cfg.Providers.Response.Timeout)
	}
	if got := cfg.Providers.Speech.OptionString("accent"); got != "EN-BR" {
		t.Errorf("providers.speech.options.accent: got %q", got)
	}
	if cfg.Local.FastWhisperURL != "http://whisper:8000" {
		t.Errorf("local.fastwhisper_url: got %q", cfg.Local.FastWhisperURL)
	}
	// Unset sections keep their defaults.
	if cfg.Local.MeloTTSURL != "http://localhost:5150" {
		t.Errorf("local.melotts_url default lost: got %q", cfg.Local.MeloTTSURL)
	}
	if len(cfg.Assistant.ExitWords) != 1 || cfg.Assistant.ExitWords[0] != "bye" {
		t.Errorf("assistant.exit_words: got %v", cfg.Assistant.ExitWords)
	}
	if cfg.Assistant.InputAudio != "test.wav" {
		t.Errorf("assistant.input_audio default lost: got %q", cfg.Assistant.InputAudio)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(in))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): %v", in, err)
		}
		if cfg.Providers.Speech.Name != "local" {
			t.Errorf("speech provider: got %q, want local", cfg.Providers.Speech.Name)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// ---- Validation ----

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_UnsupportedProvider(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		role string
	}{
		{"transcription", "providers:\n  transcription:\n    name: whisperx\n", "providers.transcription"},
		{"response", "providers:\n  response:\n    name: claude-9\n", "providers.response"},
		{"speech", "providers:\n  speech:\n    name: coqui\n", "providers.speech"},
		{"speech-cannot-use-gemini", "providers:\n  speech:\n    name: gemini\n", "providers.speech"},
		{"empty", "providers:\n  response:\n    name: \"\"\n", "providers.response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if !errors.Is(err, config.ErrUnsupportedProvider) {
				t.Fatalf("error = %v, want ErrUnsupportedProvider", err)
			}
			if !strings.Contains(err.Error(), tt.role) {
				t.Errorf("error should mention %s, got: %v", tt.role, err)
			}
		})
	}
}

func TestValidate_ProviderNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  response:
    name: Ollama
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingCredential(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  transcription:
    name: deepgram
  response:
    name: gemini
  speech:
    name: elevenlabs
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing credentials, got nil")
	}
	for _, want := range []string{config.EnvDeepgramKey, config.EnvGeminiKey, config.EnvElevenLabsKey} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
	if errors.Is(err, config.ErrUnsupportedProvider) {
		t.Error("missing credential must not be reported as unsupported provider")
	}
}

func TestValidate_EntryAPIKeySatisfiesCredential(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  speech:
    name: deepgram
    api_key: dg-inline
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.APIKey(config.RoleSpeech); got != "dg-inline" {
		t.Errorf("APIKey(speech) = %q", got)
	}
}

func TestValidate_MeloTTSOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		options string
		wantErr string
	}{
		{"valid", "accent: EN-AU\n      speed: 1", ""},
		{"bad accent", "accent: EN-MARS", "accent"},
		{"too slow", "speed: 0.01", "speed"},
		{"too fast", "speed: 4", "speed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			yaml := "providers:\n  speech:\n    name: melotts\n    options:\n      " + tt.options + "\n"
			_, err := config.LoadFromReader(strings.NewReader(yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  transcription:
    name: local
    timeout: -1s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("error = %v, want timeout error", err)
	}
}

func TestValidate_ExitWordSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"0", false},
		{"0.85", false},
		{"1", false},
		{"1.5", true},
		{"-0.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader("assistant:\n  exit_word_similarity: " + tt.value + "\n"))
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
providers:
  transcription:
    name: nope
  speech:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "providers.transcription", config.EnvOpenAIKey} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

// ---- Environment overlay ----

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	config.ApplyEnv(cfg, mapEnv(map[string]string{
		config.EnvTranscriptionModel: "groq",
		config.EnvResponseModel:      "gemini",
		config.EnvTTSModel:           "deepgram",
		config.EnvLogLevel:           "warn",
		config.EnvGroqKey:            "gsk",
		config.EnvGeminiKey:          "gm",
		config.EnvDeepgramKey:        "dg",
		config.EnvOpenAIKey:          "",
	}))

	if cfg.Providers.Transcription.Name != "groq" {
		t.Errorf("transcription: got %q", cfg.Providers.Transcription.Name)
	}
	if cfg.Providers.Response.Name != "gemini" {
		t.Errorf("response: got %q", cfg.Providers.Response.Name)
	}
	if cfg.Providers.Speech.Name != "deepgram" {
		t.Errorf("speech: got %q", cfg.Providers.Speech.Name)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("log level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Credentials.OpenAI != "" {
		t.Errorf("empty env value should be ignored, got %q", cfg.Credentials.OpenAI)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("overlaid config should validate: %v", err)
	}
	if got := cfg.APIKey(config.RoleTranscription); got != "gsk" {
		t.Errorf("APIKey(transcription) = %q, want gsk", got)
	}
}

func TestApplyEnv_KeepsFileValuesWhenUnset(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	config.ApplyEnv(cfg, mapEnv(nil))
	if cfg.Providers.Response.Name != "openai" || cfg.Credentials.OpenAI != "sk-test" {
		t.Errorf("file values overwritten: %+v %+v", cfg.Providers.Response, cfg.Credentials)
	}
}

func TestReadDotEnv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "OPENAI_API_KEY=sk-dotenv\n# comment\nVERBI_RESPONSE_MODEL=openai\n")

	env, err := config.ReadDotEnv(path)
	if err != nil {
		t.Fatalf("ReadDotEnv: %v", err)
	}
	if env["OPENAI_API_KEY"] != "sk-dotenv" || env["VERBI_RESPONSE_MODEL"] != "openai" {
		t.Errorf("ReadDotEnv = %v", env)
	}

	missing, err := config.ReadDotEnv(filepath.Join(dir, "absent.env"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing file should yield empty map, got %v", missing)
	}
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvResponseModel, "ollama")

	cfg, err := config.Load(filepath.Join("does", "not", "exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Response.Name != "ollama" {
		t.Errorf("response: got %q, want ollama", cfg.Providers.Response.Name)
	}
}

func TestLoad_ProcessEnvWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, config.DotEnvFile), "VERBI_TTS_MODEL=deepgram\nDEEPGRAM_API_KEY=dg-dotenv\nVERBI_RESPONSE_MODEL=openai\n")
	t.Setenv(config.EnvTTSModel, "local")
	t.Setenv(config.EnvOpenAIKey, "sk-env")

	cfgPath := filepath.Join(dir, "verbi.yaml")
	writeFile(t, cfgPath, "server:\n  log_level: error\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Speech.Name != "local" {
		t.Errorf("speech: got %q, want process env value", cfg.Providers.Speech.Name)
	}
	if cfg.Credentials.Deepgram != "dg-dotenv" {
		t.Errorf("deepgram key from .env: got %q", cfg.Credentials.Deepgram)
	}
	if cfg.Providers.Response.Name != "openai" || cfg.APIKey(config.RoleResponse) != "sk-env" {
		t.Errorf("response: %+v key %q", cfg.Providers.Response, cfg.APIKey(config.RoleResponse))
	}
	if cfg.Server.LogLevel != config.LogError {
		t.Errorf("log level from file: got %q", cfg.Server.LogLevel)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "verbi.yaml")
	writeFile(t, cfgPath, "providers:\n  speech:\n    name: bark\n")

	_, err := config.Load(cfgPath)
	if !errors.Is(err, config.ErrUnsupportedProvider) {
		t.Fatalf("Load error = %v, want ErrUnsupportedProvider", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	example, err := filepath.Abs(filepath.Join("..", "..", "configs", "verbi.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())
	for _, key := range []string{config.EnvTranscriptionModel, config.EnvResponseModel, config.EnvTTSModel, config.EnvLogLevel} {
		t.Setenv(key, "")
	}
	t.Setenv(config.EnvGroqKey, "gsk-example")

	cfg, err := config.Load(example)
	if err != nil {
		t.Fatalf("Load(example): %v", err)
	}
	if got := cfg.Providers.Transcription; got.Name != "groq" || got.Timeout != 30*time.Second {
		t.Errorf("transcription = %+v", got)
	}
	if got := cfg.Providers.Speech.OptionString("accent"); got != "EN-US" {
		t.Errorf("speech accent = %q", got)
	}
	if got := cfg.APIKey(config.RoleTranscription); got != "gsk-example" {
		t.Errorf("transcription key = %q", got)
	}
}
