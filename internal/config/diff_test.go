package config_test

import (
	"testing"

	"github.com/MrWong99/verbi/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Defaults()
	new := config.Defaults()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.ProvidersChanged) != 0 {
		t.Errorf("expected no provider changes, got %v", d.ProvidersChanged)
	}
}

func TestDiff_ProvidersChanged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []config.Role
	}{
		{
			name:   "speech name",
			mutate: func(c *config.Config) { c.Providers.Speech.Name = "openai" },
			want:   []config.Role{config.RoleSpeech},
		},
		{
			name:   "response model",
			mutate: func(c *config.Config) { c.Providers.Response.Model = "llama3:70b" },
			want:   []config.Role{config.RoleResponse},
		},
		{
			name: "option value",
			mutate: func(c *config.Config) {
				c.Providers.Speech.Options = map[string]any{"accent": "EN-AU"}
			},
			want: []config.Role{config.RoleSpeech},
		},
		{
			name: "credential for selected provider",
			mutate: func(c *config.Config) {
				c.Credentials.OpenAI = "rotated"
			},
			want: []config.Role{config.RoleTranscription, config.RoleResponse},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := config.Defaults()
			old.Providers.Transcription.Name = "openai"
			old.Providers.Response.Name = "openai"
			old.Credentials.OpenAI = "original"
			new := config.Defaults()
			new.Providers.Transcription.Name = "openai"
			new.Providers.Response.Name = "openai"
			new.Credentials.OpenAI = "original"
			tt.mutate(new)

			d := config.Diff(old, new)
			if len(d.ProvidersChanged) != len(tt.want) {
				t.Fatalf("ProvidersChanged = %v, want %v", d.ProvidersChanged, tt.want)
			}
			for _, role := range tt.want {
				if !d.RoleChanged(role) {
					t.Errorf("RoleChanged(%q) = false", role)
				}
			}
		})
	}
}

func TestDiff_UnusedCredentialIgnored(t *testing.T) {
	t.Parallel()
	old := config.Defaults()
	new := config.Defaults()
	new.Credentials.ElevenLabs = "el-key"

	if d := config.Diff(old, new); d.Changed() {
		t.Errorf("credential for unselected provider should not count, got %+v", d)
	}
}

func TestDiff_AssistantChanged(t *testing.T) {
	t.Parallel()
	old := config.Defaults()
	new := config.Defaults()
	new.Assistant.SystemPrompt = "Speak like a pirate."
	new.Assistant.ExitWords = []string{"farewell"}

	d := config.Diff(old, new)
	if !d.SystemPromptChanged {
		t.Error("expected SystemPromptChanged=true")
	}
	if !d.ExitWordsChanged {
		t.Error("expected ExitWordsChanged=true")
	}

	fuzzy := config.Defaults()
	fuzzy.Assistant.ExitWordSimilarity = 0.9
	if !config.Diff(old, fuzzy).ExitWordsChanged {
		t.Error("similarity change should count as an exit word change")
	}
}
