package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProvidersChanged lists the roles whose provider entry or resolved
	// credential differs. Dispatchers for these roles must be rebuilt.
	ProvidersChanged []Role

	SystemPromptChanged bool
	ExitWordsChanged    bool
}

// Changed reports whether d carries any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.ProvidersChanged) > 0 || d.SystemPromptChanged || d.ExitWordsChanged
}

// RoleChanged reports whether role is listed in d.ProvidersChanged.
func (d ConfigDiff) RoleChanged(role Role) bool {
	return slices.Contains(d.ProvidersChanged, role)
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	for _, role := range Roles() {
		if !entryEqual(old.Entry(role), new.Entry(role)) || old.APIKey(role) != new.APIKey(role) {
			d.ProvidersChanged = append(d.ProvidersChanged, role)
		}
	}

	d.SystemPromptChanged = old.Assistant.SystemPrompt != new.Assistant.SystemPrompt
	d.ExitWordsChanged = !slices.Equal(old.Assistant.ExitWords, new.Assistant.ExitWords) ||
		old.Assistant.ExitWordSimilarity != new.Assistant.ExitWordSimilarity
	return d
}

// entryEqual compares two provider entries field by field. Options are
// compared by their formatted value.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL ||
		a.Model != b.Model || a.Voice != b.Voice || a.Timeout != b.Timeout {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
