package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/verbi/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
providers:
  response:
    name: ollama
`

// watcherEnv supplies the credential the updated configs need and nothing else.
var watcherEnv = config.WithLookup(mapEnv(map[string]string{config.EnvOpenAIKey: "sk-watch"}))

// change is one onChange invocation.
type change struct {
	old, new *config.Config
	diff     config.ConfigDiff
}

// newTestWatcher writes content to a fresh file and watches it with an
// interval long enough that only explicit Check calls poll.
func newTestWatcher(t *testing.T, content string) (*config.Watcher, string, *[]change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verbi.yaml")
	writeFile(t, path, content)

	var changes []change
	w, err := config.NewWatcher(path, func(old, new *config.Config, diff config.ConfigDiff) {
		changes = append(changes, change{old, new, diff})
	}, config.WithInterval(time.Hour), watcherEnv)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path, &changes
}

// rewrite replaces the file and moves its mtime forward so the change is
// visible even on coarse-grained filesystems.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	writeFile(t, path, content)
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _, changes := newTestWatcher(t, watcherValidYAML)

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo || cfg.Providers.Response.Name != "ollama" {
		t.Errorf("Current() = %+v", cfg.Server)
	}
	if cfg.Credentials.OpenAI != "sk-watch" {
		t.Errorf("environment overlay not applied: openai key %q", cfg.Credentials.OpenAI)
	}
	if len(*changes) != 0 {
		t.Errorf("onChange called %d times on initial load", len(*changes))
	}
}

func TestWatcher_ReportsDiff(t *testing.T) {
	t.Parallel()
	w, path, changes := newTestWatcher(t, watcherValidYAML)

	rewrite(t, path, `
server:
  log_level: debug
providers:
  response:
    name: openai
assistant:
  exit_words: [ciao]
`)
	w.Check()

	if len(*changes) != 1 {
		t.Fatalf("onChange calls = %d, want 1", len(*changes))
	}
	c := (*changes)[0]
	if c.old.Providers.Response.Name != "ollama" || c.new.Providers.Response.Name != "openai" {
		t.Errorf("old/new = %q/%q", c.old.Providers.Response.Name, c.new.Providers.Response.Name)
	}
	if !c.diff.LogLevelChanged || c.diff.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff: %+v", c.diff)
	}
	if !c.diff.RoleChanged(config.RoleResponse) || c.diff.RoleChanged(config.RoleSpeech) {
		t.Errorf("providers changed: %v", c.diff.ProvidersChanged)
	}
	if !c.diff.ExitWordsChanged {
		t.Error("exit word change not reported")
	}
	if w.Current() != c.new {
		t.Error("Current() is not the reloaded config")
	}

	// A second check without a new write is a no-op.
	w.Check()
	if len(*changes) != 1 {
		t.Errorf("onChange calls = %d after idle check, want 1", len(*changes))
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	w, path, changes := newTestWatcher(t, watcherValidYAML)
	before := w.Current()

	for _, content := range []string{
		"server:\n  log_level: bananas\n",
		"providers:\n  speech:\n    name: espeak\n",
		"server: [\n",
	} {
		rewrite(t, path, content)
		w.Check()
	}

	if len(*changes) != 0 {
		t.Errorf("onChange called %d times for invalid files", len(*changes))
	}
	if w.Current() != before {
		t.Error("Current() replaced by an invalid config")
	}

	// Recovery is picked up.
	rewrite(t, path, "server:\n  log_level: warn\n")
	w.Check()
	if got := w.Current().Server.LogLevel; got != config.LogWarn {
		t.Errorf("log level after recovery = %q, want warn", got)
	}
}

func TestWatcher_IneffectiveEditsAreSilent(t *testing.T) {
	t.Parallel()
	w, path, changes := newTestWatcher(t, watcherValidYAML)

	// Touch only.
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	w.Check()

	// Comment only: new bytes, same meaning.
	rewrite(t, path, "# tweaked\n"+watcherValidYAML)
	w.Check()

	if len(*changes) != 0 {
		t.Errorf("onChange called %d times, want 0", len(*changes))
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "providers:\n  response:\n    name: claude\n")
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_PollsOnInterval(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "verbi.yaml")
	writeFile(t, path, watcherValidYAML)

	called := make(chan config.ConfigDiff, 1)
	w, err := config.NewWatcher(path, func(_, _ *config.Config, d config.ConfigDiff) {
		select {
		case called <- d:
		default:
		}
	}, config.WithInterval(20*time.Millisecond), watcherEnv)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	rewrite(t, path, "server:\n  log_level: error\n")
	select {
	case d := <-called:
		if d.NewLogLevel != config.LogError {
			t.Errorf("NewLogLevel = %q, want error", d.NewLogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change not picked up by polling")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _, _ := newTestWatcher(t, watcherValidYAML)
	w.Stop()
	w.Stop()
}
