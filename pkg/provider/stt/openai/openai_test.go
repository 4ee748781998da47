package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, []byte("RIFF-fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

// transcriptionServer returns a fake /audio/transcriptions endpoint that
// records the multipart form fields it received.
func transcriptionServer(t *testing.T, fields map[string]string, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			fields["file"] = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"` + text + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranscribe_OpenAI(t *testing.T) {
	fields := map[string]string{}
	srv := transcriptionServer(t, fields, "hello there")

	p, err := New("sk-test", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello there" {
		t.Errorf("text = %q", got)
	}
	if fields["model"] != DefaultModel {
		t.Errorf("model = %q, want %q", fields["model"], DefaultModel)
	}
	if fields["language"] != "en" {
		t.Errorf("language = %q, want en", fields["language"])
	}
	if fields["file"] != "RIFF-fake" {
		t.Errorf("file = %q", fields["file"])
	}
}

func TestNewGroq_Defaults(t *testing.T) {
	p, err := NewGroq("gsk-test")
	if err != nil {
		t.Fatalf("NewGroq: %v", err)
	}
	if p.Model() != GroqModel {
		t.Errorf("Model() = %q, want %q", p.Model(), GroqModel)
	}
	if p.baseURL != GroqBaseURL {
		t.Errorf("baseURL = %q, want %q", p.baseURL, GroqBaseURL)
	}
}

func TestTranscribe_GroqUsesWhisperLarge(t *testing.T) {
	fields := map[string]string{}
	srv := transcriptionServer(t, fields, "ciao")

	p, err := NewGroq("gsk-test", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewGroq: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), writeAudio(t)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if fields["model"] != GroqModel {
		t.Errorf("model = %q, want %q", fields["model"], GroqModel)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), writeAudio(t)); err == nil {
		t.Error("expected error for 401, got nil")
	}
	if _, err := p.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}
