package agent

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
)

func newTestToolbox(t *testing.T, tools ...Tool) *Toolbox {
	t.Helper()
	tb, err := NewToolbox(t.Context(), tools...)
	if err != nil {
		t.Fatalf("NewToolbox: %v", err)
	}
	t.Cleanup(func() { _ = tb.Close() })
	return tb
}

func TestToolbox_Definitions(t *testing.T) {
	tb := newTestToolbox(t, AssistantTools(NewStore())...)

	var names []string
	for _, d := range tb.Definitions() {
		names = append(names, d.Name)
		if d.Parameters["type"] != "object" {
			t.Errorf("%s: schema type = %v, want object", d.Name, d.Parameters["type"])
		}
	}
	slices.Sort(names)
	want := []string{
		"add_task", "get_calendar_events", "get_expenses", "get_news",
		"get_recent_emails", "get_tasks", "get_weather", "search_contacts",
	}
	if !slices.Equal(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestToolbox_Call(t *testing.T) {
	echo := Tool{
		Name:        "echo",
		Description: "Echo the message",
		Parameters:  object(nil, map[string]any{"msg": str("Message")}),
		Handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var a struct{ Msg string }
			if err := json.Unmarshal(raw, &a); err != nil {
				return "", err
			}
			if a.Msg == "" {
				return "", errors.New("msg is required")
			}
			return strings.ToUpper(a.Msg), nil
		},
	}
	tb := newTestToolbox(t, echo)

	tests := []struct {
		name    string
		tool    string
		args    string
		want    string
		wantErr error
	}{
		{name: "ok", tool: "echo", args: `{"msg":"hi"}`, want: "HI"},
		{name: "tool error", tool: "echo", args: `{}`, wantErr: ErrToolFailed},
		{name: "blank args", tool: "echo", args: "", wantErr: ErrToolFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tb.Call(t.Context(), tt.tool, tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if got != tt.want {
				t.Errorf("Call = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolbox_CallInvalid(t *testing.T) {
	tb := newTestToolbox(t, AssistantTools(NewStore())...)

	if _, err := tb.Call(t.Context(), "get_weather", "{not json"); err == nil {
		t.Error("malformed arguments: expected error")
	}
	if _, err := tb.Call(t.Context(), "launch_rocket", "{}"); err == nil {
		t.Error("unknown tool: expected error")
	}
}

func TestNewToolbox_RejectsToolWithoutHandler(t *testing.T) {
	if _, err := NewToolbox(t.Context(), Tool{Name: "broken"}); err == nil {
		t.Fatal("expected error for tool without handler")
	}
}
