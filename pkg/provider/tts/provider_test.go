package tts

import (
	"errors"
	"testing"

	"github.com/MrWong99/verbi/pkg/provider"
)

func TestKindFormat(t *testing.T) {
	tests := []struct {
		kind    Kind
		format  Format
		streams bool
	}{
		{KindOpenAI, FormatMP3, false},
		{KindDeepgram, FormatWAV, false},
		{KindElevenLabs, FormatPCM, true},
		{KindMeloTTS, FormatMP3, false},
		{KindPiper, FormatWAV, false},
		{KindPolly, FormatMP3, false},
		{KindLocal, FormatWAV, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Format(); got != tt.format {
				t.Errorf("Format() = %q, want %q", got, tt.format)
			}
			if got := tt.kind.Streams(); got != tt.streams {
				t.Errorf("Streams() = %v, want %v", got, tt.streams)
			}
		})
	}
}

func TestFormatExt(t *testing.T) {
	if FormatMP3.Ext() != ".mp3" || FormatWAV.Ext() != ".wav" {
		t.Errorf("unexpected extensions %q %q", FormatMP3.Ext(), FormatWAV.Ext())
	}
}

func TestParseKind(t *testing.T) {
	if got, err := ParseKind("ElevenLabs"); err != nil || got != KindElevenLabs {
		t.Errorf("ParseKind = %q, %v", got, err)
	}
	if _, err := ParseKind("cartesia"); !errors.Is(err, provider.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}
