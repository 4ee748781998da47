package gemini

import (
	"errors"

	"google.golang.org/genai"

	"github.com/MrWong99/verbi/pkg/transcript"
)

// Gemini content roles.
const (
	roleUser  = "user"
	roleModel = "model"
)

var (
	// ErrEmptyTranscript is returned when there is no turn to send.
	ErrEmptyTranscript = errors.New("gemini: empty transcript")

	// ErrStaleTurn is returned when the newest turn was not spoken by the
	// user, so there is nothing new to answer.
	ErrStaleTurn = errors.New("gemini: last turn is not a user turn")
)

// Conversation is a transcript reshaped for the Gemini chat API: prior turns
// go into History at session creation and Message is sent on its own.
type Conversation struct {
	History []*genai.Content
	Message string
}

// Normalize reshapes turns into a [Conversation]. The user role maps to
// "user" and every other role (system included) maps to "model"; each
// content string becomes a single text part. The last turn is excluded from
// History and returned as Message. turns is not modified.
func Normalize(turns []transcript.Turn) (Conversation, error) {
	if len(turns) == 0 {
		return Conversation{}, ErrEmptyTranscript
	}
	last := turns[len(turns)-1]
	if last.Role != transcript.RoleUser {
		return Conversation{}, ErrStaleTurn
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, t := range turns[:len(turns)-1] {
		history = append(history, &genai.Content{
			Role:  mapRole(t.Role),
			Parts: []*genai.Part{genai.NewPartFromText(t.Content)},
		})
	}
	return Conversation{History: history, Message: last.Content}, nil
}

func mapRole(r transcript.Role) string {
	if r == transcript.RoleUser {
		return roleUser
	}
	return roleModel
}
