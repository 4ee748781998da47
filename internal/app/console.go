package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the console colours.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
}

// DefaultTheme prints the user in green and the assistant in cyan.
var DefaultTheme = Theme{
	User:      lipgloss.Color("#00ff9f"),
	Assistant: lipgloss.Color("#00d7ff"),
	Dim:       lipgloss.Color("#6e7681"),
}

// Console prints the conversation as it happens.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
}

// NewConsole writes to w using theme.
func NewConsole(w io.Writer, theme Theme) *Console {
	return &Console{
		w:         w,
		user:      lipgloss.NewStyle().Bold(true).Foreground(theme.User),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(theme.Assistant),
		notice:    lipgloss.NewStyle().Italic(true).Foreground(theme.Dim),
	}
}

// Heard prints what the user said.
func (c *Console) Heard(text string) {
	c.println(c.user.Render("You said:") + " " + text)
}

// Replied prints the assistant's answer.
func (c *Console) Replied(text string) {
	c.println(c.assistant.Render("Response:") + " " + text)
}

// Notice prints a dimmed status line.
func (c *Console) Notice(format string, args ...any) {
	c.println(c.notice.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}
