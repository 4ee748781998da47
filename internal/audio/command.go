// Package audio drives the external programs verbi uses to capture and play
// sound. Commands are configured as whitespace-separated templates in which
// the placeholder {file} is replaced with the audio file path.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// FilePlaceholder is substituted with the audio path in command templates.
const FilePlaceholder = "{file}"

// ErrEmptyCommand is returned for a blank command template.
var ErrEmptyCommand = errors.New("audio: empty command")

// Command is a parsed command template.
type Command struct {
	name string
	args []string
}

// ParseCommand splits tmpl on whitespace. Quoting is not supported.
func ParseCommand(tmpl string) (Command, error) {
	fields := strings.Fields(tmpl)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{name: fields[0], args: fields[1:]}, nil
}

// Name returns the program to execute.
func (c Command) Name() string { return c.name }

// Args returns the arguments with every {file} replaced by path.
func (c Command) Args(path string) []string {
	out := make([]string, len(c.args))
	for i, a := range c.args {
		out[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}
	return out
}

// String renders the template back to its textual form.
func (c Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

func (c Command) cmd(ctx context.Context, path string) *exec.Cmd {
	return exec.CommandContext(ctx, c.name, c.Args(path)...)
}

// run executes c to completion. Stderr output is included in the error.
func (c Command) run(ctx context.Context, path string) error {
	cmd := c.cmd(ctx, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("audio: %s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("audio: %s: %w", c.name, err)
	}
	return nil
}
