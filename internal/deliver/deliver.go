// Package deliver hands finished transcripts to the active application
// using the system clipboard or robotgo keystroke simulation.
package deliver

import (
	"fmt"
	"io"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Sink receives final transcript text.
type Sink interface {
	DeliverText(text string) error
}

var (
	_ Sink = Clipboard{}
	_ Sink = Paste{}
	_ Sink = Typer{}
	_ Sink = Writer{}
)

// New returns the sink for a configured method: "clipboard" leaves the text
// on the system clipboard, "paste" additionally sends the paste chord, and
// "type" simulates individual keystrokes.
func New(method string) (Sink, error) {
	switch method {
	case "clipboard":
		return Clipboard{}, nil
	case "paste":
		return Paste{}, nil
	case "type":
		return Typer{}, nil
	default:
		return nil, fmt.Errorf("deliver: unknown method %q", method)
	}
}

// Clipboard copies text to the system clipboard and leaves it there.
type Clipboard struct{}

func (Clipboard) DeliverText(text string) error {
	if text == "" {
		return nil
	}
	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("deliver: write to clipboard: %w", err)
	}
	return nil
}

// Paste copies text to the clipboard, sends the platform paste chord, and
// restores the previous clipboard contents.
type Paste struct{}

func (Paste) DeliverText(text string) error {
	if text == "" {
		return nil
	}

	// Save current clipboard
	prev, _ := robotgo.ReadAll()

	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("deliver: write to clipboard: %w", err)
	}
	if err := robotgo.KeyTap("v", pasteModifier()); err != nil {
		return fmt.Errorf("deliver: key tap paste: %w", err)
	}

	// Restore previous clipboard (best effort)
	_ = robotgo.WriteAll(prev)

	return nil
}

// Typer simulates individual keystrokes. Preserves clipboard contents
// but is slower for long text.
type Typer struct{}

func (Typer) DeliverText(text string) error {
	if text == "" {
		return nil
	}
	robotgo.Type(text)
	return nil
}

// Writer prints text to an io.Writer with a trailing newline. Used by the
// CLI tools and wherever no desktop session is available.
type Writer struct {
	Out io.Writer
}

func (w Writer) DeliverText(text string) error {
	if text == "" {
		return nil
	}
	if _, err := fmt.Fprintln(w.Out, text); err != nil {
		return fmt.Errorf("deliver: write: %w", err)
	}
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
