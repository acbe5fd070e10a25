// Package notify surfaces recording milestones as desktop notifications.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Notifier tells the user about recording milestones. Implementations are
// best effort; a failed notification never affects the pipeline.
type Notifier interface {
	RecordingStarted()
	TranscriptDelivered(chars int)
	Warning(message string)
	Failure(message string)
}

var (
	_ Notifier = (*Desktop)(nil)
	_ Notifier = Nop{}
)

// Desktop shows system notifications via beeep.
type Desktop struct {
	log zerolog.Logger
}

// NewDesktop creates a Desktop notifier.
func NewDesktop(log zerolog.Logger) *Desktop {
	return &Desktop{log: log.With().Str("component", "notify").Logger()}
}

func (d *Desktop) RecordingStarted() {
	d.send("Recording", "Listening...")
}

func (d *Desktop) TranscriptDelivered(chars int) {
	d.send("Transcribed", fmt.Sprintf("%d characters delivered", chars))
}

func (d *Desktop) Warning(message string) {
	d.send("Warning", message)
}

func (d *Desktop) Failure(message string) {
	d.send("Transcription failed", message)
}

func (d *Desktop) send(title, message string) {
	if err := beeep.Notify("voxtype: "+title, message, ""); err != nil {
		d.log.Debug().Err(err).Msg("notification failed")
	}
}

// Nop discards all notifications. Used when running headless.
type Nop struct{}

func (Nop) RecordingStarted()       {}
func (Nop) TranscriptDelivered(int) {}
func (Nop) Warning(string)          {}
func (Nop) Failure(string)          {}
