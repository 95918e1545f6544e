// Package ui renders chat turns in the terminal.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Spinner shows progress on stderr while waiting for the first token.
// Stop may be called any number of times.
type Spinner struct {
	s    *spinner.Spinner
	w    io.Writer
	once sync.Once
}

// NewSpinner creates a spinner on stderr with the given message.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg)
}

func newSpinner(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the animation when stderr is a terminal.
func (sp *Spinner) Start() {
	if f, ok := sp.w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		return
	}
	sp.s.Start()
}

// SetMessage replaces the text next to the spinner.
func (sp *Spinner) SetMessage(msg string) {
	sp.s.Lock()
	sp.s.Suffix = "  " + msg
	sp.s.Unlock()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.once.Do(sp.s.Stop)
}

// Fail stops the spinner and prints a red cross with msg.
func (sp *Spinner) Fail(msg string) {
	sp.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}

// Success stops the spinner and prints a green check with msg.
func (sp *Spinner) Success(msg string) {
	sp.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}
