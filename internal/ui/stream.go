package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/arin/morph/internal/chat"
)

// RenderOptions controls RenderStream.
type RenderOptions struct {
	// Prefix is written before the first answer text, e.g. "  ".
	Prefix string
	// OnFirstEvent runs once, before anything is written. Use it to stop a
	// spinner.
	OnFirstEvent func()
	// ShowSources lists search results after the answer.
	ShowSources bool
}

// Result is what a rendered turn produced.
type Result struct {
	Text   string
	Search *chat.SearchResponse
}

// RenderStream writes a turn's events to w as they arrive. Update events
// carry the whole answer so far; only the new suffix is written. A stream
// that closes without a terminal event returns chat.ErrCancelled with the
// partial text.
func RenderStream(w io.Writer, ch <-chan chat.Event, opts RenderOptions) (Result, error) {
	var (
		res     Result
		printed string
		started bool
		first   = true
	)
	faint := color.New(color.Faint)

	for ev := range ch {
		if first {
			first = false
			if opts.OnFirstEvent != nil {
				opts.OnFirstEvent()
			}
		}
		switch ev.Kind {
		case chat.EventSearchResults:
			res.Search = ev.Search
			if ev.Search != nil {
				faint.Fprintf(w, "%ssearched the web: %d sources\n\n", opts.Prefix, len(ev.Search.Results))
			}
		case chat.EventUpdate, chat.EventComplete:
			if !started && ev.Text != "" {
				fmt.Fprint(w, opts.Prefix)
				started = true
			}
			if strings.HasPrefix(ev.Text, printed) {
				fmt.Fprint(w, indent(ev.Text[len(printed):], opts.Prefix))
			} else {
				// Not an extension of what is on screen; start over on a new line.
				fmt.Fprint(w, "\n"+opts.Prefix+indent(ev.Text, opts.Prefix))
			}
			printed = ev.Text
			res.Text = ev.Text
			if ev.Kind == chat.EventComplete {
				finishAnswer(w, printed)
				if opts.ShowSources {
					PrintSources(w, res.Search, opts.Prefix)
				}
				return res, nil
			}
		case chat.EventError:
			finishAnswer(w, printed)
			if ev.Err != nil {
				return res, ev.Err
			}
			return res, fmt.Errorf("%s", ev.Text)
		}
	}
	finishAnswer(w, printed)
	return res, chat.ErrCancelled
}

func indent(s, prefix string) string {
	if prefix == "" {
		return s
	}
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// finishAnswer ends the answer with a blank line.
func finishAnswer(w io.Writer, text string) {
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(w)
	}
	if text != "" {
		fmt.Fprintln(w)
	}
}

// PrintSources lists search results as numbered citations.
func PrintSources(w io.Writer, resp *chat.SearchResponse, prefix string) {
	if resp == nil || len(resp.Results) == 0 {
		return
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	bold.Fprintf(w, "%sSources\n", prefix)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%s[%d] %s ", prefix, i+1, r.Title)
		faint.Fprintln(w, r.URL)
	}
	fmt.Fprintln(w)
}

// PrintRelated lists follow-up questions.
func PrintRelated(w io.Writer, questions []string, prefix string) {
	if len(questions) == 0 {
		return
	}
	cyan := color.New(color.FgCyan)
	color.New(color.Bold).Fprintf(w, "%sRelated\n", prefix)
	for _, q := range questions {
		cyan.Fprintf(w, "%s  → %s\n", prefix, q)
	}
	fmt.Fprintln(w)
}
