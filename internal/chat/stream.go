package chat

import "errors"

// Collect drains a turn's event channel and returns the final text, the
// search results if any were emitted, and the error if the turn failed.
// A channel that closes without a terminal event (a cancelled turn) returns
// the last update text and ErrCancelled.
func Collect(ch <-chan Event) (string, *SearchResponse, error) {
	var (
		text    string
		results *SearchResponse
	)
	for ev := range ch {
		switch ev.Kind {
		case EventSearchResults:
			results = ev.Search
		case EventUpdate:
			text = ev.Text
		case EventComplete:
			return ev.Text, results, nil
		case EventError:
			if ev.Err != nil {
				return text, results, ev.Err
			}
			return text, results, errors.New(ev.Text)
		}
	}
	return text, results, ErrCancelled
}

// ErrCancelled is returned by Collect when a turn ends without a terminal event.
var ErrCancelled = errors.New("turn cancelled")
