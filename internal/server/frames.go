package server

import (
	"fmt"

	"github.com/arin/morph/internal/chat"
)

// Client frame types.
const (
	frameChat   = "chat"
	frameCancel = "cancel"
)

// clientFrame is a message received from the browser.
type clientFrame struct {
	Type     string         `json:"type"`
	Messages []frameMessage `json:"messages,omitempty"`
	Model    string         `json:"model,omitempty"`
	// Search defaults to the server setting when omitted.
	Search  *bool `json:"search,omitempty"`
	Related bool  `json:"related,omitempty"`
}

type frameMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// serverFrame is a message sent to the browser. Type is one of update,
// search_results, complete, error or related.
type serverFrame struct {
	Type      string               `json:"type"`
	TurnID    string               `json:"turnId,omitempty"`
	Text      string               `json:"text,omitempty"`
	Message   string               `json:"message,omitempty"`
	Results   *chat.SearchResponse `json:"results,omitempty"`
	Questions []string             `json:"questions,omitempty"`
	Model     string               `json:"model,omitempty"`
}

func eventFrame(turnID string, ev chat.Event) serverFrame {
	f := serverFrame{Type: ev.Kind.String(), TurnID: turnID}
	switch ev.Kind {
	case chat.EventUpdate, chat.EventComplete:
		f.Text = ev.Text
	case chat.EventSearchResults:
		f.Results = ev.Search
	case chat.EventError:
		f.Message = ev.Text
	}
	return f
}

// conversation converts wire messages, rejecting unknown roles and empty
// conversations.
func conversation(msgs []frameMessage) ([]chat.Message, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	out := make([]chat.Message, 0, len(msgs))
	for i, m := range msgs {
		role := chat.Role(m.Role)
		switch role {
		case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		out = append(out, chat.NewMessage(role, m.Content))
	}
	return out, nil
}
