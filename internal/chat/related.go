package chat

import (
	"context"
	"fmt"
	"strings"
)

const maxRelatedQuestions = 3

const relatedPrompt = `Based on the conversation and the query %q, generate 3 related questions that the user might want to ask next. Return only the questions, one per line.`

// RelatedQuestions asks the fallback model for up to three follow-up
// questions. It is best effort: any failure yields an empty result.
func (o *Orchestrator) RelatedQuestions(ctx context.Context, conv []Message, lastQuery string, creds Credentials) []string {
	msgs := make([]Message, 0, len(conv)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: o.opts.SystemPrompt})
	msgs = append(msgs, conv...)
	msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf(relatedPrompt, lastQuery)})

	reply, err := o.dispatcher.Complete(ctx, FallbackModel, msgs, creds)
	if err != nil {
		if ctx.Err() == nil {
			o.log.Warn().Err(err).Msg("related questions failed")
			o.metrics.RelatedFinished(OutcomeError)
		}
		return []string{}
	}
	questions := ParseRelatedQuestions(reply)
	o.metrics.RelatedFinished(OutcomeComplete)
	return questions
}

// ParseRelatedQuestions keeps the first three lines that contain a question
// mark, trimmed and without list markers.
func ParseRelatedQuestions(text string) []string {
	questions := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "?") {
			continue
		}
		questions = append(questions, stripListMarker(line))
		if len(questions) == maxRelatedQuestions {
			break
		}
	}
	return questions
}

// stripListMarker removes a leading "1.", "2)", "-" or "*" bullet.
func stripListMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return strings.TrimSpace(line[2:])
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
