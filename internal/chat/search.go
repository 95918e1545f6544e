package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SearchDepth selects how thorough a web search is.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// searchResultLimit caps the number of results requested per turn.
const searchResultLimit = 5

// Searcher runs live web searches.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, depth SearchDepth) (*SearchResponse, error)
}

// recencyKeywords signal that a question depends on current information.
var recencyKeywords = []string{
	"latest", "recent", "current", "today", "now", "this year",
	"news", "update", "what happened", "trending", "price", "stock",
	"weather", "status", "release", "announcement", "breaking",
	"2024", "2025",
}

// SearchPolicy decides which user messages trigger a live search: any keyword
// hit, or any "?" when QuestionMarkTriggers is set.
type SearchPolicy struct {
	Keywords []string
	// QuestionMarkTriggers makes any message containing "?" search-worthy.
	QuestionMarkTriggers bool
}

// DefaultSearchPolicy returns the standard keyword set plus the current and
// previous calendar year.
func DefaultSearchPolicy() SearchPolicy {
	return newSearchPolicy(time.Now())
}

func newSearchPolicy(now time.Time) SearchPolicy {
	keywords := append([]string(nil), recencyKeywords...)
	for _, y := range []int{now.Year() - 1, now.Year()} {
		year := strconv.Itoa(y)
		if !containsString(keywords, year) {
			keywords = append(keywords, year)
		}
	}
	return SearchPolicy{Keywords: keywords, QuestionMarkTriggers: true}
}

// ShouldSearch reports whether text warrants a live search.
func (p SearchPolicy) ShouldSearch(text string) bool {
	content := strings.ToLower(text)
	for _, kw := range p.Keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return p.QuestionMarkTriggers && strings.Contains(content, "?")
}

// lastUserMessage returns the most recent user message, if any.
func lastUserMessage(conv []Message) (Message, bool) {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == RoleUser {
			return conv[i], true
		}
	}
	return Message{}, false
}

// decideAndSearch runs a search for the latest user message when searching
// is enabled and the policy asks for it. Search failures are logged and
// reported as no results; they never abort the turn.
func (o *Orchestrator) decideAndSearch(ctx context.Context, conv []Message, enabled bool, log *zerolog.Logger) *SearchResponse {
	if !enabled || o.searcher == nil {
		return nil
	}
	last, ok := lastUserMessage(conv)
	if !ok || !o.opts.SearchPolicy.ShouldSearch(last.Content) {
		return nil
	}

	log.Debug().Str("query", last.Content).Msg("searching")
	resp, err := o.searcher.Search(ctx, last.Content, searchResultLimit, DepthBasic)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("search failed, continuing without results")
			o.metrics.SearchFinished("error")
		}
		return nil
	}
	if resp == nil || len(resp.Results) == 0 {
		o.metrics.SearchFinished("empty")
		return nil
	}
	o.metrics.SearchFinished("ok")
	log.Debug().Int("results", len(resp.Results)).Msg("search complete")
	return resp
}

// Augment appends numbered search results to the system prompt so the model
// can cite them as [number](url).
func Augment(systemPrompt string, resp *SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return systemPrompt
	}
	blocks := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		blocks[i] = fmt.Sprintf("[%d] %s\nURL: %s\nContent: %s", i+1, r.Title, r.URL, r.Content)
	}
	return systemPrompt + "\n\nCurrent search results for reference:\n\n" +
		strings.Join(blocks, "\n\n") +
		"\n\nUse this information to provide accurate, up-to-date responses. " +
		"When a statement is drawn from these results, cite it using the [number](url) format. " +
		"Do not cite results you did not use."
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
