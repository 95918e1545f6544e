package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSystemPrompt is the base persona sent as the first message of every turn.
const DefaultSystemPrompt = `You are Morph, a knowledgeable assistant. You provide helpful, accurate, and detailed responses.

Always follow these guidelines:
1. Provide comprehensive and well-structured responses
2. Use markdown formatting for better readability
3. When citing sources, use the format [number](url)
4. Be conversational but professional
5. If you're uncertain about recent information, acknowledge it`

// Recorder receives turn outcomes for metrics.
type Recorder interface {
	TurnFinished(provider, outcome string, elapsed time.Duration)
	SearchFinished(outcome string)
	RelatedFinished(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) TurnFinished(string, string, time.Duration) {}
func (nopRecorder) SearchFinished(string)                      {}
func (nopRecorder) RelatedFinished(string)                     {}

// Turn outcomes reported to the Recorder.
const (
	OutcomeComplete  = "complete"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Options configures an Orchestrator. The zero value is usable.
type Options struct {
	SystemPrompt string
	SearchPolicy SearchPolicy
	Logger       *zerolog.Logger
	Metrics      Recorder
}

// Orchestrator runs chat turns. It holds no per-conversation state, so one
// instance serves any number of concurrent runs.
type Orchestrator struct {
	dispatcher *Dispatcher
	searcher   Searcher
	opts       Options
	log        zerolog.Logger
	metrics    Recorder
}

// New builds an orchestrator. searcher may be nil, which disables search.
func New(dispatcher *Dispatcher, searcher Searcher, opts Options) *Orchestrator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.SearchPolicy.Keywords == nil {
		opts.SearchPolicy = DefaultSearchPolicy()
	}
	o := &Orchestrator{
		dispatcher: dispatcher,
		searcher:   searcher,
		opts:       opts,
		log:        zerolog.Nop(),
		metrics:    nopRecorder{},
	}
	if opts.Logger != nil {
		o.log = *opts.Logger
	}
	if opts.Metrics != nil {
		o.metrics = opts.Metrics
	}
	return o
}

// SearchAvailable reports whether a searcher is configured.
func (o *Orchestrator) SearchAvailable() bool {
	return o.searcher != nil
}

// Request is everything one turn needs.
type Request struct {
	Conversation []Message
	Model        ModelDescriptor
	Credentials  Credentials
	// Search enables the live-search decision for this turn.
	Search bool
}

// Stream starts a turn and returns its events. The channel is closed after
// the terminal event, or without one if ctx is cancelled. Once ctx is
// cancelled no further events are sent and the provider connection is torn
// down.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		o.run(ctx, req, out)
	}()
	return out
}

// Callbacks receive the events of a turn. Nil callbacks are skipped.
type Callbacks struct {
	OnUpdate        func(text string)
	OnSearchResults func(results *SearchResponse)
	OnComplete      func(text string)
	OnError         func(message string)
}

// Run executes a turn and delivers its events to cb, returning once the turn
// is over. Failures are reported through OnError only. After ctx is
// cancelled no callback fires.
func (o *Orchestrator) Run(ctx context.Context, req Request, cb Callbacks) {
	for ev := range o.Stream(ctx, req) {
		if ctx.Err() != nil {
			continue
		}
		switch ev.Kind {
		case EventUpdate:
			if cb.OnUpdate != nil {
				cb.OnUpdate(ev.Text)
			}
		case EventSearchResults:
			if cb.OnSearchResults != nil {
				cb.OnSearchResults(ev.Search)
			}
		case EventComplete:
			if cb.OnComplete != nil {
				cb.OnComplete(ev.Text)
			}
		case EventError:
			if cb.OnError != nil {
				cb.OnError(ev.Text)
			}
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, out chan<- Event) {
	start := time.Now()
	log := o.log.With().
		Str("turn_id", uuid.NewString()).
		Str("provider", string(req.Model.ProviderID)).
		Str("model", req.Model.ID).
		Logger()

	emit := func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	finish := func(outcome string) {
		o.metrics.TurnFinished(string(req.Model.ProviderID), outcome, time.Since(start))
	}

	results := o.decideAndSearch(ctx, req.Conversation, req.Search, &log)
	if ctx.Err() != nil {
		log.Debug().Msg("turn cancelled during search")
		finish(OutcomeCancelled)
		return
	}
	if results != nil && !emit(Event{Kind: EventSearchResults, Search: results}) {
		finish(OutcomeCancelled)
		return
	}

	stream, err := o.dispatcher.Stream(ctx, req.Model, o.buildMessages(req.Conversation, results), req.Credentials)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug().Msg("turn cancelled during dispatch")
			finish(OutcomeCancelled)
			return
		}
		log.Error().Err(err).Msg("dispatch failed")
		finish(OutcomeError)
		emit(Event{Kind: EventError, Text: err.Error(), Err: err})
		return
	}
	defer stream.Close()
	// Closing the body unblocks a Read that is waiting on the network.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	final, err := stream.Decode(ctx,
		func(text string) { emit(Event{Kind: EventUpdate, Text: text}) },
		func(line string, err error) {
			log.Debug().Err(err).Str("line", line).Msg("dropped malformed chunk")
		},
	)
	if ctx.Err() != nil {
		log.Debug().Int("chars", len(final)).Msg("turn cancelled while streaming")
		finish(OutcomeCancelled)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("stream read failed")
		finish(OutcomeError)
		emit(Event{Kind: EventError, Text: "stream interrupted: " + err.Error(), Err: err})
		return
	}

	log.Info().Int("chars", len(final)).Dur("elapsed", time.Since(start)).Msg("turn complete")
	finish(OutcomeComplete)
	emit(Event{Kind: EventComplete, Text: final})
}

// buildMessages prefixes the conversation with the system prompt, extended
// with search context when results are present. conv is copied, not modified.
func (o *Orchestrator) buildMessages(conv []Message, results *SearchResponse) []Message {
	msgs := make([]Message, 0, len(conv)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: Augment(o.opts.SystemPrompt, results)})
	return append(msgs, conv...)
}
