// Package server exposes the orchestrator over a websocket so a browser
// client can stream answers and cancel them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/observability"
)

const (
	maxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
	relatedLimit = 30 * time.Second
)

// ModelLister returns the models usable with the given credentials.
type ModelLister interface {
	ListEnabledModels(creds chat.Credentials) []chat.ModelDescriptor
}

// Options configures a Server.
type Options struct {
	Credentials chat.Credentials
	Models      ModelLister
	// Search is the default when a chat frame does not say.
	Search       bool
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
	HealthChecks map[string]observability.HealthCheckFunc
	Version      string
}

// Server serves /ws, /models, /health and /metrics.
type Server struct {
	orch     *chat.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

// New creates a server around an orchestrator.
func New(orch *chat.Orchestrator, opts Options) *Server {
	return &Server{
		orch: orch,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/models", s.handleModels)
	mux.HandleFunc("/health", observability.HealthHandler(s.opts.Version, s.opts.HealthChecks))
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	return mux
}

func (s *Server) enabledModels() []chat.ModelDescriptor {
	if s.opts.Models == nil {
		return []chat.ModelDescriptor{chat.FallbackModel}
	}
	return s.opts.Models.ListEnabledModels(s.opts.Credentials)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"models":          s.enabledModels(),
		"default":         chat.DefaultModel(s.enabledModels()).ID,
		"searchAvailable": s.orch.SearchAvailable(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	sess := &session{
		srv:  s,
		conn: conn,
		log:  s.opts.Logger.With().Str("session_id", observability.NewCorrelationID()).Logger(),
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionOpened()
		defer s.opts.Metrics.SessionClosed()
	}
	sess.log.Info().Str("remote", r.RemoteAddr).Msg("session opened")
	sess.serve(r.Context())
	sess.log.Info().Msg("session closed")
}

// session is one websocket connection. It owns a single turn slot.
type session struct {
	srv  *Server
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex
	turn    chat.Turn
	wg      sync.WaitGroup
}

func (sess *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		sess.wg.Wait()
	}()

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			sess.send(ctx, serverFrame{Type: "error", Message: "invalid frame: " + err.Error()})
			continue
		}
		switch frame.Type {
		case frameChat:
			sess.startTurn(ctx, frame)
		case frameCancel:
			if sess.turn.Cancel() {
				sess.log.Debug().Msg("turn cancelled by client")
			}
		default:
			sess.send(ctx, serverFrame{Type: "error", Message: "unknown frame type " + frame.Type})
		}
	}
}

func (sess *session) startTurn(parent context.Context, frame clientFrame) {
	conv, err := conversation(frame.Messages)
	if err != nil {
		sess.send(parent, serverFrame{Type: "error", Message: err.Error()})
		return
	}
	model, ok := chat.ResolveModel(sess.srv.enabledModels(), frame.Model)
	if !ok {
		sess.send(parent, serverFrame{Type: "error", Message: "unknown or unavailable model " + frame.Model})
		return
	}
	search := sess.srv.opts.Search
	if frame.Search != nil {
		search = *frame.Search
	}

	ctx, release := sess.turn.Begin(parent)
	turnID := observability.NewCorrelationID()
	req := chat.Request{
		Conversation: conv,
		Model:        model,
		Credentials:  sess.srv.opts.Credentials,
		Search:       search,
	}

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer release()

		completed := false
		for ev := range sess.srv.orch.Stream(ctx, req) {
			f := eventFrame(turnID, ev)
			if ev.Kind == chat.EventUpdate || ev.Kind == chat.EventComplete {
				f.Model = model.ID
			}
			if !sess.send(ctx, f) {
				continue
			}
			completed = completed || ev.Kind == chat.EventComplete
		}
		if !completed || !frame.Related {
			return
		}

		rctx, cancel := context.WithTimeout(ctx, relatedLimit)
		defer cancel()
		var last string
		for _, m := range conv {
			if m.Role == chat.RoleUser {
				last = m.Content
			}
		}
		questions := sess.srv.orch.RelatedQuestions(rctx, conv, last, req.Credentials)
		sess.send(ctx, serverFrame{Type: "related", TurnID: turnID, Questions: questions})
	}()
}

// send writes a frame unless ctx is already cancelled. It reports whether
// the frame was written.
func (sess *session) send(ctx context.Context, f serverFrame) bool {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := sess.conn.WriteJSON(f); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			sess.log.Debug().Err(err).Msg("websocket write failed")
		}
		return false
	}
	return true
}
