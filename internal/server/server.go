// Package server provides the HTTP and WebSocket surface: a render-diff
// feed for overlay clients plus a small control API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lenslate/lenslate/internal/overlay"
	"github.com/lenslate/lenslate/internal/pipeline"
	"github.com/lenslate/lenslate/internal/trace"
)

// Controller is the pipeline surface the server drives. *pipeline.Pipeline
// implements it.
type Controller interface {
	SetRunning(enabled bool)
	Running() bool
	SetLanguages(source, target string)
	Languages() pipeline.LangPair
	Stats() pipeline.Stats
	Published() overlay.Snapshot
	ClearCache()
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type DiffMessage struct {
	Type string             `json:"type"`
	Diff overlay.RenderDiff `json:"diff"`
}

type StateMessage struct {
	Type       string `json:"type"`
	Running    bool   `json:"running"`
	Generation uint64 `json:"generation"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// LanguagesMessage is the client request to switch the translation pair.
type LanguagesMessage struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one overlay connection. All outbound traffic goes through send
// and a single writer goroutine: diffs are order-sensitive incremental
// state, and concurrent writers could deliver a removal ahead of the draw
// it depends on.
type client struct {
	conn *websocket.Conn
	send chan any
	rl   *rateLimiter
}

// writeLoop drains send in order until the channel closes or a write
// fails.
func (cl *client) writeLoop() {
	for msg := range cl.send {
		ctx, cancel := contextWithWriteTimeout()
		err := wsjson.Write(ctx, cl.conn, msg)
		cancel()
		if err != nil {
			return
		}
	}
}

// enqueue offers a control reply without blocking the read loop. Control
// replies are stateless, so dropping one under backpressure is safe.
func (cl *client) enqueue(msg any) {
	select {
	case cl.send <- msg:
	default:
	}
}

// Server fans render diffs out to connected overlay clients and exposes the
// control API. It implements overlay.Sink.
type Server struct {
	ctrl    Controller
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// New creates a server bound to a pipeline controller.
func New(ctrl Controller) *Server {
	return &Server{
		ctrl:    ctrl,
		clients: make(map[*websocket.Conn]*client),
	}
}

// PublishDiff broadcasts a render diff to every connected client. A client
// whose queue is full cannot just skip the diff, since a missing delta
// corrupts its overlay for good; it is disconnected instead and gets a full
// replay on reconnect.
func (s *Server) PublishDiff(diff overlay.RenderDiff) {
	msg := DiffMessage{Type: "diff", Diff: diff}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cl := range s.clients {
		select {
		case cl.send <- msg:
		default:
			go func(c *websocket.Conn) {
				_ = c.Close(websocket.StatusPolicyViolation, "diff queue overflow")
			}(cl.conn)
		}
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket render feed
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/pause", s.handlePause)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	mux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)
	mux.HandleFunc("POST /api/languages", s.handleLanguages)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	cl := &client{conn: conn, send: make(chan any, sendBuffer), rl: &rateLimiter{}}
	s.mu.Lock()
	s.clients[conn] = cl
	s.mu.Unlock()

	defer func() {
		// Deregister before closing send: PublishDiff only writes to
		// channels of registered clients, under the same lock.
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		close(cl.send)
	}()

	go cl.writeLoop()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("overlay client connected", "remote", r.RemoteAddr)

	// A client joining mid-stream needs the whole current overlay, not
	// just future deltas: replay the published snapshot as one full diff.
	// The queue is empty at this point, so these sends cannot drop.
	snap := s.ctrl.Published()
	if len(snap.Blocks) > 0 {
		state := overlay.NewState()
		full := state.Apply(snap.Generation, snap.Blocks)
		cl.send <- DiffMessage{Type: "diff", Diff: full}
	}
	cl.send <- s.stateMessage()

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Control frames may carry a trace id inline; honoring it ties a
		// client action to the pipeline logs it triggers.
		mlog := log
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			mlog = trace.Logger(trace.WithContext(baseCtx, tc))
		}

		if !cl.rl.allow() {
			mlog.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			cl.enqueue(RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "pause":
			s.ctrl.SetRunning(false)
		case "resume":
			s.ctrl.SetRunning(true)
		case "set_languages":
			var lm LanguagesMessage
			if err := json.Unmarshal(msg, &lm); err != nil || lm.Source == "" || lm.Target == "" {
				mlog.Warn("invalid set_languages message")
				continue
			}
			s.ctrl.SetLanguages(lm.Source, lm.Target)
		default:
			mlog.Debug("unknown message type", "type", base.Type)
			continue
		}
		cl.enqueue(s.stateMessage())
	}
}

// stateMessage assembles the current control state for clients.
func (s *Server) stateMessage() StateMessage {
	langs := s.ctrl.Languages()
	return StateMessage{
		Type:       "state",
		Running:    s.ctrl.Running(),
		Generation: s.ctrl.Published().Generation,
		SourceLang: langs.Source,
		TargetLang: langs.Target,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.ctrl.Stats())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.ctrl.SetRunning(false)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.ctrl.SetRunning(true)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ClearCache()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cache_cleared"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	var lm LanguagesMessage
	if err := json.NewDecoder(r.Body).Decode(&lm); err != nil || lm.Source == "" || lm.Target == "" {
		http.Error(w, "source and target required", http.StatusBadRequest)
		return
	}
	s.ctrl.SetLanguages(lm.Source, lm.Target)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "languages_set",
		"source": lm.Source,
		"target": lm.Target,
	})
}

func contextWithWriteTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeTimeout)
}
