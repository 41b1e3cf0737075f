package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// streamWriteTimeout bounds a single snapshot write to a websocket peer.
const streamWriteTimeout = 5 * time.Second

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(s.sessions.Snapshot())
}

// handleSessionEvents streams a snapshot after every session transition.
// The first message is the current snapshot. Client messages are ignored.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		logger.Info("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	id := s.streams.register(cancel)
	defer s.streams.unregister(id)

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	updates, stop := s.sessions.Subscribe()
	defer stop()

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "console shutting down")
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, snap)
			writeCancel()
			if err != nil {
				logger.Debug("session stream write failed", "close_status", websocket.CloseStatus(err), "error", err)
				return
			}
		}
	}
}

// streamRegistry tracks open websocket streams so shutdown can end them;
// http.Server.Shutdown does not wait for hijacked connections.
type streamRegistry struct {
	mu      sync.Mutex
	next    int
	cancels map[int]context.CancelFunc
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{cancels: make(map[int]context.CancelFunc)}
}

func (r *streamRegistry) register(cancel context.CancelFunc) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.cancels[id] = cancel
	return id
}

func (r *streamRegistry) unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}

func (r *streamRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// closeAll cancels every open stream.
func (r *streamRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.cancels {
		cancel()
		delete(r.cancels, id)
	}
}

// originPatterns turns allowed origins into the host patterns websocket.Accept
// matches the Origin header against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
