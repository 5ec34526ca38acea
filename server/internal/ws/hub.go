package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldensig/goldensig/server/internal/session"
)

// Event names.
const (
	EventGolden   = "golden"
	EventApproved = "approved"
	EventClosed   = "closed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxInbound,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true }, // CORS and auth run before the upgrade
}

// Source resolves a session's golden overview.
type Source interface {
	Get(id string) (session.Overview, error)
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event     string            `json:"event"`
	SessionID string            `json:"session_id"`
	Golden    *session.Overview `json:"golden,omitempty"`
	Approval  *session.Approval `json:"approval,omitempty"`
}

// Hub fans session updates out to WebSocket subscribers. Each subscriber
// follows one session and gets its golden overview every interval, approval
// events as they happen, and a final "closed" event when the session ends.
type Hub struct {
	source   Source
	interval time.Duration

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New creates a Hub that reads from src and pushes every interval.
func New(src Source, interval time.Duration) *Hub {
	return &Hub{
		source:   src,
		interval: interval,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run pushes the golden overview of every followed session each interval.
// When ctx is cancelled all subscriptions end and Run returns.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
			h.tick()
		}
	}
}

// Serve upgrades the connection and streams sessionID to the client. An
// unknown session is answered with 404 before upgrading. Blocks until the
// connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	ov, err := h.source.Get(sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade has replied already
	}

	s := newSubscriber(sessionID, conn)
	if data, err := json.Marshal(Message{Event: EventGolden, SessionID: sessionID, Golden: &ov}); err == nil {
		s.offer(data)
	}
	h.add(s)
	defer h.drop(s)

	slog.Debug("ws: subscribed", "session", sessionID, "remote", r.RemoteAddr)
	go s.writeLoop()
	s.readLoop()
}

// Approved pushes a to the subscribers of its session. It matches session.Hook.
func (h *Hub) Approved(_ context.Context, a session.Approval) {
	msg := Message{Event: EventApproved, SessionID: a.SessionID, Approval: &a}
	if ov, err := h.source.Get(a.SessionID); err == nil {
		msg.Golden = &ov
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.publish(a.SessionID, data)
}

// Notify pushes the current state of sessionID right away, ending its
// subscriptions if the session is gone.
func (h *Hub) Notify(sessionID string) {
	data, gone := h.snapshot(sessionID)
	for _, s := range h.following(sessionID) {
		h.send(s, data)
		if gone {
			h.drop(s)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

// drop removes s and stops it. Safe to call more than once.
func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.stop()
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.stop()
	}
}

// following returns the subscribers of sessionID, or all of them if
// sessionID is empty. The result may include subscribers dropped after it
// was taken; send copes with that.
func (h *Hub) following(sessionID string) []*subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		if sessionID == "" || s.session == sessionID {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) publish(sessionID string, data []byte) {
	for _, s := range h.following(sessionID) {
		h.send(s, data)
	}
}

// send queues data for s. A subscriber that cannot keep up is dropped.
func (h *Hub) send(s *subscriber, data []byte) {
	if s.offer(data) || s.stopped() {
		return
	}
	slog.Debug("ws: dropping slow subscriber", "session", s.session)
	h.drop(s)
}

// tick pushes one snapshot per followed session, built once per session.
func (h *Hub) tick() {
	type snap struct {
		data []byte
		gone bool
	}
	cache := make(map[string]snap)
	for _, s := range h.following("") {
		sn, ok := cache[s.session]
		if !ok {
			sn.data, sn.gone = h.snapshot(s.session)
			cache[s.session] = sn
		}
		h.send(s, sn.data)
		if sn.gone {
			h.drop(s)
		}
	}
}

// snapshot returns the golden message for sessionID, or a closed message
// and true once the session no longer exists.
func (h *Hub) snapshot(sessionID string) ([]byte, bool) {
	ov, err := h.source.Get(sessionID)
	if err != nil {
		data, _ := json.Marshal(Message{Event: EventClosed, SessionID: sessionID})
		return data, true
	}
	data, _ := json.Marshal(Message{Event: EventGolden, SessionID: sessionID, Golden: &ov})
	return data, false
}
