package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// EventHistoryUpdated is pushed after every successful save.
const EventHistoryUpdated = "history.updated"

// HistoryEvent tells a user's open dashboards that one of their chats
// changed.
type HistoryEvent struct {
	Type            string    `json:"type"`
	ChatID          string    `json:"chat_id"`
	Title           string    `json:"title"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	MessageCount    int       `json:"messageCount"`
}

// EventSender is the minimal interface the hub needs from a connection.
type EventSender interface {
	Send(ctx context.Context, ev *HistoryEvent) error
}

// ConnectionHub maps user ids to their open event connections so the
// server can push to every endpoint a user has open.
type ConnectionHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]EventSender
	nextID  int64
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{streams: make(map[string]map[int64]EventSender)}
}

// Register adds a connection for userID and returns an id for Unregister.
func (h *ConnectionHub) Register(userID string, s EventSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[int64]EventSender)
	}

	h.nextID++
	id := h.nextID
	h.streams[userID][id] = s
	return id
}

// Unregister removes a previously registered connection.
func (h *ConnectionHub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.streams[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.streams, userID)
		}
	}
}

// Connected reports whether userID has at least one open connection.
func (h *ConnectionHub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[userID]) > 0
}

// SendToUser sends ev to every connection of userID and returns the first
// error. Connections that fail are unregistered.
func (h *ConnectionHub) SendToUser(ctx context.Context, userID string, ev *HistoryEvent) error {
	h.mu.RLock()
	conns := make(map[int64]EventSender, len(h.streams[userID]))
	for id, s := range h.streams[userID] {
		conns[id] = s
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s not connected", userID)
	}

	var firstErr error
	var failedIDs []int64
	for id, st := range conns {
		if err := st.Send(ctx, ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}

// wsSender writes events to a websocket as JSON text frames.
type wsSender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSender) Send(ctx context.Context, ev *HistoryEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, b)
}

// handleEvents upgrades to a websocket that receives HistoryEvents for the
// caller. Messages from the client are ignored.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originHosts(s.origins),
	})
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	userID := id.ID.Hex()
	connID := s.hub.Register(userID, &wsSender{conn: conn, timeout: 5 * time.Second})
	defer s.hub.Unregister(userID, connID)

	s.log.Debug("event stream opened", zap.String("user_id", userID))
	<-ctx.Done()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// originHosts converts configured origins to the host patterns accepted
// by websocket.Accept.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
