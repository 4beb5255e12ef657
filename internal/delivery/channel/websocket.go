package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

const (
	metricsNamespace = "livewire"

	sessionBuffer   = 16
	writeTimeout    = 5 * time.Second
	pongTimeout     = 60 * time.Second
	pingPeriod      = 20 * time.Second
	maxInboundBytes = 512
)

// frame is the wire shape pushed to connected clients.
type frame struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityKind string    `json:"entityKind,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Hub fans alerts out to live websocket sessions. A user may hold several
// sessions at once; a session that cannot keep up is dropped instead of
// blocking delivery for everyone else.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logr.Logger

	mu       sync.RWMutex
	sessions map[entity.UserID]map[*session]struct{}
	closed   bool

	metrics hubMetrics
}

type hubMetrics struct {
	sessions prometheus.Gauge
}

func NewHub(registry prometheus.Registerer) (*Hub, error) {
	metrics, err := createHubMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[entity.UserID]map[*session]struct{}),
		metrics:  metrics,
	}, nil
}

func createHubMetrics(registry prometheus.Registerer) (hubMetrics, error) {
	ret := hubMetrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "websocket",
			Name:      "sessions",
			Help:      "Connected websocket sessions.",
		}),
	}

	err := registry.Register(ret.sessions)
	if err != nil {
		return hubMetrics{}, fmt.Errorf("failed to register metric: %w", err)
	}

	return ret, nil
}

func (h *Hub) WithLogger(logger logr.Logger) *Hub {
	h.logger = &logger

	return h
}

func (h *Hub) ID() entity.ChannelID {
	return entity.ChannelWebsocket
}

// ServeHTTP upgrades the request and keeps the session registered until the
// peer goes away. The user id comes from the "user" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := entity.UserID(r.URL.Query().Get("user"))
	if user == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logError(err, "Failed to upgrade websocket request", "user", user)

		return
	}

	sess := &session{
		user: user,
		conn: conn,
		send: make(chan []byte, sessionBuffer),
		done: make(chan struct{}),
		hub:  h,
	}

	if !h.register(sess) {
		_ = conn.Close()

		return
	}

	h.logInfo(1, "Websocket session opened", "user", user)

	go sess.writeLoop()
	sess.readLoop()
}

// Send pushes the alert to every live session of the user. No session means
// the recipient is unreachable here, which is not a failure.
func (h *Hub) Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error) {
	payload, err := json.Marshal(mapToFrame(alert))
	if err != nil {
		return false, fmt.Errorf("failed to marshal frame: %w", err)
	}

	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions[user]))
	for sess := range h.sessions[user] {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	delivered := false

	for _, sess := range sessions {
		select {
		case sess.send <- payload:
			delivered = true
		default:
			// A full buffer means the client stopped reading. Drop it
			// rather than stall alert delivery.
			h.logInfo(1, "Dropping slow websocket session", "user", user)
			sess.close()
		}
	}

	return delivered, nil
}

// Close drops every session and rejects new connections.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true

	sessions := make([]*session, 0)
	for _, set := range h.sessions {
		for sess := range set {
			sessions = append(sessions, sess)
		}
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}

	return nil
}

// SessionCount reports live sessions for one user.
func (h *Hub) SessionCount(user entity.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions[user])
}

func (h *Hub) register(sess *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	set, ok := h.sessions[sess.user]
	if !ok {
		set = make(map[*session]struct{})
		h.sessions[sess.user] = set
	}

	set[sess] = struct{}{}
	h.metrics.sessions.Inc()

	return true
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[sess.user]
	if !ok {
		return
	}

	_, ok = set[sess]
	if !ok {
		return
	}

	delete(set, sess)
	if len(set) == 0 {
		delete(h.sessions, sess.user)
	}

	h.metrics.sessions.Dec()
}

func mapToFrame(alert entity.Alert) frame {
	return frame{
		ID:         alert.ID,
		Type:       string(alert.Type),
		Priority:   alert.Priority.String(),
		Title:      alert.Title,
		Message:    alert.Message,
		EntityKind: string(alert.Entity.Kind),
		EntityID:   alert.Entity.ID,
		CreatedAt:  alert.CreatedAt,
	}
}

func (h *Hub) logInfo(level int, msg string, keysAndValues ...any) {
	if h.logger == nil {
		return
	}

	h.logger.V(level).Info(msg, keysAndValues...)
}

func (h *Hub) logError(err error, msg string, keysAndValues ...any) {
	if h.logger == nil {
		return
	}

	h.logger.Error(err, msg, keysAndValues...)
}

// session is one upgraded connection. The send channel is never closed;
// writeLoop exits through done so concurrent senders cannot hit a closed
// channel.
type session struct {
	user entity.UserID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	hub  *Hub

	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.hub.unregister(s)
		close(s.done)
		_ = s.conn.Close()
	})
}

// writeLoop owns every write on the connection, pings included.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			err := s.conn.WriteMessage(websocket.TextMessage, payload)
			if err != nil {
				s.close()

				return
			}
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			if err != nil {
				s.close()

				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop discards inbound frames; clients only listen. It returns when
// the peer goes away, which is how the session learns it is dead.
func (s *session) readLoop() {
	s.conn.SetReadLimit(maxInboundBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, _, err := s.conn.ReadMessage()
		if err != nil {
			s.close()

			return
		}
	}
}
