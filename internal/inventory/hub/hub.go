package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"propview/internal/common/logger"
	"propview/internal/reservation"
)

const (
	sendQueue    = 16
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

type client struct {
	projectID string
	out       chan []byte
}

// ============================================================
// Push Hub
// ============================================================

// Hub fans hierarchy change notices out to websocket subscribers of the
// affected project. A subscriber whose queue is full is dropped.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	now     func() time.Time
}

func New() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		now:     time.Now,
	}
}

// ServeHTTP upgrades GET /ws?project=<id>.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		http.Error(rw, "project is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{projectID: projectID, out: make(chan []byte, sendQueue)}
	h.add(c)
	defer h.remove(c)

	logger.Log.WithField("project", projectID).Info("[WS] subscriber joined")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-c.out:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(time.Second))
					cancel()
					_ = conn.Close()
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					_ = conn.Close()
					return
				}
			}
		}
	}()

	// Subscribers only listen; reading drives pings and detects close.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	logger.Log.WithField("project", projectID).Info("[WS] subscriber left")
}

// HierarchyChanged notifies every subscriber of projectID.
func (h *Hub) HierarchyChanged(projectID string) {
	b, err := json.Marshal(reservation.PushMessage{
		Type:      reservation.MessageHierarchyChanged,
		ProjectID: projectID,
		At:        h.now().UTC(),
	})
	if err != nil {
		logger.Log.WithError(err).Error("[WS] encode push message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.projectID != projectID {
			continue
		}
		select {
		case c.out <- b:
		default:
			logger.Log.WithField("project", projectID).Warn("[WS] dropping slow subscriber")
			delete(h.clients, c)
			close(c.out)
		}
	}
}

// Subscribers returns how many connections watch projectID.
func (h *Hub) Subscribers(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.projectID == projectID {
			n++
		}
	}
	return n
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
}
