// Package live pushes appointment changes to connected dashboards over
// websockets, so open calendars refresh without polling. The hub doubles as
// the event publisher the scheduling service writes into.
package live

import (
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	appevents "github.com/agendadigital/agenda-platform/internal/events"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Hub fans appointment events out to subscribed dashboard connections,
// partitioned by tenant.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn     *websocket.Conn
	tenantID string
	send     chan appevents.AppointmentChangeV1
	done     chan struct{}
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// PublishAppointmentChange implements the scheduling event sink: every
// connected dashboard of the event's tenant receives it. Slow consumers
// drop events rather than blocking the booking path.
func (h *Hub) PublishAppointmentChange(evt appevents.AppointmentChangeV1) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.tenantID != evt.TenantID {
			continue
		}
		select {
		case c.send <- evt:
		default:
			h.logger.Warn("dropping event for slow dashboard connection",
				"tenant", evt.TenantID, "event", evt.Type)
		}
	}
}

// Handler returns the websocket endpoint. The tenant comes from the query
// string because browser websocket clients cannot set request headers.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, conn.Request())
	})
}

func (h *Hub) serve(conn *websocket.Conn, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		_ = websocket.JSON.Send(conn, map[string]string{"error": "missing tenant parameter"})
		_ = conn.Close()
		return
	}

	client := &wsClient{
		conn:     conn,
		tenantID: tenantID,
		send:     make(chan appevents.AppointmentChangeV1, 16),
		done:     make(chan struct{}),
	}
	if !h.add(client) {
		_ = conn.Close()
		return
	}
	defer h.remove(client)

	h.logger.Info("dashboard connected", "tenant", tenantID)

	// Reads only serve to detect disconnects; dashboards are listeners.
	go func() {
		var discard map[string]any
		for {
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				close(client.done)
				return
			}
		}
	}()

	for {
		select {
		case <-client.done:
			return
		case evt := <-client.send:
			if err := websocket.JSON.Send(conn, evt); err != nil {
				h.logger.Warn("dashboard send failed", "tenant", tenantID, "error", err)
				return
			}
		}
	}
}

func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	_ = c.conn.Close()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// ClientCount reports active connections, for health reporting.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
