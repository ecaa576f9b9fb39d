package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var connections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Current number of WebSocket connections",
	},
	[]string{"role"},
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientInfo identifies the user behind a connection
type ClientInfo struct {
	UserID string
	Role   string
	Name   string
}

// receivesAlerts reports whether the role is shown live clinical alerts
func (i ClientInfo) receivesAlerts() bool {
	return i.Role == domain.RoleAdmin || i.Role == domain.RoleMidwife
}

// Client represents a websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	info ClientInfo
}

// Hub maintains the set of active clients and fans alerts out to clinicians
type Hub struct {
	clients    map[*Client]bool
	clinicians map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		clinicians: make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.info.receivesAlerts() {
				h.clinicians[client] = true
			}
			total := len(h.clinicians)
			h.mu.Unlock()

			connections.WithLabelValues(strings.ToLower(client.info.Role)).Inc()
			h.clientLog(client).WithField("clinicians", total).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.remove(client)
			h.mu.Unlock()

			if removed {
				h.clientLog(client).Info("WebSocket client disconnected")
			}

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove drops a client and closes its send channel; callers hold mu
func (h *Hub) remove(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	delete(h.clinicians, client)
	close(client.send)
	connections.WithLabelValues(strings.ToLower(client.info.Role)).Dec()
	return true
}

// BroadcastToClinicians sends message to connected ADMIN and MIDWIFE users
// and returns how many received it. Clients with a full buffer are dropped.
func (h *Hub) BroadcastToClinicians(message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clinicians {
		select {
		case client.send <- message:
			sent++
		default:
			h.clientLog(client).Warn("WebSocket send buffer full, dropping client")
			h.remove(client)
		}
	}

	if sent == 0 {
		h.log.WithComponent("websocket").Warn("No connected clinicians to receive alert")
	}
	return sent
}

// ConnectedClinicianCount returns the number of connected ADMIN and MIDWIFE users
func (h *Hub) ConnectedClinicianCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clinicians)
}

func (h *Hub) clientLog(c *Client) *logrus.Entry {
	return h.log.WithComponent("websocket").WithFields(logrus.Fields{
		"user_id": c.info.UserID,
		"role":    c.info.Role,
		"name":    c.info.Name,
	})
}

// Serve registers an upgraded connection and starts its pumps
func (h *Hub) Serve(conn *websocket.Conn, info ClientInfo) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		info: info,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.clientLog(c).WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON event per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Upgrade upgrades HTTP connection to WebSocket
func Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, responseHeader)
}
