package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/flybeeper/track-recorder/internal/metrics"
	"github.com/flybeeper/track-recorder/internal/models"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 256
)

// SnapshotSource источник текущего состояния для приветствия клиента
type SnapshotSource interface {
	LiveSnapshot() models.LiveUpdate
}

// LiveHub раздает живые обновления трека WebSocket клиентам.
// Реализует service.Listener: OnUpdate не блокируется, медленные
// клиенты теряют сообщения.
type LiveHub struct {
	upgrader     websocket.Upgrader
	source       SnapshotSource
	logger       *logrus.Entry
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// Client WebSocket соединение подписчика
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *LiveHub
	once sync.Once
}

// Message конверт сообщения клиенту
type Message struct {
	Type      string             `json:"type"` // welcome|update|ping
	Update    *models.LiveUpdate `json:"update,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// NewLiveHub создает hub
func NewLiveHub(source SnapshotSource, logger *logrus.Entry, pingInterval, pongTimeout time.Duration) *LiveHub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= pingInterval {
		pongTimeout = 2 * pingInterval
	}

	return &LiveHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		source:       source,
		logger:       logger.WithField("component", "websocket"),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		clients:      make(map[*Client]struct{}),
	}
}

// HandleWebSocket обрабатывает подключение к /ws/v1/position
func (h *LiveHub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to upgrade to WebSocket")
		metrics.WebSocketErrors.Inc()
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, clientSendSize),
		hub:  h,
	}

	// Приветствие ставится в очередь до регистрации, чтобы быть первым сообщением
	if h.source != nil {
		snapshot := h.source.LiveSnapshot()
		if data, err := encodeMessage("welcome", &snapshot); err == nil {
			client.send <- data
		}
	}

	if !h.register(client) {
		conn.Close()
		return
	}

	h.logger.WithFields(logrus.Fields{
		"client_ip": c.ClientIP(),
		"clients":   h.ClientCount(),
	}).Info("WebSocket client connected")

	go client.writePump()
	go client.readPump()
}

// OnUpdate рассылает обновление всем клиентам
func (h *LiveHub) OnUpdate(update models.LiveUpdate) {
	data, err := encodeMessage("update", &update)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal live update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			metrics.WebSocketErrors.Inc()
			h.logger.Debug("WebSocket client send buffer full, dropping update")
		}
	}
}

// ClientCount количество подключенных клиентов
func (h *LiveHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов
func (h *LiveHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.unregister(client)
	}
}

func (h *LiveHub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	metrics.WebSocketConnections.Inc()
	return true
}

func (h *LiveHub) unregister(client *Client) {
	client.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()

		metrics.WebSocketConnections.Dec()
		close(client.send)
		h.logger.Debug("WebSocket client disconnected")
	})
}

func encodeMessage(msgType string, update *models.LiveUpdate) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Update:    update,
		Timestamp: time.Now().UnixMilli(),
	})
}

// readPump читает входящие сообщения (только pong и закрытие)
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("error", err).Warn("WebSocket read error")
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
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

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.WithField("error", err).Warn("WebSocket write error")
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("update").Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketErrors.Inc()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("ping").Inc()
		}
	}
}
