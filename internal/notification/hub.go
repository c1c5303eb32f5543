// Package notification доставляет уведомления пользователям: сохраняет их,
// отправляет по websocket, публикует событие в Kafka и пересылает в push-шлюз.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn описывает websocket-соединение, в которое можно писать JSON.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// writeWait ограничивает одну запись в соединение, если контекст не задаёт срок раньше.
const writeWait = 10 * time.Second

type client struct {
	mu   sync.Mutex
	conn Conn
}

// write пишет v с дедлайном не позже срока ctx. Клиент, который не читает,
// получает ошибку записи по таймауту вместо бесконечной блокировки.
func (c *client) write(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Hub хранит открытые соединения пользователей. Один пользователь может держать несколько соединений.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *zap.Logger
}

// NewHub создаёт пустой реестр соединений.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger,
	}
}

// Register добавляет соединение пользователя и возвращает функцию его снятия с учёта.
func (h *Hub) Register(userID string, conn Conn) func() {
	unregister := h.registerClient(userID, &client{conn: conn})
	h.logger.Debug("websocket registered", zap.String("user_id", userID))
	return unregister
}

func (h *Hub) remove(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// Connections возвращает число открытых соединений пользователя.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push отправляет payload во все соединения пользователя и возвращает число успешных доставок.
// Каждая запись ограничена сроком ctx. Соединение, запись в которое не удалась,
// закрывается и снимается с учёта.
func (h *Hub) Push(ctx context.Context, userID string, payload any) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		// Истёкший срок не повод закрывать исправное соединение.
		if ctx.Err() != nil {
			break
		}
		if err := c.write(ctx, payload); err != nil {
			h.logger.Warn("websocket push failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			h.remove(userID, c)
			_ = c.conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Serve регистрирует соединение и держит его открытым, пока клиент не отключится.
// Входящие сообщения клиента игнорируются.
func (h *Hub) Serve(userID string, conn *websocket.Conn) {
	c := &client{conn: conn}
	unregister := h.registerClient(userID, c)
	defer func() {
		unregister()
		_ = conn.Close()
		h.logger.Debug("websocket closed", zap.String("user_id", userID))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(c, conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) registerClient(userID string, c *client) func() {
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	return func() { h.remove(userID, c) }
}

func (h *Hub) keepAlive(c *client, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
