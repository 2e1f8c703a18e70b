package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteWait 单次写入的最长等待
const DefaultWriteWait = 10 * time.Second

var ErrHubClosed = errors.New("ws: hub closed")

// Hub 按评审会话管理事件流连接
type Hub struct {
	// 同一会话可以有多个连接（多标签页、重连等场景）
	clients   map[string]map[*Client]struct{}
	mu        sync.RWMutex
	closed    bool
	active    sync.WaitGroup
	writeWait time.Duration
}

type Client struct {
	ReviewerID int64
	SessionID  string
	Conn       *websocket.Conn
	mu         sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		writeWait: DefaultWriteWait,
	}
}

// SetWriteWait 调整写超时
func (h *Hub) SetWriteWait(d time.Duration) {
	h.writeWait = d
}

// WriteJSON 串行写入一帧，超时后连接不可再用
func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(DefaultWriteWait))
	return c.Conn.WriteJSON(v)
}

// Register 登记连接，关闭后的 Hub 拒绝新连接
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.active.Add(1)
	if h.clients[client.SessionID] == nil {
		h.clients[client.SessionID] = make(map[*Client]struct{})
	}
	h.clients[client.SessionID][client] = struct{}{}

	slog.Info("Event stream connected",
		"session_id", client.SessionID, "reviewer_id", client.ReviewerID,
		"session_conns", len(h.clients[client.SessionID]))
	return nil
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.SessionID)
	}
	h.active.Done()
	slog.Info("Event stream disconnected", "session_id", client.SessionID, "reviewer_id", client.ReviewerID)
}

// SendToSession 向会话的所有事件流连接推送消息
func (h *Hub) SendToSession(sessionID string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[sessionID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		c.Conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			// 写失败的连接已损坏，关闭后由读循环负责注销
			slog.Warn("Event stream write failed", "session_id", sessionID, "error", err)
			c.Conn.Close()
		}
	}
	return nil
}

// Close 拒绝新连接并关闭所有事件流，读循环随之退出并注销
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, conns := range h.clients {
		for c := range conns {
			c.Conn.Close()
		}
	}
}

// Wait 等待所有已登记的连接注销
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsStreaming 会话是否有活跃的事件流
func (h *Hub) IsStreaming(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[sessionID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
