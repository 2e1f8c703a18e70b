package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qs3c/slide_review_server/internal/api/middleware"
	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/pkg/ws"
	"github.com/qs3c/slide_review_server/internal/service"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 4 << 20
)

var upgrader = websocket.Upgrader{
	// 跨域由 CORS 配置与令牌共同约束
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
}

type EventStreamHandler struct {
	reviewService *service.ReviewService
	ingestService *service.IngestService
	hub           *ws.Hub
	limiter       middleware.Limiter
	perMinute     int
}

func NewEventStreamHandler(reviewService *service.ReviewService, ingestService *service.IngestService, hub *ws.Hub) *EventStreamHandler {
	return &EventStreamHandler{
		reviewService: reviewService,
		ingestService: ingestService,
		hub:           hub,
	}
}

// WithLimiter 每一帧按批次计入限流
func (h *EventStreamHandler) WithLimiter(limiter middleware.Limiter, perMinute int) *EventStreamHandler {
	h.limiter = limiter
	h.perMinute = perMinute
	return h
}

// Handle 事件流：每个文本帧是一批事件，按序回复一个结果帧
// GET /api/v1/sessions/:id/events/stream?token=xxx
func (h *EventStreamHandler) Handle(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	sessionID := c.Param("id")

	// 升级前确认会话归属，错误仍以 HTTP 响应返回
	if _, err := h.reviewService.Get(c.Request.Context(), principal, sessionID); err != nil {
		writeServiceError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Failed to upgrade connection", "session_id", sessionID, "error", err)
		return
	}

	client := &ws.Client{
		ReviewerID: principal.ID,
		SessionID:  sessionID,
		Conn:       conn,
	}
	if err := h.hub.Register(client); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// 劫持后的连接不随请求取消，由读循环在对端断开或关闭时取消
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer func() {
		cancel()
		h.hub.Unregister(client)
		conn.Close()
	}()

	go keepAlive(ctx, conn)

	for f := range readFrames(ctx, cancel, conn, sessionID) {
		reply := h.handleFrame(ctx, principal, sessionID, f.msgType, f.data)
		if ctx.Err() != nil {
			// 对端已断开，进行中的批次已回滚
			return
		}
		if err := client.WriteJSON(reply); err != nil {
			slog.Warn("Failed to write stream reply", "session_id", sessionID, "error", err)
			return
		}
	}
}

type frame struct {
	msgType int
	data    []byte
}

// readFrames 在独立协程中读取帧，读失败时取消 ctx 以中止进行中的批次
func readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sessionID string) <-chan frame {
	frames := make(chan frame)

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(frames)
		defer cancel()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("Event stream closed unexpectedly", "session_id", sessionID, "error", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))

			select {
			case frames <- frame{msgType: msgType, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames
}

func (h *EventStreamHandler) handleFrame(ctx context.Context, principal model.Principal, sessionID string, msgType int, data []byte) response.Response {
	if msgType != websocket.TextMessage {
		return response.Envelope(response.CodeParamError, "仅支持文本帧", nil)
	}

	var req dto.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return response.Envelope(response.CodeParamError, err.Error(), nil)
	}

	if h.limiter != nil {
		allowed, _, err := h.limiter.Allow(ctx, "ingest:"+strconv.FormatInt(principal.ID, 10))
		if err != nil {
			slog.Warn("Rate limiter unavailable", "reviewer_id", principal.ID, "error", err)
		} else if !allowed {
			return response.Envelope(response.CodeRateLimited, fmt.Sprintf("每分钟最多上报 %d 批", h.perMinute), nil)
		}
	}

	resp, err := h.ingestService.Ingest(ctx, principal, sessionID, req.Events)
	if err != nil {
		return errorEnvelope(err)
	}
	return response.Envelope(response.CodeSuccess, "success", resp)
}

// keepAlive 定期发送 ping，WriteControl 可与其他写操作并发
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
