package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/internal/api/middleware"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/service"
)

type EventHandler struct {
	ingestService *service.IngestService
}

func NewEventHandler(ingestService *service.IngestService) *EventHandler {
	return &EventHandler{
		ingestService: ingestService,
	}
}

// Ingest 批量上报交互事件，整批成功或整批失败
// POST /api/v1/sessions/:id/events
func (h *EventHandler) Ingest(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	// 与事件流单帧同一上限，超出时解码失败
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameSize)

	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.ingestService.Ingest(c.Request.Context(), principal, c.Param("id"), req.Events)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, resp)
}
