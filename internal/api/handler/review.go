package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/internal/api/middleware"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// Begin 开始或恢复评审
// POST /api/v1/reviews
func (h *ReviewHandler) Begin(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.BeginReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.reviewService.BeginOrResume(c.Request.Context(), principal, req.ImageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, resp)
}

// Complete 提交诊断标签
// POST /api/v1/sessions/:id/complete
func (h *ReviewHandler) Complete(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CompleteReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.reviewService.Complete(c.Request.Context(), principal, c.Param("id"), req.Label)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.SuccessWithMessage(c, "评审已提交", resp)
}

// Get 获取评审会话
// GET /api/v1/sessions/:id
func (h *ReviewHandler) Get(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	detail, err := h.reviewService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, detail)
}
