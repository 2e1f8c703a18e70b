package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/service"
)

// errorEnvelope 将业务错误映射为统一响应体，HTTP 与 WebSocket 共用
func errorEnvelope(err error) response.Response {
	switch service.KindOf(err) {
	case service.KindValidation:
		var vErr *service.ValidationError
		errors.As(err, &vErr)
		return response.Envelope(response.CodeParamError, vErr.Error(), gin.H{
			"index":  vErr.Index,
			"field":  vErr.Field,
			"reason": vErr.Reason,
		})
	case service.KindNotFound:
		if errors.Is(err, service.ErrImageNotFound) {
			return response.Envelope(response.CodeResourceNotFound, service.ErrImageNotFound.Error(), nil)
		}
		return response.Envelope(response.CodeResourceNotFound, service.ErrSessionNotFound.Error(), nil)
	case service.KindAlreadyCompleted:
		return response.Envelope(response.CodeAlreadyCompleted, service.ErrAlreadyCompleted.Error(), nil)
	case service.KindUnauthorized:
		return response.Envelope(response.CodePermissionDenied, service.ErrUnauthorized.Error(), nil)
	case service.KindTransient:
		slog.Warn("Transient storage failure", "error", err)
		return response.Envelope(response.CodeTransientError, "", nil)
	case service.KindConsistencyViolation:
		slog.Error("Consistency violation", "error", err)
		return response.Envelope(response.CodeConsistencyViolated, "", nil)
	default:
		slog.Error("Unhandled service error", "error", err)
		return response.Envelope(response.CodeServerError, "", nil)
	}
}

func writeServiceError(c *gin.Context, err error) {
	env := errorEnvelope(err)
	_ = c.Error(err)
	response.ErrorWithData(c, env.Code, env.Message, env.Data)
}
