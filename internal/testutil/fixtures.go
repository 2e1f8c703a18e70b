package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/internal/model"
)

// TestSession 创建测试评审会话
func TestSession(t *testing.T, db *gorm.DB, reviewerID int64, imageID string, opts ...func(*model.ReviewSession)) *model.ReviewSession {
	t.Helper()

	started := time.Now().UTC()
	session := &model.ReviewSession{
		ID:             uuid.NewString(),
		ReviewerID:     reviewerID,
		ImageID:        imageID,
		CurrentAttempt: 1,
		LastStartedAt:  &started,
	}

	for _, opt := range opts {
		opt(session)
	}

	if err := db.Create(session).Error; err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return session
}

// WithAttempt 设置当前观看轮次
func WithAttempt(attempt int) func(*model.ReviewSession) {
	return func(s *model.ReviewSession) {
		s.CurrentAttempt = attempt
	}
}

// WithLastStartedAt 设置最近一次进入时间，nil 表示从未记录
func WithLastStartedAt(at *time.Time) func(*model.ReviewSession) {
	return func(s *model.ReviewSession) {
		s.LastStartedAt = at
	}
}

// WithCompleted 标记为已完成
func WithCompleted(label string, at time.Time) func(*model.ReviewSession) {
	return func(s *model.ReviewSession) {
		s.Label = &label
		s.CompletedAt = &at
	}
}

// TestEvent 写入一条测试事件
func TestEvent(t *testing.T, db *gorm.DB, sessionID string, event string, opts ...func(*model.InteractionEvent)) *model.InteractionEvent {
	t.Helper()

	now := time.Now().UTC()
	e := &model.InteractionEvent{
		SessionID:      sessionID,
		BatchID:        uuid.NewString(),
		ClientTS:       now,
		Event:          event,
		ZoomLevel:      2.5,
		DZILevel:       14,
		AppVersion:     "test",
		ViewingAttempt: 1,
		ReceivedAt:     now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := db.Create(e).Error; err != nil {
		t.Fatalf("Failed to create test event: %v", err)
	}

	return e
}

// WithClick 设置点击坐标及其格子
func WithClick(zoom float64, dziLevel int, x, y float64, i, j int) func(*model.InteractionEvent) {
	return func(e *model.InteractionEvent) {
		e.ZoomLevel = zoom
		e.DZILevel = dziLevel
		e.ClickX0 = &x
		e.ClickY0 = &y
		e.CellI = &i
		e.CellJ = &j
	}
}

// WithEventLabel 设置事件标签
func WithEventLabel(label string) func(*model.InteractionEvent) {
	return func(e *model.InteractionEvent) {
		e.Label = &label
	}
}

// WithViewingAttempt 设置事件所属轮次
func WithViewingAttempt(attempt int) func(*model.InteractionEvent) {
	return func(e *model.InteractionEvent) {
		e.ViewingAttempt = attempt
	}
}

// WithViewport 设置视口中心与边界
func WithViewport(cx, cy, vbx, vby, vtx, vty float64) func(*model.InteractionEvent) {
	return func(e *model.InteractionEvent) {
		e.CenterX0, e.CenterY0 = &cx, &cy
		e.VBX0, e.VBY0 = &vbx, &vby
		e.VTX0, e.VTY0 = &vtx, &vty
	}
}

// WithClientTS 设置客户端时间
func WithClientTS(ts time.Time) func(*model.InteractionEvent) {
	return func(e *model.InteractionEvent) {
		e.ClientTS = ts
	}
}
