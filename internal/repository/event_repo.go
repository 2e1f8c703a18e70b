package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

// CreateBatch 按块插入整批事件，须在事务中调用才能保证整批原子
func (r *EventRepository) CreateBatch(ctx context.Context, events []*model.InteractionEvent, chunkSize int) error {
	if len(events) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = len(events)
	}
	return r.db.WithContext(ctx).CreateInBatches(events, chunkSize).Error
}

// ListBySession 按持久化顺序获取会话的事件
func (r *EventRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.InteractionEvent, error) {
	var events []*model.InteractionEvent
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC").Find(&events).Error
	return events, err
}

// CountBySession 统计会话事件数
func (r *EventRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.InteractionEvent{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

// ListByImage 获取某切片全部会话的事件
func (r *EventRepository) ListByImage(ctx context.Context, imageID string) ([]*model.InteractionEvent, error) {
	var events []*model.InteractionEvent
	err := r.db.WithContext(ctx).
		Joins("JOIN review_sessions ON review_sessions.id = interaction_events.session_id").
		Where("review_sessions.image_id = ?", imageID).
		Order("interaction_events.id ASC").
		Find(&events).Error
	return events, err
}
