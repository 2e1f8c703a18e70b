package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/slide_review_server/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

// CreateIfAbsent 插入会话，(reviewer_id, image_id) 已存在时不做任何事，返回是否插入成功
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, session *model.ReviewSession) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reviewer_id"}, {Name: "image_id"}},
			DoNothing: true,
		}).
		Create(session)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取会话
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.ReviewSession, error) {
	var session model.ReviewSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByIDForShare 在事务内读取会话并加共享锁，完成操作需等待持锁事务结束
func (r *SessionRepository) GetByIDForShare(ctx context.Context, id string) (*model.ReviewSession, error) {
	var session model.ReviewSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByReviewerAndImage 获取评审者对某切片的会话
func (r *SessionRepository) GetByReviewerAndImage(ctx context.Context, reviewerID int64, imageID string) (*model.ReviewSession, error) {
	var session model.ReviewSession
	err := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND image_id = ?", reviewerID, imageID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// StartAttempt 以 revision 做比较并交换，写入轮次与进入时间
//
// 返回 false 表示期间有其他写入或会话已完成，调用方需重新读取。
func (r *SessionRepository) StartAttempt(ctx context.Context, id string, expectedRevision int64, attempt int, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ReviewSession{}).
		Where("id = ? AND revision = ? AND completed_at IS NULL", id, expectedRevision).
		Updates(map[string]interface{}{
			"current_attempt": attempt,
			"last_started_at": startedAt,
			"revision":        gorm.Expr("revision + 1"),
			"updated_at":      startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Complete 仅当会话未完成时写入标签与完成时间
func (r *SessionRepository) Complete(ctx context.Context, id string, label string, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ReviewSession{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"label":        label,
			"completed_at": completedAt,
			"revision":     gorm.Expr("revision + 1"),
			"updated_at":   completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByImage 获取某切片的全部会话
func (r *SessionRepository) ListByImage(ctx context.Context, imageID string) ([]*model.ReviewSession, error) {
	var sessions []*model.ReviewSession
	err := r.db.WithContext(ctx).Where("image_id = ?", imageID).Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}

// ListAll 获取全部会话
func (r *SessionRepository) ListAll(ctx context.Context) ([]*model.ReviewSession, error) {
	var sessions []*model.ReviewSession
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}
