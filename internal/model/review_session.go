package model

import (
	"time"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// ReviewSession 评审者对单张切片的一次评审（每个评审者、每张切片至多一条）
type ReviewSession struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ReviewerID     int64      `gorm:"not null;uniqueIndex:idx_reviewer_image" json:"reviewer_id"`
	ImageID        string     `gorm:"size:128;not null;uniqueIndex:idx_reviewer_image" json:"image_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `gorm:"index" json:"completed_at,omitempty"`
	Label          *string    `gorm:"size:32" json:"label,omitempty"`
	CurrentAttempt int        `gorm:"not null;default:1;check:chk_current_attempt_positive,current_attempt >= 1" json:"current_attempt"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	Revision       int64      `gorm:"not null;default:0" json:"-"` // 乐观并发控制版本号
}

func (ReviewSession) TableName() string {
	return "review_sessions"
}

// IsCompleted 已完成的评审为终态
func (s *ReviewSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

func (s *ReviewSession) Status() string {
	if s.IsCompleted() {
		return SessionStatusCompleted
	}
	return SessionStatusActive
}
