package dto

// BeginReviewRequest 开始或恢复评审请求
type BeginReviewRequest struct {
	ImageID string `json:"image_id" binding:"required,max=128"`
}

// BeginReviewResponse 开始或恢复评审响应
type BeginReviewResponse struct {
	SessionID      string `json:"session_id"`
	ViewingAttempt int    `json:"viewing_attempt"`
	Created        bool   `json:"created"`
}

// CompleteReviewRequest 完成评审请求（标签合法性在 service 层校验）
type CompleteReviewRequest struct {
	Label string `json:"label"`
}

// CompleteReviewResponse 完成评审响应
type CompleteReviewResponse struct {
	SessionID   string `json:"session_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	Label       string `json:"label"`
}

// SessionDetail 评审会话详情
type SessionDetail struct {
	SessionID      string  `json:"session_id"`
	ImageID        string  `json:"image_id"`
	Status         string  `json:"status"`
	CurrentAttempt int     `json:"current_attempt"`
	CreatedAt      string  `json:"created_at"`
	LastStartedAt  *string `json:"last_started_at,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	Label          *string `json:"label,omitempty"`
}
