package model

const (
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// Principal 身份服务认证后的调用者，核心逻辑只做归属校验
type Principal struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}
