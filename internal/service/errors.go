package service

import (
	"errors"
	"fmt"
)

var (
	ErrImageNotFound        = errors.New("切片不存在")
	ErrSessionNotFound      = errors.New("评审会话不存在")
	ErrAlreadyCompleted     = errors.New("评审已完成")
	ErrUnauthorized         = errors.New("无权操作此评审会话")
	ErrTransient            = errors.New("存储暂不可用，请重试")
	ErrConsistencyViolation = errors.New("评审会话数据不一致")
)

// Kind 错误分类，供传输层映射状态码
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyCompleted
	KindValidation
	KindUnauthorized
	KindTransient
	KindConsistencyViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyCompleted:
		return "already_completed"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransient:
		return "transient"
	case KindConsistencyViolation:
		return "consistency_violation"
	default:
		return "internal"
	}
}

// ValidationError 请求内容不合法，Index 为 -1 表示整批问题
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index >= 0 && e.Field != "":
		return fmt.Sprintf("events[%d].%s: %s", e.Index, e.Field, e.Reason)
	case e.Index >= 0:
		return fmt.Sprintf("events[%d]: %s", e.Index, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

func newValidationError(index int, field, reason string) *ValidationError {
	return &ValidationError{Index: index, Field: field, Reason: reason}
}

// transient 包装存储层错误
func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}

// KindOf 返回错误所属分类
func KindOf(err error) Kind {
	var vErr *ValidationError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &vErr):
		return KindValidation
	case errors.Is(err, ErrImageNotFound), errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyCompleted):
		return KindAlreadyCompleted
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrConsistencyViolation):
		return KindConsistencyViolation
	default:
		return KindInternal
	}
}
