package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/pubsub"
	"github.com/qs3c/slide_review_server/internal/repository"
)

var tracer = otel.Tracer("github.com/qs3c/slide_review_server/internal/service")

// LifecycleNotifier 生命周期通知（尽力而为）
type LifecycleNotifier interface {
	PublishLifecycle(ctx context.Context, msg *pubsub.LifecycleMessage) error
}

// Clock 当前时间来源
type Clock func() time.Time

type ReviewOption func(*ReviewService)

// WithClock 替换时间来源
func WithClock(clock Clock) ReviewOption {
	return func(s *ReviewService) {
		s.now = clock
	}
}

// WithNotifier 设置生命周期通知
func WithNotifier(n LifecycleNotifier) ReviewOption {
	return func(s *ReviewService) {
		s.notifier = n
	}
}

type ReviewService struct {
	sessionRepo *repository.SessionRepository
	manifests   manifest.Provider
	notifier    LifecycleNotifier
	cfg         config.ReviewConfig
	now         Clock
}

func NewReviewService(
	sessionRepo *repository.SessionRepository,
	manifests manifest.Provider,
	cfg *config.Config,
	opts ...ReviewOption,
) *ReviewService {
	reviewCfg := cfg.Review
	if reviewCfg.NewAttemptAfter <= 0 {
		reviewCfg.NewAttemptAfter = config.Default().Review.NewAttemptAfter
	}
	if reviewCfg.MaxCASRetries <= 0 {
		reviewCfg.MaxCASRetries = config.Default().Review.MaxCASRetries
	}

	s := &ReviewService{
		sessionRepo: sessionRepo,
		manifests:   manifests,
		cfg:         reviewCfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginOrResume 开始或恢复评审，必要时开启新的观看轮次
func (s *ReviewService) BeginOrResume(ctx context.Context, principal model.Principal, imageID string) (resp *dto.BeginReviewResponse, err error) {
	ctx, span := tracer.Start(ctx, "ReviewService.BeginOrResume", trace.WithAttributes(
		attribute.Int64("reviewer.id", principal.ID),
		attribute.String("image.id", imageID),
	))
	defer func() { endSpan(span, err) }()

	if imageID == "" {
		return nil, newValidationError(-1, "image_id", "required")
	}

	if _, err := s.manifests.Get(ctx, imageID); err != nil {
		if errors.Is(err, manifest.ErrManifestNotFound) || errors.Is(err, manifest.ErrInvalidImageID) {
			return nil, ErrImageNotFound
		}
		return nil, transient("load manifest", err)
	}

	session, err := s.sessionRepo.GetByReviewerAndImage(ctx, principal.ID, imageID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transient("load session", err)
	}

	if session == nil {
		now := s.now()
		session = &model.ReviewSession{
			ID:             uuid.NewString(),
			ReviewerID:     principal.ID,
			ImageID:        imageID,
			CurrentAttempt: 1,
			LastStartedAt:  &now,
		}
		created, err := s.sessionRepo.CreateIfAbsent(ctx, session)
		if err != nil {
			return nil, transient("create session", err)
		}
		if created {
			s.notify(ctx, &pubsub.LifecycleMessage{
				Type:           pubsub.TypeSessionCreated,
				SessionID:      session.ID,
				ReviewerID:     principal.ID,
				ImageID:        imageID,
				ViewingAttempt: 1,
				At:             now,
			})
			return &dto.BeginReviewResponse{
				SessionID:      session.ID,
				ViewingAttempt: 1,
				Created:        true,
			}, nil
		}
		// 并发创建失败的一方按恢复处理
		session = nil
	}

	return s.resume(ctx, principal, imageID, session)
}

// resume 以比较并交换写入轮次，冲突时重新读取
func (s *ReviewService) resume(ctx context.Context, principal model.Principal, imageID string, session *model.ReviewSession) (*dto.BeginReviewResponse, error) {
	lastSeen := 0

	for try := 0; try <= s.cfg.MaxCASRetries; try++ {
		if session == nil {
			var err error
			session, err = s.sessionRepo.GetByReviewerAndImage(ctx, principal.ID, imageID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, fmt.Errorf("%w: session for image %s disappeared", ErrConsistencyViolation, imageID)
				}
				return nil, transient("load session", err)
			}
		}

		if session.IsCompleted() {
			return nil, ErrAlreadyCompleted
		}
		if session.CurrentAttempt < 1 || session.CurrentAttempt < lastSeen {
			slog.Error("viewing attempt went backwards",
				"session_id", session.ID, "seen", lastSeen, "stored", session.CurrentAttempt)
			return nil, fmt.Errorf("%w: session %s attempt %d after %d",
				ErrConsistencyViolation, session.ID, session.CurrentAttempt, lastSeen)
		}
		lastSeen = session.CurrentAttempt

		now := s.now()
		next := nextAttempt(session, now, s.cfg.NewAttemptAfter)

		ok, err := s.sessionRepo.StartAttempt(ctx, session.ID, session.Revision, next, now)
		if err != nil {
			return nil, transient("update session", err)
		}
		if ok {
			if next > session.CurrentAttempt {
				s.notify(ctx, &pubsub.LifecycleMessage{
					Type:           pubsub.TypeAttemptStarted,
					SessionID:      session.ID,
					ReviewerID:     principal.ID,
					ImageID:        imageID,
					ViewingAttempt: next,
					At:             now,
				})
			}
			return &dto.BeginReviewResponse{
				SessionID:      session.ID,
				ViewingAttempt: next,
			}, nil
		}

		slog.Debug("session revision changed, retrying", "session_id", session.ID, "try", try+1)
		session = nil
	}

	return nil, transient("begin review", fmt.Errorf("session for image %s still contended after %d retries", imageID, s.cfg.MaxCASRetries))
}

// nextAttempt 未记录进入时间时只建立基准；间隔严格大于阈值才开启新轮次
func nextAttempt(session *model.ReviewSession, now time.Time, threshold time.Duration) int {
	if session.LastStartedAt == nil {
		return session.CurrentAttempt
	}
	if now.Sub(*session.LastStartedAt) > threshold {
		return session.CurrentAttempt + 1
	}
	return session.CurrentAttempt
}

// Complete 提交诊断标签，已完成的会话不可再次提交
func (s *ReviewService) Complete(ctx context.Context, principal model.Principal, sessionID, label string) (resp *dto.CompleteReviewResponse, err error) {
	ctx, span := tracer.Start(ctx, "ReviewService.Complete", trace.WithAttributes(
		attribute.Int64("reviewer.id", principal.ID),
		attribute.String("session.id", sessionID),
	))
	defer func() { endSpan(span, err) }()

	if label == "" {
		return nil, newValidationError(-1, "label", "required")
	}
	if !model.IsValidLabel(label) {
		return nil, newValidationError(-1, "label", "unknown label "+label)
	}

	session, err := s.getOwned(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	now := s.now()
	ok, err := s.sessionRepo.Complete(ctx, session.ID, label, now)
	if err != nil {
		return nil, transient("complete session", err)
	}
	if !ok {
		current, err := s.sessionRepo.GetByID(ctx, session.ID)
		if err != nil {
			return nil, transient("load session", err)
		}
		if current.IsCompleted() {
			return nil, ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("%w: session %s not completed", ErrConsistencyViolation, session.ID)
	}

	s.notify(ctx, &pubsub.LifecycleMessage{
		Type:       pubsub.TypeSessionCompleted,
		SessionID:  session.ID,
		ReviewerID: principal.ID,
		ImageID:    session.ImageID,
		Label:      label,
		At:         now,
	})

	return &dto.CompleteReviewResponse{
		SessionID:   session.ID,
		StartedAt:   session.CreatedAt.UTC().Format(time.RFC3339),
		CompletedAt: now.UTC().Format(time.RFC3339),
		Label:       label,
	}, nil
}

// Get 获取自己的评审会话详情
func (s *ReviewService) Get(ctx context.Context, principal model.Principal, sessionID string) (*dto.SessionDetail, error) {
	session, err := s.getOwned(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionDetail(session), nil
}

func (s *ReviewService) getOwned(ctx context.Context, principal model.Principal, sessionID string) (*model.ReviewSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, transient("load session", err)
	}
	// 不暴露他人会话的存在
	if session.ReviewerID != principal.ID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *ReviewService) notify(ctx context.Context, msg *pubsub.LifecycleMessage) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishLifecycle(ctx, msg); err != nil {
		slog.Warn("Failed to publish lifecycle message", "type", msg.Type, "session_id", msg.SessionID, "error", err)
	}
}

func toSessionDetail(session *model.ReviewSession) *dto.SessionDetail {
	detail := &dto.SessionDetail{
		SessionID:      session.ID,
		ImageID:        session.ImageID,
		Status:         session.Status(),
		CurrentAttempt: session.CurrentAttempt,
		CreatedAt:      session.CreatedAt.UTC().Format(time.RFC3339),
		Label:          session.Label,
	}
	if session.LastStartedAt != nil {
		v := session.LastStartedAt.UTC().Format(time.RFC3339)
		detail.LastStartedAt = &v
	}
	if session.CompletedAt != nil {
		v := session.CompletedAt.UTC().Format(time.RFC3339)
		detail.CompletedAt = &v
	}
	return detail
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
