package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qs3c/slide_review_server/internal/verify"
)

// Auditor 会话完整性检查
type Auditor interface {
	Sessions(ctx context.Context, imageID string) (*verify.SessionsReport, error)
}

// Service 定时巡检已记录的评审会话
type Service struct {
	auditor  Auditor
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(auditor Auditor, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		auditor:  auditor,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(1)
	go s.runAudit()
	slog.Info("Cron service started", "task", "session_audit", "interval", s.interval)
}

// Stop 停止定时任务并等待进行中的巡检结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	slog.Info("Cron service stopped")
}

// runAudit 按固定间隔执行巡检
func (s *Service) runAudit() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			_, _ = s.RunNow(ctx)
			cancel()
		}
	}
}

// RunNow 立即执行一次巡检并记录结果
func (s *Service) RunNow(ctx context.Context) (*verify.SessionsReport, error) {
	if s.auditor == nil {
		return nil, nil
	}

	start := time.Now()
	report, err := s.auditor.Sessions(ctx, "")
	if err != nil {
		slog.Error("Session audit failed", "error", err)
		return nil, err
	}

	for _, f := range report.Errors {
		slog.Warn("Session audit finding", "code", f.Code, "session_id", f.SessionID, "event_id", f.EventID, "message", f.Message)
	}

	slog.Info("Session audit completed",
		"sessions", report.Totals.Sessions,
		"completed", report.Totals.Completed,
		"events", report.Totals.Events,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
		"duration", time.Since(start),
	)
	return report, nil
}
