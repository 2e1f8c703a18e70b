package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/qs3c/slide_review_server/internal/lattice"
	"github.com/qs3c/slide_review_server/internal/model"
)

const (
	// app_start 之前允许的事件数
	maxAppStartPosition = 2
	// slide_load 晚于该位置只警告
	maxSlideLoadPosition = 5
)

// SessionStats 单个会话的统计
type SessionStats struct {
	SessionID       string  `yaml:"session_id"`
	ReviewerID      int64   `yaml:"reviewer_id"`
	ImageID         string  `yaml:"image_id"`
	CurrentAttempt  int     `yaml:"current_attempt"`
	Events          int     `yaml:"events"`
	CellClicks      int     `yaml:"cell_clicks"`
	UniqueCells     int     `yaml:"unique_cells"`
	ArrowPans       int     `yaml:"arrow_pans"`
	Resets          int     `yaml:"resets"`
	BackSteps       int     `yaml:"back_steps"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	Completed       bool    `yaml:"completed"`
	Label           string  `yaml:"label,omitempty"`
}

// SessionTotals 全部会话汇总
type SessionTotals struct {
	Sessions    int `yaml:"sessions"`
	Completed   int `yaml:"completed"`
	Events      int `yaml:"events"`
	CellClicks  int `yaml:"cell_clicks"`
	UniqueCells int `yaml:"unique_cells"`
}

// SessionsReport 会话完整性与事件序列报告
type SessionsReport struct {
	ImageID     string         `yaml:"image_id,omitempty"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Totals      SessionTotals  `yaml:"totals"`
	Sessions    []SessionStats `yaml:"sessions"`

	Findings `yaml:",inline"`
}

// Sessions 校验会话的必需事件、轮次单调性并生成统计；imageID 为空时检查全部会话
func (v *Verifier) Sessions(ctx context.Context, imageID string) (*SessionsReport, error) {
	var (
		sessions []*model.ReviewSession
		err      error
	)
	if imageID != "" {
		sessions, err = v.sessions.ListByImage(ctx, imageID)
	} else {
		sessions, err = v.sessions.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	report := &SessionsReport{
		ImageID:     imageID,
		GeneratedAt: v.now(),
	}

	for _, s := range sessions {
		events, err := v.events.ListBySession(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("load events for session %s: %w", s.ID, err)
		}

		stats := checkSession(&report.Findings, s, events)
		report.Sessions = append(report.Sessions, stats)

		report.Totals.Sessions++
		if stats.Completed {
			report.Totals.Completed++
		}
		report.Totals.Events += stats.Events
		report.Totals.CellClicks += stats.CellClicks
		report.Totals.UniqueCells += stats.UniqueCells
	}

	return report, nil
}

func checkSession(f *Findings, s *model.ReviewSession, events []*model.InteractionEvent) SessionStats {
	stats := SessionStats{
		SessionID:      s.ID,
		ReviewerID:     s.ReviewerID,
		ImageID:        s.ImageID,
		CurrentAttempt: s.CurrentAttempt,
		Events:         len(events),
		Completed:      s.IsCompleted(),
	}
	if s.Label != nil {
		stats.Label = *s.Label
	}

	if len(events) == 0 {
		f.warnf("no_events", s.ID, 0, "session has no stored events")
		if s.IsCompleted() {
			f.errorf("missing_slide_next", s.ID, 0, "completed session has no slide_next event")
		}
		return stats
	}

	appStart, slideLoad, slideNext := -1, -1, -1
	cells := make(map[lattice.Cell]struct{})
	lastAttempt := 0
	first, last := events[0].ClientTS, events[0].ClientTS

	for pos, e := range events {
		switch e.Event {
		case model.EventAppStart:
			if appStart < 0 {
				appStart = pos
			}
		case model.EventSlideLoad:
			if slideLoad < 0 {
				slideLoad = pos
			}
		case model.EventSlideNext:
			if slideNext < 0 {
				slideNext = pos
			}
			if e.Label == nil || *e.Label == "" {
				f.errorf("slide_next_without_label", s.ID, e.ID, "slide_next event missing label")
			} else if s.Label != nil && *e.Label != *s.Label {
				f.warnf("label_mismatch", s.ID, e.ID, "slide_next label %s differs from session label %s", *e.Label, *s.Label)
			}
		case model.EventCellClick:
			stats.CellClicks++
			if e.CellI != nil && e.CellJ != nil {
				cells[lattice.Cell{I: *e.CellI, J: *e.CellJ}] = struct{}{}
			}
		case model.EventArrowPan:
			stats.ArrowPans++
		case model.EventReset:
			stats.Resets++
		case model.EventBackStep:
			stats.BackSteps++
		}

		if e.ViewingAttempt > s.CurrentAttempt {
			f.errorf("attempt_ahead", s.ID, e.ID, "event attempt %d exceeds current attempt %d", e.ViewingAttempt, s.CurrentAttempt)
		}
		if e.ViewingAttempt < lastAttempt {
			f.errorf("attempt_regressed", s.ID, e.ID, "attempt %d after %d", e.ViewingAttempt, lastAttempt)
		}
		lastAttempt = e.ViewingAttempt

		if e.ClientTS.Before(first) {
			first = e.ClientTS
		}
		if e.ClientTS.After(last) {
			last = e.ClientTS
		}
	}

	stats.UniqueCells = len(cells)
	stats.DurationSeconds = last.Sub(first).Seconds()

	switch {
	case appStart < 0:
		f.errorf("missing_app_start", s.ID, 0, "missing app_start event")
	case appStart > maxAppStartPosition:
		f.errorf("late_app_start", s.ID, 0, "app_start at position %d", appStart)
	}

	switch {
	case slideLoad < 0:
		f.errorf("missing_slide_load", s.ID, 0, "missing slide_load event")
	case slideLoad > maxSlideLoadPosition:
		f.warnf("late_slide_load", s.ID, 0, "slide_load at position %d", slideLoad)
	}

	if s.IsCompleted() && slideNext < 0 {
		f.errorf("missing_slide_next", s.ID, 0, "completed session has no slide_next event")
	}
	if slideNext >= 0 && events[len(events)-1].Event != model.EventSlideNext {
		f.warnf("slide_next_not_last", s.ID, 0, "slide_next is not the last event")
	}

	return stats
}
