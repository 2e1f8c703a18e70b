package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/repository"
)

type IngestService struct {
	db          *gorm.DB
	sessionRepo *repository.SessionRepository
	eventRepo   *repository.EventRepository
	manifests   manifest.Provider
	validator   *EventValidator
	chunkSize   int
	now         Clock
}

func NewIngestService(
	db *gorm.DB,
	sessionRepo *repository.SessionRepository,
	eventRepo *repository.EventRepository,
	manifests manifest.Provider,
	cfg *config.Config,
) *IngestService {
	ingestCfg := cfg.Ingest
	if ingestCfg.MaxBatchSize <= 0 {
		ingestCfg.MaxBatchSize = config.Default().Ingest.MaxBatchSize
	}
	if ingestCfg.InsertChunkSize <= 0 {
		ingestCfg.InsertChunkSize = config.Default().Ingest.InsertChunkSize
	}

	return &IngestService{
		db:          db,
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		manifests:   manifests,
		validator:   NewEventValidator(ingestCfg.MaxBatchSize, ingestCfg.RequireViewingAttempt),
		chunkSize:   ingestCfg.InsertChunkSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间来源
func (s *IngestService) SetClock(clock Clock) {
	s.now = clock
}

// Ingest 校验并原子写入一批事件，任何失败都不会留下部分数据
func (s *IngestService) Ingest(ctx context.Context, principal model.Principal, sessionID string, events []dto.EventPayload) (resp *dto.IngestResponse, err error) {
	ctx, span := tracer.Start(ctx, "IngestService.Ingest", trace.WithAttributes(
		attribute.Int64("reviewer.id", principal.ID),
		attribute.String("session.id", sessionID),
		attribute.Int("batch.size", len(events)),
	))
	defer func() { endSpan(span, err) }()

	// 结构校验先于任何存储访问
	if err := s.validator.ValidateBatch(events); err != nil {
		return nil, err
	}

	// 先做无锁读取与 manifest 查询，远程 I/O 不占用事务
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err := checkWritable(principal, session, err); err != nil {
		return nil, err
	}

	m, err := s.manifests.Get(ctx, session.ImageID)
	if err != nil {
		if !errors.Is(err, manifest.ErrManifestNotFound) {
			return nil, transient("load manifest", err)
		}
		// 没有 manifest 时跳过几何校验，保留客户端上报的格子
		slog.Warn("Manifest missing, skipping geometry checks", "image_id", session.ImageID, "session_id", session.ID)
	}

	batchID := uuid.NewString()
	receivedAt := s.now()

	var inserted int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 共享锁保证提交前会话不会被完成
		locked, err := s.sessionRepo.WithTx(tx).GetByIDForShare(ctx, sessionID)
		if err := checkWritable(principal, locked, err); err != nil {
			return err
		}

		rows, err := buildEventRows(locked, m, events, batchID, receivedAt)
		if err != nil {
			return err
		}

		if err := s.eventRepo.WithTx(tx).CreateBatch(ctx, rows, s.chunkSize); err != nil {
			return transient("insert events", err)
		}
		inserted = len(rows)
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			return nil, transient("commit events", err)
		}
		return nil, err
	}

	slog.Debug("Ingested events", "session_id", sessionID, "batch_id", batchID, "count", inserted)

	return &dto.IngestResponse{
		InsertedCount: inserted,
		BatchID:       batchID,
	}, nil
}

// checkWritable 确认会话属于当前评审者且尚未完成
func checkWritable(principal model.Principal, session *model.ReviewSession, err error) error {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return transient("load session", err)
	}
	if session.ReviewerID != principal.ID {
		return ErrUnauthorized
	}
	if session.IsCompleted() {
		return ErrAlreadyCompleted
	}
	return nil
}

// buildEventRows 补全轮次并校验与会话、切片几何的关系
func buildEventRows(session *model.ReviewSession, m *manifest.Manifest, events []dto.EventPayload, batchID string, receivedAt time.Time) ([]*model.InteractionEvent, error) {
	rows := make([]*model.InteractionEvent, 0, len(events))

	for idx := range events {
		e := &events[idx]

		attempt := 1
		if e.ViewingAttempt != nil {
			attempt = *e.ViewingAttempt
		}
		if attempt > session.CurrentAttempt {
			return nil, newValidationError(idx, "viewing_attempt",
				fmt.Sprintf("%d exceeds current attempt %d", attempt, session.CurrentAttempt))
		}

		row := &model.InteractionEvent{
			SessionID:      session.ID,
			BatchID:        batchID,
			Seq:            idx,
			ClientTS:       e.TS.UTC(),
			Event:          e.Event,
			ZoomLevel:      *e.ZoomLevel,
			DZILevel:       *e.DZILevel,
			ClickX0:        e.ClickX0,
			ClickY0:        e.ClickY0,
			CellI:          e.I,
			CellJ:          e.J,
			CenterX0:       e.CenterX0,
			CenterY0:       e.CenterY0,
			VBX0:           e.VBX0,
			VBY0:           e.VBY0,
			VTX0:           e.VTX0,
			VTY0:           e.VTY0,
			ContainerW:     e.ContainerW,
			ContainerH:     e.ContainerH,
			DPR:            e.DPR,
			AppVersion:     e.AppVersion,
			Label:          e.Label,
			Notes:          e.Notes,
			ViewingAttempt: attempt,
			ReceivedAt:     receivedAt,
		}

		if m != nil {
			if err := applyGeometry(idx, m, row); err != nil {
				return nil, err
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// applyGeometry 核对 DZI 层级并用网格推导点击所在格子
func applyGeometry(idx int, m *manifest.Manifest, row *model.InteractionEvent) error {
	level, ok := m.LevelFor(row.ZoomLevel)
	if !ok {
		return newValidationError(idx, "zoom_level", fmt.Sprintf("no pyramid level for %gx", row.ZoomLevel))
	}
	if level != row.DZILevel {
		return newValidationError(idx, "dzi_level", fmt.Sprintf("%gx maps to level %d, got %d", row.ZoomLevel, level, row.DZILevel))
	}

	if row.ClickX0 == nil || row.ClickY0 == nil {
		return nil
	}

	x, y := *row.ClickX0, *row.ClickY0
	if x >= float64(m.Level0Width) || y >= float64(m.Level0Height) {
		return newValidationError(idx, "click_x0", "click outside slide extent")
	}

	i, j := m.Grid(row.ZoomLevel).Index(x, y)
	if row.CellI != nil && row.CellJ != nil && (*row.CellI != i || *row.CellJ != j) {
		return newValidationError(idx, "i", fmt.Sprintf("reported cell (%d,%d) but click falls in (%d,%d)", *row.CellI, *row.CellJ, i, j))
	}
	row.CellI = &i
	row.CellJ = &j
	return nil
}
