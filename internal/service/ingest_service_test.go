package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/repository"
	"github.com/qs3c/slide_review_server/internal/testutil"
)

type ingestFixture struct {
	db     *gorm.DB
	svc    *IngestService
	review *ReviewService
	clock  *testutil.FakeClock
	events *repository.EventRepository
}

func setupIngestService(t *testing.T, mutate ...func(*config.Config)) *ingestFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}

	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	provider := testutil.StaticProvider{
		testImageID: testutil.TestManifest(testImageID),
		"S1":        testutil.TestManifest("S1"),
	}
	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewEventRepository(db)

	svc := NewIngestService(db, sessionRepo, eventRepo, provider, cfg)
	svc.SetClock(clock.Now)
	review := NewReviewService(sessionRepo, provider, cfg, WithClock(clock.Now))

	return &ingestFixture{db: db, svc: svc, review: review, clock: clock, events: eventRepo}
}

func (f *ingestFixture) count(t *testing.T, sessionID string) int64 {
	t.Helper()
	n, err := f.events.CountBySession(context.Background(), sessionID)
	require.NoError(t, err)
	return n
}

func fiveEvents() []dto.EventPayload {
	return []dto.EventPayload{
		baseEvent(model.EventAppStart),
		baseEvent(model.EventSlideLoad),
		clickEvent(2.5, 14, 5000, 100),
		baseEvent(model.EventZoomStep),
		baseEvent(model.EventArrowPan),
	}
}

func TestIngestService_Ingest_Success(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)

	resp, err := f.svc.Ingest(ctx, reviewer, session.ID, fiveEvents())
	require.NoError(t, err)
	assert.Equal(t, 5, resp.InsertedCount)
	assert.NotEmpty(t, resp.BatchID)

	stored, err := f.events.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	for i, e := range stored {
		assert.Equal(t, i, e.Seq)
		assert.Equal(t, resp.BatchID, e.BatchID)
		assert.Equal(t, 1, e.ViewingAttempt)
	}
	assert.Equal(t, model.EventAppStart, stored[0].Event)

	// 2.5x on a 40x/256 slide: cells are 4096 px
	click := stored[2]
	require.NotNil(t, click.CellI)
	require.NotNil(t, click.CellJ)
	assert.Equal(t, 1, *click.CellI)
	assert.Equal(t, 0, *click.CellJ)
}

func TestIngestService_Ingest_InvalidEventRejectsBatch(t *testing.T) {
	f := setupIngestService(t)
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)

	events := fiveEvents()
	events[2].ClickX0 = nil

	_, err := f.svc.Ingest(context.Background(), reviewer, session.ID, events)
	requireValidationError(t, err, 2, "click_x0")
	assert.Zero(t, f.count(t, session.ID))
}

func TestIngestService_Ingest_ValidationBeforeLookup(t *testing.T) {
	f := setupIngestService(t)

	// Unknown session with an invalid batch still reports the validation error
	_, err := f.svc.Ingest(context.Background(), reviewer, "missing", nil)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestIngestService_Ingest_MidBatchFailureRollsBack(t *testing.T) {
	f := setupIngestService(t, func(cfg *config.Config) {
		cfg.Ingest.InsertChunkSize = 2
	})
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)

	calls := 0
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_second_chunk", func(tx *gorm.DB) {
		if tx.Statement.Table != "interaction_events" {
			return
		}
		calls++
		if calls == 2 {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	_, err = f.svc.Ingest(context.Background(), reviewer, session.ID, fiveEvents())
	assert.ErrorIs(t, err, ErrTransient)
	assert.GreaterOrEqual(t, calls, 2)

	require.NoError(t, f.db.Callback().Create().Remove("test:fail_second_chunk"))
	assert.Zero(t, f.count(t, session.ID))
}

func TestIngestService_Ingest_SessionErrors(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, reviewer, "00000000-0000-0000-0000-000000000000", fiveEvents())
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("other reviewer", func(t *testing.T) {
		session := testutil.TestSession(t, f.db, 7, testImageID)
		_, err := f.svc.Ingest(ctx, reviewer, session.ID, fiveEvents())
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, KindUnauthorized, KindOf(err))
		assert.Zero(t, f.count(t, session.ID))
	})

	t.Run("completed", func(t *testing.T) {
		session := testutil.TestSession(t, f.db, 8, testImageID,
			testutil.WithCompleted(model.LabelBenign, f.clock.Now()))
		_, err := f.svc.Ingest(ctx, model.Principal{ID: 8}, session.ID, fiveEvents())
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
		assert.Zero(t, f.count(t, session.ID))
	})
}

// hookProvider runs a callback before every manifest lookup.
type hookProvider struct {
	manifest.Provider
	before func(ctx context.Context)
}

func (p hookProvider) Get(ctx context.Context, imageID string) (*manifest.Manifest, error) {
	p.before(ctx)
	return p.Provider.Get(ctx, imageID)
}

func TestIngestService_Ingest_CompletedDuringManifestLookup(t *testing.T) {
	f := setupIngestService(t)
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)
	sessionRepo := repository.NewSessionRepository(f.db)

	// The lookup completes the session on the shared pool. The test DB has a
	// single connection, so this would block if the lookup ran inside the
	// ingest transaction.
	provider := hookProvider{
		Provider: testutil.StaticProvider{testImageID: testutil.TestManifest(testImageID)},
		before: func(ctx context.Context) {
			ok, err := sessionRepo.Complete(ctx, session.ID, model.LabelBenign, f.clock.Now())
			require.NoError(t, err)
			require.True(t, ok)
		},
	}
	svc := NewIngestService(f.db, sessionRepo, f.events, provider, config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := svc.Ingest(ctx, reviewer, session.ID, fiveEvents())
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Zero(t, f.count(t, session.ID))
}

func TestIngestService_Ingest_ViewingAttempt(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID, testutil.WithAttempt(2))

	events := fiveEvents()
	events[0].ViewingAttempt = intPtr(1)
	events[1].ViewingAttempt = intPtr(2)
	_, err := f.svc.Ingest(ctx, reviewer, session.ID, events)
	require.NoError(t, err)

	future := fiveEvents()
	future[4].ViewingAttempt = intPtr(3)
	_, err = f.svc.Ingest(ctx, reviewer, session.ID, future)
	requireValidationError(t, err, 4, "viewing_attempt")

	assert.Equal(t, int64(5), f.count(t, session.ID))
}

func TestIngestService_Ingest_RequireViewingAttempt(t *testing.T) {
	f := setupIngestService(t, func(cfg *config.Config) {
		cfg.Ingest.RequireViewingAttempt = true
	})
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)

	_, err := f.svc.Ingest(context.Background(), reviewer, session.ID, fiveEvents())
	requireValidationError(t, err, 0, "viewing_attempt")
}

func TestIngestService_Ingest_Geometry(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()
	session := testutil.TestSession(t, f.db, reviewer.ID, testImageID)

	tests := []struct {
		name   string
		event  dto.EventPayload
		field  string
		passes bool
	}{
		{"reported cell agrees", func() dto.EventPayload {
			e := clickEvent(40, 18, 300, 10)
			e.I, e.J = intPtr(1), intPtr(0)
			return e
		}(), "", true},
		{"reported cell disagrees", func() dto.EventPayload {
			e := clickEvent(40, 18, 300, 10)
			e.I, e.J = intPtr(0), intPtr(0)
			return e
		}(), "i", false},
		{"level mismatch", clickEvent(40, 17, 300, 10), "dzi_level", false},
		{"unknown magnification", func() dto.EventPayload {
			e := baseEvent(model.EventZoomStep)
			e.ZoomLevel = floatPtr(3)
			return e
		}(), "zoom_level", false},
		{"click outside slide", clickEvent(40, 18, 10000, 10), "click_x0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Ingest(ctx, reviewer, session.ID, []dto.EventPayload{tt.event})
			if tt.passes {
				assert.NoError(t, err)
				return
			}
			requireValidationError(t, err, 0, tt.field)
		})
	}
}

func TestIngestService_Ingest_MissingManifestKeepsClientCell(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()
	session := testutil.TestSession(t, f.db, reviewer.ID, "slide_without_manifest")

	e := clickEvent(40, 18, 300, 10)
	e.I, e.J = intPtr(5), intPtr(6)

	_, err := f.svc.Ingest(ctx, reviewer, session.ID, []dto.EventPayload{e})
	require.NoError(t, err)

	stored, err := f.events.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 5, *stored[0].CellI)
	assert.Equal(t, 6, *stored[0].CellJ)
}

func TestReviewFlow_EndToEnd(t *testing.T) {
	f := setupIngestService(t)
	ctx := context.Background()

	begin, err := f.review.BeginOrResume(ctx, reviewer, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, begin.ViewingAttempt)

	events := []dto.EventPayload{
		baseEvent(model.EventAppStart),
		baseEvent(model.EventSlideLoad),
		clickEvent(2.5, 14, 100, 100),
	}
	for i := range events {
		events[i].ViewingAttempt = intPtr(begin.ViewingAttempt)
	}

	resp, err := f.svc.Ingest(ctx, reviewer, begin.SessionID, events)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.InsertedCount)

	_, err = f.review.Complete(ctx, reviewer, begin.SessionID, model.LabelLowGrade)
	require.NoError(t, err)

	_, err = f.review.BeginOrResume(ctx, reviewer, "S1")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = f.svc.Ingest(ctx, reviewer, begin.SessionID, events)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, int64(3), f.count(t, begin.SessionID))
}
