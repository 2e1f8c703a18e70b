package verify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qs3c/slide_review_server/internal/lattice"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/model"
)

// GridCheck 某一倍率下的网格往返校验
type GridCheck struct {
	Magnification string                  `yaml:"magnification"`
	DZILevel      int                     `yaml:"dzi_level"`
	Result        lattice.AlignmentResult `yaml:",inline"`
}

// AlignmentReport 切片网格与点击记录的对齐报告
type AlignmentReport struct {
	ImageID       string      `yaml:"image_id"`
	GeneratedAt   time.Time   `yaml:"generated_at"`
	ManifestOK    bool        `yaml:"manifest_alignment_ok"`
	Grids         []GridCheck `yaml:"grids"`
	EventsChecked int         `yaml:"events_checked"`
	ClicksChecked int         `yaml:"clicks_checked"`

	Findings `yaml:",inline"`
}

// Alignment 校验网格数学以及该切片全部已存储事件的几何一致性
func (v *Verifier) Alignment(ctx context.Context, imageID string) (*AlignmentReport, error) {
	m, err := v.manifests.Get(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", imageID, err)
	}

	report := &AlignmentReport{
		ImageID:     imageID,
		GeneratedAt: v.now(),
		ManifestOK:  m.AlignmentOK,
	}
	if !m.AlignmentOK {
		report.warnf("manifest_alignment", "", 0, "manifest reports alignment_ok=false")
	}

	for _, mag := range m.Magnifications() {
		level, _ := m.LevelFor(mag)
		result := lattice.CheckAlignment(float64(m.Level0Width), float64(m.Level0Height), m.CellSize(mag), v.samples)
		check := GridCheck{
			Magnification: formatMagnification(mag),
			DZILevel:      level,
			Result:        result,
		}
		if !result.OK {
			report.errorf("lattice_roundtrip", "", 0, "center/index round trip failed at %s", check.Magnification)
		}
		report.Grids = append(report.Grids, check)
	}

	events, err := v.events.ListByImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", imageID, err)
	}

	for _, e := range events {
		report.EventsChecked++
		checkLevel(&report.Findings, m, e)
		checkViewport(&report.Findings, e)
		if e.Event == model.EventCellClick {
			report.ClicksChecked++
			checkClick(&report.Findings, m, e)
		}
	}

	if report.ClicksChecked == 0 {
		report.warnf("no_clicks", "", 0, "no cell_click events stored for %s", imageID)
	}

	return report, nil
}

func checkLevel(f *Findings, m *manifest.Manifest, e *model.InteractionEvent) {
	level, ok := m.LevelFor(e.ZoomLevel)
	if !ok {
		f.errorf("unknown_magnification", e.SessionID, e.ID, "%s has no pyramid level", formatMagnification(e.ZoomLevel))
		return
	}
	if level != e.DZILevel {
		f.errorf("dzi_level_mismatch", e.SessionID, e.ID, "%s maps to level %d, stored %d", formatMagnification(e.ZoomLevel), level, e.DZILevel)
	}
}

// checkViewport 视口应包含中心点，导航过程中偶有例外，只记警告
func checkViewport(f *Findings, e *model.InteractionEvent) {
	if e.CenterX0 == nil || e.CenterY0 == nil || e.VBX0 == nil || e.VBY0 == nil || e.VTX0 == nil || e.VTY0 == nil {
		return
	}
	cx, cy := *e.CenterX0, *e.CenterY0
	if cx < *e.VBX0-viewportTolerance || cx > *e.VTX0+viewportTolerance ||
		cy < *e.VBY0-viewportTolerance || cy > *e.VTY0+viewportTolerance {
		f.warnf("center_outside_viewport", e.SessionID, e.ID, "%s center (%.1f, %.1f) outside viewport [(%.1f, %.1f) to (%.1f, %.1f)]",
			e.Event, cx, cy, *e.VBX0, *e.VBY0, *e.VTX0, *e.VTY0)
	}
}

func checkClick(f *Findings, m *manifest.Manifest, e *model.InteractionEvent) {
	if e.CellI == nil || e.CellJ == nil {
		f.errorf("missing_cell", e.SessionID, e.ID, "cell_click without cell indices")
		return
	}
	if e.ClickX0 == nil || e.ClickY0 == nil {
		f.errorf("missing_click", e.SessionID, e.ID, "cell_click without click coordinates")
		return
	}

	grid := m.Grid(e.ZoomLevel)
	i, j := *e.CellI, *e.CellJ
	x, y := *e.ClickX0, *e.ClickY0

	// 半开区间下落在格子内与 lattice 反算出同一格子等价
	if bounds := grid.Bounds(i, j); !bounds.Contains(x, y) {
		li, lj := grid.Index(x, y)
		f.errorf("click_outside_cell", e.SessionID, e.ID, "cell (%d,%d) at %s: click (%.1f, %.1f) outside [(%.1f, %.1f) to (%.1f, %.1f)), lattice gives (%d,%d)",
			i, j, formatMagnification(e.ZoomLevel), x, y, bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY, li, lj)
	}

	// 不完整的边缘格子允许点击，但不会导出为完整 patch
	if !grid.InBounds(i, j) {
		cols, rows := grid.Dimensions()
		f.warnf("edge_cell", e.SessionID, e.ID, "cell (%d,%d) outside complete grid %dx%d at %s",
			i, j, cols, rows, formatMagnification(e.ZoomLevel))
	}
}

func formatMagnification(mag float64) string {
	return strconv.FormatFloat(mag, 'f', -1, 64) + "x"
}
