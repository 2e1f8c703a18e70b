// Package manifest 读取切机生成的切片几何描述（只读）。
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/qs3c/slide_review_server/internal/lattice"
)

// DefaultNativeMagnification 切片默认按 40x 扫描
const DefaultNativeMagnification = 40.0

var (
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidImageID   = errors.New("invalid image id")
)

// Manifest 切片金字塔几何参数
type Manifest struct {
	SlideID             string         `json:"slide_id"`
	Level0Width         int            `json:"level0_width"`
	Level0Height        int            `json:"level0_height"`
	MPP0                *float64       `json:"mpp0"`
	PatchPx             int            `json:"patch_px"`
	TileSize            int            `json:"tile_size"`
	Overlap             int            `json:"overlap"`
	Anchor              [2]int         `json:"anchor"`
	AlignmentOK         bool           `json:"alignment_ok"`
	CreatedAt           time.Time      `json:"created_at"`
	DZILevelCount       int            `json:"dzi_level_count,omitempty"`
	MagnificationLevels map[string]int `json:"magnification_levels"`
}

// Provider 按切片 ID 获取 manifest
type Provider interface {
	Get(ctx context.Context, imageID string) (*Manifest, error)
}

// Parse 解析并校验 manifest JSON
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate 校验几何参数
func (m *Manifest) Validate() error {
	if m.Level0Width <= 0 || m.Level0Height <= 0 {
		return fmt.Errorf("manifest %s: level-0 dimensions must be positive", m.SlideID)
	}
	if m.PatchPx <= 0 {
		return fmt.Errorf("manifest %s: patch_px must be positive", m.SlideID)
	}
	for key := range m.MagnificationLevels {
		if _, err := ParseMagnification(key); err != nil {
			return fmt.Errorf("manifest %s: %w", m.SlideID, err)
		}
	}
	return nil
}

// ParseMagnification 解析 "40x"、"2.5x" 形式的倍率
func ParseMagnification(key string) (float64, error) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "x")
	mag, err := strconv.ParseFloat(s, 64)
	if err != nil || mag <= 0 {
		return 0, fmt.Errorf("invalid magnification %q", key)
	}
	return mag, nil
}

// Magnifications 返回按升序排列的可用倍率
func (m *Manifest) Magnifications() []float64 {
	mags := make([]float64, 0, len(m.MagnificationLevels))
	for key := range m.MagnificationLevels {
		if mag, err := ParseMagnification(key); err == nil {
			mags = append(mags, mag)
		}
	}
	sort.Float64s(mags)
	return mags
}

// NativeMagnification 最高倍率即扫描原生倍率
func (m *Manifest) NativeMagnification() float64 {
	mags := m.Magnifications()
	if len(mags) == 0 {
		return DefaultNativeMagnification
	}
	return mags[len(mags)-1]
}

// LevelFor 查询倍率对应的 DZI 层级
func (m *Manifest) LevelFor(mag float64) (int, bool) {
	for key, level := range m.MagnificationLevels {
		if v, err := ParseMagnification(key); err == nil && v == mag {
			return level, true
		}
	}
	return 0, false
}

// CellSize 当前倍率下的格子边长（level-0 像素）
func (m *Manifest) CellSize(mag float64) float64 {
	return lattice.CellSize(float64(m.PatchPx), m.NativeMagnification(), mag)
}

// Grid 当前倍率下的网格
func (m *Manifest) Grid(mag float64) lattice.Grid {
	return lattice.NewGrid(float64(m.Level0Width), float64(m.Level0Height), m.CellSize(mag))
}

// validateImageID 切片 ID 会拼进路径或对象 key，禁止路径穿越
func validateImageID(imageID string) error {
	if imageID == "" || strings.ContainsAny(imageID, `/\`) || strings.Contains(imageID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, imageID)
	}
	return nil
}
