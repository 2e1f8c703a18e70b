package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qs3c/slide_review_server/internal/manifest"
)

// TestManifest 标准 40x 切片：10000x8000，patch 256
func TestManifest(slideID string, opts ...func(*manifest.Manifest)) *manifest.Manifest {
	mpp := 0.25
	m := &manifest.Manifest{
		SlideID:       slideID,
		Level0Width:   10000,
		Level0Height:  8000,
		MPP0:          &mpp,
		PatchPx:       256,
		TileSize:      256,
		Overlap:       0,
		AlignmentOK:   true,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DZILevelCount: 19,
		MagnificationLevels: map[string]int{
			"40x":  18,
			"20x":  17,
			"10x":  16,
			"5x":   15,
			"2.5x": 14,
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WriteManifest 将 manifest 写入 <root>/<slide_id>/manifest.json
func WriteManifest(t *testing.T, root string, m *manifest.Manifest) {
	t.Helper()

	dir := filepath.Join(root, m.SlideID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create manifest dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Failed to encode manifest: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
}

// ManifestDir 在临时目录中写入多个 manifest 并返回根目录
func ManifestDir(t *testing.T, manifests ...*manifest.Manifest) string {
	t.Helper()

	root := t.TempDir()
	for _, m := range manifests {
		WriteManifest(t, root, m)
	}
	return root
}

// StaticProvider 内存 manifest 来源
type StaticProvider map[string]*manifest.Manifest

func (p StaticProvider) Get(_ context.Context, imageID string) (*manifest.Manifest, error) {
	m, ok := p[imageID]
	if !ok {
		return nil, manifest.ErrManifestNotFound
	}
	return m, nil
}
