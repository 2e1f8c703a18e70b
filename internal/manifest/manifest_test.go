package manifest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/testutil"
)

func TestManifest_Magnifications(t *testing.T) {
	m := testutil.TestManifest("s1")

	assert.Equal(t, []float64{2.5, 5, 10, 20, 40}, m.Magnifications())
	assert.Equal(t, 40.0, m.NativeMagnification())

	level, ok := m.LevelFor(2.5)
	assert.True(t, ok)
	assert.Equal(t, 14, level)

	_, ok = m.LevelFor(3)
	assert.False(t, ok)
}

func TestManifest_NativeMagnificationDefault(t *testing.T) {
	m := testutil.TestManifest("s1", func(m *manifest.Manifest) {
		m.MagnificationLevels = nil
	})

	assert.Equal(t, manifest.DefaultNativeMagnification, m.NativeMagnification())
}

func TestManifest_CellSizeAndGrid(t *testing.T) {
	m := testutil.TestManifest("s1")

	assert.Equal(t, 256.0, m.CellSize(40))
	assert.Equal(t, 4096.0, m.CellSize(2.5))

	g := m.Grid(20)
	cols, rows := g.Dimensions()
	assert.Equal(t, 19, cols)
	assert.Equal(t, 15, rows)
}

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		data := []byte(`{"slide_id":"s1","level0_width":1000,"level0_height":800,"mpp0":null,"patch_px":256,
			"tile_size":256,"overlap":0,"anchor":[0,0],"alignment_ok":true,"created_at":"2026-01-01T00:00:00Z",
			"magnification_levels":{"40x":12,"2.5x":8}}`)

		m, err := manifest.Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "s1", m.SlideID)
		assert.Nil(t, m.MPP0)
		assert.Equal(t, []float64{2.5, 40}, m.Magnifications())
	})

	t.Run("non-positive dimensions", func(t *testing.T) {
		_, err := manifest.Parse([]byte(`{"slide_id":"s1","level0_width":0,"level0_height":800,"patch_px":256}`))
		assert.Error(t, err)
	})

	t.Run("bad magnification key", func(t *testing.T) {
		_, err := manifest.Parse([]byte(`{"slide_id":"s1","level0_width":10,"level0_height":10,"patch_px":4,
			"magnification_levels":{"fast":1}}`))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := manifest.Parse([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestParseMagnification(t *testing.T) {
	tests := []struct {
		key     string
		want    float64
		wantErr bool
	}{
		{"40x", 40, false},
		{"2.5x", 2.5, false},
		{"10X", 10, false},
		{"x", 0, true},
		{"-5x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := manifest.ParseMagnification(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileProvider_Get(t *testing.T) {
	root := testutil.ManifestDir(t, testutil.TestManifest("slide_a"))
	p := manifest.NewFileProvider(root)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		m, err := p.Get(ctx, "slide_a")
		require.NoError(t, err)
		assert.Equal(t, 10000, m.Level0Width)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := p.Get(ctx, "slide_b")
		assert.True(t, errors.Is(err, manifest.ErrManifestNotFound))
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, id := range []string{"../slide_a", "a/b", `a\b`, ""} {
			_, err := p.Get(ctx, id)
			assert.True(t, errors.Is(err, manifest.ErrInvalidImageID), id)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		dir := filepath.Join(root, "broken")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("not json"), 0o644))

		_, err := p.Get(ctx, "broken")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, manifest.ErrManifestNotFound))
	})
}

type countingProvider struct {
	next  manifest.Provider
	calls int
}

func (p *countingProvider) Get(ctx context.Context, imageID string) (*manifest.Manifest, error) {
	p.calls++
	return p.next.Get(ctx, imageID)
}

func TestCachingProvider(t *testing.T) {
	inner := &countingProvider{next: testutil.StaticProvider{"s1": testutil.TestManifest("s1")}}
	p := manifest.NewCachingProvider(inner)
	ctx := context.Background()

	m1, err := p.Get(ctx, "s1")
	require.NoError(t, err)
	m2, err := p.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, inner.calls)

	// misses are not cached
	_, err = p.Get(ctx, "missing")
	assert.True(t, errors.Is(err, manifest.ErrManifestNotFound))
	_, err = p.Get(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestNewProvider(t *testing.T) {
	root := testutil.ManifestDir(t, testutil.TestManifest("s1"))

	p, err := manifest.NewProvider(&config.ManifestConfig{Source: "local", Dir: root})
	require.NoError(t, err)
	_, err = p.Get(context.Background(), "s1")
	assert.NoError(t, err)

	_, err = manifest.NewProvider(&config.ManifestConfig{Source: "ftp"})
	assert.Error(t, err)
}

func TestOSSProvider_ObjectKey(t *testing.T) {
	p, err := manifest.NewOSSProvider(&config.OSSConfig{
		Endpoint:        "oss-cn-hangzhou.aliyuncs.com",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		BucketName:      "slides",
		Prefix:          "tiles",
	})
	require.NoError(t, err)

	assert.Equal(t, "tiles/slide_a/manifest.json", p.ObjectKey("slide_a"))
}
