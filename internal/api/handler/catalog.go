package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
)

type CatalogHandler struct {
	cfg       *config.Config
	manifests manifest.Provider
}

func NewCatalogHandler(cfg *config.Config, manifests manifest.Provider) *CatalogHandler {
	return &CatalogHandler{cfg: cfg, manifests: manifests}
}

// Get 获取标签、事件类型与上报参数
// GET /api/v1/catalog
func (h *CatalogHandler) Get(c *gin.Context) {
	response.Success(c, &dto.CatalogResponse{
		Labels:                 model.Labels(),
		EventTypes:             model.EventTypes(),
		NewAttemptAfterSeconds: int(h.cfg.Review.NewAttemptAfter.Seconds()),
		MaxBatchSize:           h.cfg.Ingest.MaxBatchSize,
		RequireViewingAttempt:  h.cfg.Ingest.RequireViewingAttempt,
	})
}

// Geometry 获取切片各倍率下的网格
// GET /api/v1/images/:id/geometry
func (h *CatalogHandler) Geometry(c *gin.Context) {
	imageID := c.Param("id")

	m, err := h.manifests.Get(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, manifest.ErrManifestNotFound) || errors.Is(err, manifest.ErrInvalidImageID) {
			response.NotFoundError(c, "切片不存在")
			return
		}
		_ = c.Error(err)
		response.TransientError(c, "")
		return
	}

	response.Success(c, toImageGeometry(imageID, m))
}

func toImageGeometry(imageID string, m *manifest.Manifest) *dto.ImageGeometry {
	geo := &dto.ImageGeometry{
		ImageID:      imageID,
		Level0Width:  m.Level0Width,
		Level0Height: m.Level0Height,
		PatchPx:      m.PatchPx,
		TileSize:     m.TileSize,
	}
	for _, mag := range m.Magnifications() {
		level, _ := m.LevelFor(mag)
		grid := m.Grid(mag)
		cols, rows := grid.Dimensions()
		geo.Grids = append(geo.Grids, dto.MagnificationGrid{
			Magnification: strconv.FormatFloat(mag, 'f', -1, 64) + "x",
			DZILevel:      level,
			CellSize:      m.CellSize(mag),
			Cols:          cols,
			Rows:          rows,
		})
	}
	return geo
}
