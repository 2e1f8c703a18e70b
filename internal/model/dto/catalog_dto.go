package dto

// CatalogResponse 查看器启动时拉取的枚举与参数
type CatalogResponse struct {
	Labels                 []string `json:"labels"`
	EventTypes             []string `json:"event_types"`
	NewAttemptAfterSeconds int      `json:"new_attempt_after_seconds"`
	MaxBatchSize           int      `json:"max_batch_size"`
	RequireViewingAttempt  bool     `json:"require_viewing_attempt"`
}

// MagnificationGrid 某一倍率下的网格
type MagnificationGrid struct {
	Magnification string  `json:"magnification"`
	DZILevel      int     `json:"dzi_level"`
	CellSize      float64 `json:"cell_size"`
	Cols          int     `json:"cols"`
	Rows          int     `json:"rows"`
}

// ImageGeometry 切片几何信息
type ImageGeometry struct {
	ImageID      string              `json:"image_id"`
	Level0Width  int                 `json:"level0_width"`
	Level0Height int                 `json:"level0_height"`
	PatchPx      int                 `json:"patch_px"`
	TileSize     int                 `json:"tile_size"`
	Grids        []MagnificationGrid `json:"grids"`
}
