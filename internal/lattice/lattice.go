// Package lattice 提供金字塔图像的网格坐标换算。
//
// 所有坐标均为 level-0 像素坐标，网格锚定在 (0,0)，无旋转。
// 取整一律使用 floor，查看器与离线校验必须得到相同的格子。
package lattice

import "math"

// CellSize 计算当前放大倍率下一个语义格子在 level-0 像素中的边长
func CellSize(nativePatchSize, nativeMagnification, currentMagnification float64) float64 {
	return nativePatchSize * (nativeMagnification / currentMagnification)
}

// IndexOf 将 level-0 坐标映射为格子索引 (i, j)
func IndexOf(x, y, cellSize float64) (int, int) {
	return int(math.Floor(x / cellSize)), int(math.Floor(y / cellSize))
}

// Center 返回格子 (i, j) 的中心坐标
func Center(i, j int, cellSize float64) (float64, float64) {
	return (float64(i) + 0.5) * cellSize, (float64(j) + 0.5) * cellSize
}

// GridDimensions 返回图像内完整格子的列数和行数
func GridDimensions(imageWidth, imageHeight, cellSize float64) (int, int) {
	return int(math.Floor(imageWidth / cellSize)), int(math.Floor(imageHeight / cellSize))
}

// IsEdgeCell 判断格子的右边界或下边界是否超出图像范围
func IsEdgeCell(i, j int, imageWidth, imageHeight, cellSize float64) bool {
	right := float64(i+1) * cellSize
	bottom := float64(j+1) * cellSize
	return right > imageWidth || bottom > imageHeight
}

// Rect 半开矩形 [MinX, MaxX) × [MinY, MaxY)
type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Contains 判断点是否落在矩形内（右、下边界不包含）
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// Bounds 返回格子 (i, j) 覆盖的区域
func Bounds(i, j int, cellSize float64) Rect {
	return Rect{
		MinX: float64(i) * cellSize,
		MinY: float64(j) * cellSize,
		MaxX: float64(i+1) * cellSize,
		MaxY: float64(j+1) * cellSize,
	}
}

// Grid 固定图像尺寸与格子大小的网格
type Grid struct {
	Width    float64
	Height   float64
	CellSize float64
}

// NewGrid 创建网格
func NewGrid(width, height, cellSize float64) Grid {
	return Grid{Width: width, Height: height, CellSize: cellSize}
}

func (g Grid) Index(x, y float64) (int, int) {
	return IndexOf(x, y, g.CellSize)
}

func (g Grid) Center(i, j int) (float64, float64) {
	return Center(i, j, g.CellSize)
}

func (g Grid) Dimensions() (int, int) {
	return GridDimensions(g.Width, g.Height, g.CellSize)
}

func (g Grid) IsEdge(i, j int) bool {
	return IsEdgeCell(i, j, g.Width, g.Height, g.CellSize)
}

func (g Grid) Bounds(i, j int) Rect {
	return Bounds(i, j, g.CellSize)
}

// InBounds 判断索引是否位于完整格子范围内
func (g Grid) InBounds(i, j int) bool {
	cols, rows := g.Dimensions()
	return i >= 0 && i < cols && j >= 0 && j < rows
}
