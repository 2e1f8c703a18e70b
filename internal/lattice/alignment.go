package lattice

import "math/rand"

// alignmentSeed 固定随机种子，保证抽样可复现
const alignmentSeed = 42

// Cell 格子索引
type Cell struct {
	I int `json:"i" yaml:"i"`
	J int `json:"j" yaml:"j"`
}

// AlignmentSample 单个抽样格子的往返校验结果
type AlignmentSample struct {
	Cell    Cell    `yaml:"cell"`
	CenterX float64 `yaml:"center_x"`
	CenterY float64 `yaml:"center_y"`
	Back    Cell    `yaml:"back"`
	Passed  bool    `yaml:"passed"`
}

// AlignmentResult 网格对齐校验结果
type AlignmentResult struct {
	CellSize float64           `yaml:"cell_size"`
	Cols     int               `yaml:"cols"`
	Rows     int               `yaml:"rows"`
	Samples  []AlignmentSample `yaml:"samples"`
	OK       bool              `yaml:"ok"`
}

// CheckAlignment 抽样验证 IndexOf(Center(i, j)) == (i, j)
func CheckAlignment(imageWidth, imageHeight, cellSize float64, numSamples int) AlignmentResult {
	cols, rows := GridDimensions(imageWidth, imageHeight, cellSize)
	result := AlignmentResult{
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		OK:       true,
	}

	for _, c := range SampleCells(cols, rows, numSamples) {
		x, y := Center(c.I, c.J, cellSize)
		bi, bj := IndexOf(x, y, cellSize)
		sample := AlignmentSample{
			Cell:    c,
			CenterX: x,
			CenterY: y,
			Back:    Cell{I: bi, J: bj},
			Passed:  bi == c.I && bj == c.J,
		}
		if !sample.Passed {
			result.OK = false
		}
		result.Samples = append(result.Samples, sample)
	}

	return result
}

// SampleCells 生成抽样格子：四角、中心，其余为确定性随机格子
func SampleCells(cols, rows, numSamples int) []Cell {
	if cols <= 0 || rows <= 0 || numSamples <= 0 {
		return nil
	}

	seen := make(map[Cell]struct{})
	samples := make([]Cell, 0, numSamples)
	add := func(c Cell) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		samples = append(samples, c)
	}

	if cols >= 2 && rows >= 2 && numSamples >= 5 {
		add(Cell{0, 0})
		add(Cell{cols - 1, 0})
		add(Cell{0, rows - 1})
		add(Cell{cols - 1, rows - 1})
	} else {
		add(Cell{0, 0})
	}

	add(Cell{cols / 2, rows / 2})

	rng := rand.New(rand.NewSource(alignmentSeed))
	maxAttempts := numSamples * 10
	for attempts := 0; len(samples) < numSamples && attempts < maxAttempts; attempts++ {
		add(Cell{rng.Intn(cols), rng.Intn(rows)})
	}

	if len(samples) > numSamples {
		samples = samples[:numSamples]
	}
	return samples
}
