package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAlignment(t *testing.T) {
	t.Run("typical slide", func(t *testing.T) {
		result := CheckAlignment(10000, 8000, 256, 10)

		assert.True(t, result.OK)
		assert.Equal(t, 39, result.Cols)
		assert.Equal(t, 31, result.Rows)
		require.Len(t, result.Samples, 10)
		for _, s := range result.Samples {
			assert.True(t, s.Passed)
			assert.Equal(t, s.Cell, s.Back)
		}
	})

	t.Run("large slide at low magnification", func(t *testing.T) {
		result := CheckAlignment(100000, 80000, CellSize(256, 40, 2.5), 12)
		assert.True(t, result.OK)
		assert.Len(t, result.Samples, 12)
	})

	t.Run("no complete cells", func(t *testing.T) {
		result := CheckAlignment(100, 100, 256, 10)
		assert.True(t, result.OK)
		assert.Empty(t, result.Samples)
	})
}

func TestSampleCells(t *testing.T) {
	t.Run("corners and center first", func(t *testing.T) {
		cells := SampleCells(39, 31, 10)
		require.Len(t, cells, 10)

		assert.Equal(t, Cell{0, 0}, cells[0])
		assert.Equal(t, Cell{38, 0}, cells[1])
		assert.Equal(t, Cell{0, 30}, cells[2])
		assert.Equal(t, Cell{38, 30}, cells[3])
		assert.Equal(t, Cell{19, 15}, cells[4])
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, SampleCells(39, 31, 10), SampleCells(39, 31, 10))
	})

	t.Run("no duplicates", func(t *testing.T) {
		cells := SampleCells(3, 3, 9)
		seen := make(map[Cell]bool)
		for _, c := range cells {
			assert.False(t, seen[c], "duplicate %v", c)
			seen[c] = true
			assert.True(t, c.I >= 0 && c.I < 3 && c.J >= 0 && c.J < 3)
		}
	})

	t.Run("small grid", func(t *testing.T) {
		cells := SampleCells(1, 1, 5)
		assert.Equal(t, []Cell{{0, 0}}, cells)
	})

	t.Run("empty grid", func(t *testing.T) {
		assert.Nil(t, SampleCells(0, 10, 5))
	})
}
