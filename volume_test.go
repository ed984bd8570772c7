package cluster

import (
	"math"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeGridDims(t *testing.T) {
	m := gridMesh(t, 10, 1)
	g := NewVolumeGrid(m, DefaultOptions())

	assert.Equal(t, float32(1), g.CellSize)
	assert.Equal(t, [3]int{14, 14, 4}, g.Count)
	assert.Equal(t, vec3.T{-2, -2, -2}, g.Volume.Min)
	assert.Equal(t, vec3.T{12, 12, 2}, g.Volume.Max)
	assert.Equal(t, 784, g.CellCount())
}

func TestVolumeGridGrowth(t *testing.T) {
	m := gridMesh(t, 10, 10)
	opts := DefaultOptions()
	g := NewVolumeGrid(m, opts)
	assert.Equal(t, float32(9), g.CellSize)
	assert.LessOrEqual(t, g.CellCount(), opts.MaxCells)

	opts.MaxCells = 100
	g = NewVolumeGrid(m, opts)
	assert.Greater(t, g.CellSize, float32(9))
	assert.LessOrEqual(t, g.CellCount(), 100)

	// 从更大的初始尺寸开始时不会缩小
	opts = DefaultOptions()
	opts.CellSize = 20
	g = NewVolumeGrid(m, opts)
	assert.Equal(t, float32(20), g.CellSize)
}

func TestVolumeGridAdjacency(t *testing.T) {
	m := cubeMesh(t, 3)
	g := NewVolumeGrid(m, DefaultOptions())

	links := 0
	for cell := 0; cell < g.CellCount(); cell++ {
		for _, prim := range g.CellPrims(uint32(cell)) {
			assert.Contains(t, g.PrimCells(prim), uint32(cell))
			links++
		}
	}
	for prim := 0; prim < m.PrimCount(); prim++ {
		cells := g.PrimCells(uint32(prim))
		require.NotEmpty(t, cells, "triangle %d has no cell", prim)
		for _, cell := range cells {
			assert.Contains(t, g.CellPrims(cell), uint32(prim))
			links--
		}
	}
	assert.Zero(t, links)
}

func TestVolumeGridBinning(t *testing.T) {
	m := gridMesh(t, 10, 1)
	g := NewVolumeGrid(m, DefaultOptions())

	// 三角形 0 覆盖 [0,1]x[0,1] 的右下半部分, 位于 z=0 格面上
	cells := g.PrimCells(0)
	for _, cell := range cells {
		box := g.CellBox(g.CellPosition(cell))
		assert.True(t, TriangleIntersectsBox(m.Triangle(0), box))
	}
	x, y, z := 2, 2, 2
	assert.Contains(t, cells, g.CellIndex(x, y, z))
	assert.Contains(t, cells, g.CellIndex(x, y, z-1))
	assert.NotContains(t, cells, g.CellIndex(x+2, y, z))
	assert.NotContains(t, cells, g.CellIndex(x, y, z+1))
}

func TestVolumeGridSinglePoint(t *testing.T) {
	m, err := NewMesh([]vec3.T{{1, 1, 1}}, []uint32{0, 0, 0}, 1)
	require.NoError(t, err)
	g := NewVolumeGrid(m, DefaultOptions())
	assert.Equal(t, [3]int{1, 1, 1}, g.Count)
	assert.NotEmpty(t, g.PrimCells(0))
}

func TestCellIndexRoundTrip(t *testing.T) {
	m := cubeMesh(t, 4)
	g := NewVolumeGrid(m, DefaultOptions())
	for cell := 0; cell < g.CellCount(); cell++ {
		x, y, z := g.CellPosition(uint32(cell))
		require.Equal(t, uint32(cell), g.CellIndex(x, y, z))
	}
	assert.Equal(t, uint32(g.Count[0]*g.Count[1]), g.CellIndex(0, 0, 1))
	assert.Equal(t, uint32(g.Count[0]), g.CellIndex(0, 1, 0))
}

func TestNeighbourCells(t *testing.T) {
	m := gridMesh(t, 10, 1)
	g := NewVolumeGrid(m, DefaultOptions())

	assert.Len(t, g.NeighbourCells(0, nil), 8)
	assert.Len(t, g.NeighbourCells(g.CellIndex(5, 5, 1), nil), 27)
	assert.Len(t, g.NeighbourCells(g.CellIndex(5, 0, 1), nil), 18)

	out := g.NeighbourCells(g.CellIndex(5, 5, 1), nil)
	assert.Equal(t, g.CellIndex(4, 4, 0), out[0])
	assert.Equal(t, g.CellIndex(6, 6, 2), out[len(out)-1])
}

func TestNeighbourPrims(t *testing.T) {
	m := gridMesh(t, 10, 1)
	opts := DefaultOptions()
	g := NewVolumeGrid(m, opts)
	s := NewNeighbourSearch(g, opts.MinNeighbours, opts.MaxSearchRounds)

	assigned := make([]uint32, m.PrimCount())
	assigned[0] = 1
	got := s.NeighbourPrims([]uint32{0}, assigned, nil)
	assert.Greater(t, len(got), opts.MinNeighbours)
	assert.NotContains(t, got, uint32(0))

	seen := make(map[uint32]bool)
	for _, prim := range got {
		assert.False(t, seen[prim], "duplicate triangle %d", prim)
		seen[prim] = true
	}

	again := s.NeighbourPrims([]uint32{0}, assigned, nil)
	assert.Equal(t, got, again)
}

func TestNeighbourPrimsExpands(t *testing.T) {
	m := gridMesh(t, 10, 1)
	opts := DefaultOptions()
	g := NewVolumeGrid(m, opts)
	s := NewNeighbourSearch(g, opts.MinNeighbours, opts.MaxSearchRounds)

	// 只留下远处一个角落未分配, 需要多轮扩展才能找到
	assigned := make([]uint32, m.PrimCount())
	for i := range assigned {
		assigned[i] = 1
	}
	last := uint32(m.PrimCount() - 1)
	assigned[last] = 0
	got := s.NeighbourPrims([]uint32{0}, assigned, nil)
	assert.Empty(t, got)

	near := uint32(2*(3*10+3) + 1)
	assigned[near] = 0
	got = s.NeighbourPrims([]uint32{0}, assigned, nil)
	assert.Equal(t, []uint32{near}, got)

	s = NewNeighbourSearch(g, opts.MinNeighbours, 0)
	assert.Empty(t, s.NeighbourPrims([]uint32{0}, assigned, nil))
}

func tetraMesh(t testing.TB, size float32) *Mesh {
	t.Helper()
	positions := []vec3.T{{0, 0, 0}, {size, 0, 0}, {0, size, 0}, {0, 0, size}}
	indices := []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
	m, err := NewMesh(positions, indices, 1)
	require.NoError(t, err)
	return m
}

// stepwiseCellSize 逐步增长体素尺寸直到体素总数不超过 MaxCells
func stepwiseCellSize(m *Mesh, opts Options) float32 {
	bbox := expandBox(m.BBox, volumeExpandRatio)
	cs := opts.CellSize
	_, count := boundingVolume(&bbox, cs)
	for cellProduct(count) > float64(opts.MaxCells) {
		cs += opts.CellSizeStep
		_, count = boundingVolume(&bbox, cs)
	}
	return cs
}

func TestVolumeGridLargeExtent(t *testing.T) {
	m := tetraMesh(t, 3e6)
	opts := DefaultOptions()

	var g *VolumeGrid
	require.NotPanics(t, func() { g = NewVolumeGrid(m, opts) })
	assert.LessOrEqual(t, g.CellCount(), opts.MaxCells)
	assert.InDelta(t, 439952, g.CellSize, 2)
	for prim := 0; prim < m.PrimCount(); prim++ {
		assert.NotEmpty(t, g.PrimCells(uint32(prim)), "triangle %d has no cell", prim)
	}

	res := Generate(m, opts)
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0], opts.ClusterSize)
}

func TestVolumeGridGrowthMatchesStepwise(t *testing.T) {
	small := DefaultOptions()
	small.MaxCells = 100
	fine := DefaultOptions()
	fine.CellSize = 0.5
	fine.CellSizeStep = 0.25

	tests := []struct {
		name string
		mesh *Mesh
		opts Options
	}{
		{"unit grid", gridMesh(t, 10, 1), DefaultOptions()},
		{"scaled grid", gridMesh(t, 10, 10), DefaultOptions()},
		{"cube", cubeMesh(t, 4), DefaultOptions()},
		{"few cells", gridMesh(t, 10, 10), small},
		{"fine steps", gridMesh(t, 10, 10), fine},
		{"large tetra", tetraMesh(t, 3e6), DefaultOptions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewVolumeGrid(tt.mesh, tt.opts)
			assert.Equal(t, stepwiseCellSize(tt.mesh, tt.opts), g.CellSize)
			assert.LessOrEqual(t, g.CellCount(), tt.opts.MaxCells)
		})
	}
}

func TestCellProduct(t *testing.T) {
	// 4e6^3 超出 int64 范围
	assert.Greater(t, cellProduct([3]int{4000000, 4000000, 4000000}), float64(math.MaxInt64))
	assert.Equal(t, 784.0, cellProduct([3]int{14, 14, 4}))
}
