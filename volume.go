package cluster

import (
	"math"

	"github.com/flywave/go3d/vec3"
	"go.uber.org/zap"
)

// adjacency 体素与三角形之间的多对多关系, 只能通过 link 修改
type adjacency struct {
	cellPrims [][]uint32
	primCells [][]uint32
}

func newAdjacency(cells, prims int) adjacency {
	return adjacency{
		cellPrims: make([][]uint32, cells),
		primCells: make([][]uint32, prims),
	}
}

func (a *adjacency) link(prim, cell uint32) {
	a.cellPrims[cell] = append(a.cellPrims[cell], prim)
	a.primCells[prim] = append(a.primCells[prim], cell)
}

// VolumeGrid 覆盖整个网格的规则体素网格, 构建后只读
type VolumeGrid struct {
	CellSize float32
	Volume   vec3.Box
	Count    [3]int

	adj adjacency
}

// NewVolumeGrid 计算体素尺寸并把每个三角形散列到与其相交的体素中
func NewVolumeGrid(m *Mesh, opts Options) *VolumeGrid {
	opts = opts.withDefaults()
	g := &VolumeGrid{}

	bbox := expandBox(m.BBox, volumeExpandRatio)
	g.CellSize = firstCellSize(&bbox, opts)
	g.Volume, g.Count = boundingVolume(&bbox, g.CellSize)
	for cellProduct(g.Count) > float64(opts.MaxCells) {
		next := g.CellSize + opts.CellSizeStep
		if next == g.CellSize {
			next = math.Nextafter32(g.CellSize, math.MaxFloat32)
		}
		g.CellSize = next
		g.Volume, g.Count = boundingVolume(&bbox, g.CellSize)
	}
	g.adj = newAdjacency(g.CellCount(), len(m.Prims))

	opts.Logger.Info("mesh volume",
		zap.Ints("cells", g.Count[:]),
		zap.Float32("cellSize", g.CellSize),
		zap.Int("total", g.CellCount()))

	for i := range m.Prims {
		prim := uint32(i)
		tri := m.Triangle(prim)
		box := pointsBox(tri[:])
		lo, hi := g.cellRange(&box)
		for z := lo[2]; z <= hi[2]; z++ {
			for y := lo[1]; y <= hi[1]; y++ {
				for x := lo[0]; x <= hi[0]; x++ {
					cell := g.CellBox(x, y, z)
					if triangleIntersectsBox(&tri, &cell, opts.Projection) {
						g.adj.link(prim, g.CellIndex(x, y, z))
					}
				}
			}
		}
	}
	return g
}

// expandBox 按对角线长度的 ratio 向外扩展包围盒
func expandBox(box vec3.Box, ratio float32) vec3.Box {
	diag := vec3.Sub(&box.Max, &box.Min)
	w := diag.Length() * ratio
	return vec3.Box{
		Min: vec3.T{box.Min[0] - w, box.Min[1] - w, box.Min[2] - w},
		Max: vec3.T{box.Max[0] + w, box.Max[1] + w, box.Max[2] + w},
	}
}

// boundingVolume 将包围盒对齐到 cellSize 的格点并返回各轴体素数
func boundingVolume(box *vec3.Box, cellSize float32) (vec3.Box, [3]int) {
	var vol vec3.Box
	var count [3]int
	for i := 0; i < 3; i++ {
		vol.Min[i] = float32(math.Floor(float64(box.Min[i]/cellSize))) * cellSize
		vol.Max[i] = float32(math.Ceil(float64(box.Max[i]/cellSize))) * cellSize
		count[i] = int(math.Round(float64((vol.Max[i] - vol.Min[i]) / cellSize)))
		// a point-like mesh still needs one cell per axis
		if count[i] < 1 {
			count[i] = 1
			vol.Max[i] = vol.Min[i] + cellSize
		}
	}
	return vol, count
}

// firstCellSize 跳过体素数下界已超过 MaxCells 的尺寸.
// The result stays on the CellSize + k*CellSizeStep sequence, so the grid
// matches a step-by-step search while huge meshes need only O(log k) probes.
func firstCellSize(box *vec3.Box, opts Options) float32 {
	start := float64(opts.CellSize)
	step := float64(opts.CellSizeStep)
	fits := func(k float64) bool {
		return cellLowerBound(box, start+k*step) <= float64(opts.MaxCells)
	}
	if fits(0) {
		return opts.CellSize
	}
	lo, hi := 0.0, 1.0
	for !fits(hi) {
		lo, hi = hi, hi*2
	}
	for hi-lo > 1 {
		mid := math.Floor((lo + hi) / 2)
		if fits(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return float32(start + hi*step)
}

// cellLowerBound 对齐后的体素数不会小于包围盒尺寸除以 cellSize
func cellLowerBound(box *vec3.Box, cellSize float64) float64 {
	n := 1.0
	for i := 0; i < 3; i++ {
		n *= math.Max(1, float64(box.Max[i]-box.Min[i])/cellSize)
	}
	// float32 对齐的舍入误差
	return n * (1 - 1e-6)
}

// cellProduct 以 float64 计算体素总数, 避免 int 溢出
func cellProduct(count [3]int) float64 {
	return float64(count[0]) * float64(count[1]) * float64(count[2])
}

func (g *VolumeGrid) CellCount() int {
	return g.Count[0] * g.Count[1] * g.Count[2]
}

func (g *VolumeGrid) pageSize() int {
	return g.Count[0] * g.Count[1]
}

// CellIndex 按 X, Y, Z 顺序展开的体素索引
func (g *VolumeGrid) CellIndex(x, y, z int) uint32 {
	return uint32(z*g.pageSize() + y*g.Count[0] + x)
}

// CellPosition 是 CellIndex 的逆运算
func (g *VolumeGrid) CellPosition(idx uint32) (x, y, z int) {
	page := g.pageSize()
	i := int(idx)
	z = i / page
	y = (i % page) / g.Count[0]
	x = (i % page) % g.Count[0]
	return
}

func (g *VolumeGrid) CellBox(x, y, z int) vec3.Box {
	lo := vec3.T{
		g.Volume.Min[0] + g.CellSize*float32(x),
		g.Volume.Min[1] + g.CellSize*float32(y),
		g.Volume.Min[2] + g.CellSize*float32(z),
	}
	return vec3.Box{Min: lo, Max: vec3.T{lo[0] + g.CellSize, lo[1] + g.CellSize, lo[2] + g.CellSize}}
}

// cellRange 返回与 box 有接触的体素坐标范围(闭区间), 落在格线上的边界同时包含两侧体素
func (g *VolumeGrid) cellRange(box *vec3.Box) (lo, hi [3]int) {
	for i := 0; i < 3; i++ {
		l := float64((box.Min[i] - g.Volume.Min[i]) / g.CellSize)
		h := float64((box.Max[i] - g.Volume.Min[i]) / g.CellSize)
		lo[i] = clampInt(int(math.Ceil(l))-1, 0, g.Count[i]-1)
		hi[i] = clampInt(int(math.Floor(h)), 0, g.Count[i]-1)
	}
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CellPrims 与体素相交的三角形
func (g *VolumeGrid) CellPrims(cell uint32) []uint32 {
	return g.adj.cellPrims[cell]
}

// PrimCells 与三角形相交的体素
func (g *VolumeGrid) PrimCells(prim uint32) []uint32 {
	return g.adj.primCells[prim]
}

// NeighbourCells 体素自身及其 3x3x3 邻域内的有效体素
func (g *VolumeGrid) NeighbourCells(cell uint32, out []uint32) []uint32 {
	cx, cy, cz := g.CellPosition(cell)
	for z := cz - 1; z <= cz+1; z++ {
		if z < 0 || z >= g.Count[2] {
			continue
		}
		for y := cy - 1; y <= cy+1; y++ {
			if y < 0 || y >= g.Count[1] {
				continue
			}
			for x := cx - 1; x <= cx+1; x++ {
				if x < 0 || x >= g.Count[0] {
					continue
				}
				out = append(out, g.CellIndex(x, y, z))
			}
		}
	}
	return out
}

// NeighbourSearch 在体素网格上查找簇周围未分配的三角形.
// It keeps generation-stamped scratch marks so repeated queries do not
// allocate per call; it is not safe for concurrent use.
type NeighbourSearch struct {
	grid      *VolumeGrid
	minPrims  int
	maxRounds int

	gen      uint32
	cellMark []uint32
	primMark []uint32
	frontier []uint32
	next     []uint32
	cells    []uint32
}

func NewNeighbourSearch(g *VolumeGrid, minPrims, maxRounds int) *NeighbourSearch {
	return &NeighbourSearch{
		grid:      g,
		minPrims:  minPrims,
		maxRounds: maxRounds,
		cellMark:  make([]uint32, g.CellCount()),
		primMark:  make([]uint32, len(g.adj.primCells)),
	}
}

func (s *NeighbourSearch) nextGen() {
	s.gen++
	if s.gen == 0 {
		for i := range s.cellMark {
			s.cellMark[i] = 0
		}
		for i := range s.primMark {
			s.primMark[i] = 0
		}
		s.gen = 1
	}
}

// visit 标记体素为已搜索, 若此前未搜索过则收集其中未分配的三角形
func (s *NeighbourSearch) visit(cell uint32, assigned []uint32, out []uint32) ([]uint32, bool) {
	if s.cellMark[cell] == s.gen {
		return out, false
	}
	s.cellMark[cell] = s.gen
	for _, prim := range s.grid.adj.cellPrims[cell] {
		if assigned[prim] != 0 || s.primMark[prim] == s.gen {
			continue
		}
		s.primMark[prim] = s.gen
		out = append(out, prim)
	}
	return out, true
}

// NeighbourPrims 先搜索簇内三角形所在的体素, 候选不足时按轮次向外扩展 3x3x3 邻域.
// Each round only expands the cells first reached in the previous round.
func (s *NeighbourSearch) NeighbourPrims(prims []uint32, assigned []uint32, out []uint32) []uint32 {
	s.nextGen()
	out = out[:0]
	s.frontier = s.frontier[:0]

	var fresh bool
	for _, prim := range prims {
		for _, cell := range s.grid.adj.primCells[prim] {
			if out, fresh = s.visit(cell, assigned, out); fresh {
				s.frontier = append(s.frontier, cell)
			}
		}
	}
	if len(out) > s.minPrims {
		return out
	}

	for round := 0; round < s.maxRounds && len(s.frontier) > 0; round++ {
		s.next = s.next[:0]
		for _, cell := range s.frontier {
			s.cells = s.grid.NeighbourCells(cell, s.cells[:0])
			for _, nb := range s.cells {
				if out, fresh = s.visit(nb, assigned, out); fresh {
					s.next = append(s.next, nb)
				}
			}
		}
		if len(out) > s.minPrims {
			break
		}
		s.frontier, s.next = s.next, s.frontier
	}
	return out
}
