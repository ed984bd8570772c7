package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/flywave/go3d/vec3"
)

var (
	ErrEmptyMesh       = errors.New("cluster: mesh has no positions or no triangles")
	ErrIndexCount      = errors.New("cluster: index count is not a multiple of 3")
	ErrIndexOutOfRange = errors.New("cluster: triangle index out of range")
	ErrPositionCount   = errors.New("cluster: flat position count is not a multiple of 3")
)

// Mesh 参与分簇的三角网格
type Mesh struct {
	P      []vec3.T
	Prims  [][3]uint32
	PrimsN []vec3.T
	BBox   vec3.Box
}

// NewMesh 按 scale 缩放顶点并构建三角形与面法线
func NewMesh(positions []vec3.T, indices []uint32, scale float32) (*Mesh, error) {
	if len(positions) == 0 || len(indices) == 0 {
		return nil, ErrEmptyMesh
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices", ErrIndexCount, len(indices))
	}

	m := &Mesh{
		P:     make([]vec3.T, len(positions)),
		Prims: make([][3]uint32, 0, len(indices)/3),
	}
	for i := range positions {
		m.P[i] = positions[i].Scaled(scale)
	}
	for i := 0; i < len(indices); i += 3 {
		prim := [3]uint32{indices[i], indices[i+1], indices[i+2]}
		for _, idx := range prim {
			if int(idx) >= len(m.P) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrIndexOutOfRange, i/3, idx, len(m.P))
			}
		}
		m.Prims = append(m.Prims, prim)
	}
	m.BBox = m.computeBBox()
	m.calcPrimNormals()
	return m, nil
}

// NewMeshFromFloats 使用 xyz 连续排列的顶点缓冲构建网格
func NewMeshFromFloats(flat []float32, indices []uint32, scale float32) (*Mesh, error) {
	if len(flat)%3 != 0 {
		return nil, fmt.Errorf("%w: %d floats", ErrPositionCount, len(flat))
	}
	positions := make([]vec3.T, len(flat)/3)
	for i := range positions {
		positions[i] = vec3.T{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return NewMesh(positions, indices, scale)
}

func (m *Mesh) PrimCount() int {
	return len(m.Prims)
}

func (m *Mesh) PointCount() int {
	return len(m.P)
}

// Triangle 返回第 i 个三角形的三个顶点
func (m *Mesh) Triangle(i uint32) [3]vec3.T {
	prim := m.Prims[i]
	return [3]vec3.T{m.P[prim[0]], m.P[prim[1]], m.P[prim[2]]}
}

func (m *Mesh) valid() bool {
	return len(m.P) > 0 && len(m.Prims) > 0 && len(m.PrimsN) == len(m.Prims)
}

func (m *Mesh) calcPrimNormals() {
	m.PrimsN = make([]vec3.T, len(m.Prims))
	for i, prim := range m.Prims {
		m.PrimsN[i] = TriangleNormal(&m.P[prim[0]], &m.P[prim[1]], &m.P[prim[2]])
	}
}

func (m *Mesh) computeBBox() vec3.Box {
	return pointsBox(m.P)
}

// TriangleNormal 计算面法线, 退化三角形得到 NaN
func TriangleNormal(p0, p1, p2 *vec3.T) vec3.T {
	p10 := vec3.Sub(p1, p0)
	p20 := vec3.Sub(p2, p0)
	n := vec3.Cross(&p10, &p20)
	l := n.Length()
	return n.Scaled(1 / l)
}

func pointsBox(points []vec3.T) vec3.Box {
	minX := float32(math.MaxFloat32)
	minY := float32(math.MaxFloat32)
	minZ := float32(math.MaxFloat32)
	maxX := float32(-math.MaxFloat32)
	maxY := float32(-math.MaxFloat32)
	maxZ := float32(-math.MaxFloat32)
	for i := range points {
		minX = min32(minX, points[i][0])
		minY = min32(minY, points[i][1])
		minZ = min32(minZ, points[i][2])

		maxX = max32(maxX, points[i][0])
		maxY = max32(maxY, points[i][1])
		maxZ = max32(maxZ, points[i][2])
	}
	return vec3.Box{Min: vec3.T{minX, minY, minZ}, Max: vec3.T{maxX, maxY, maxZ}}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
