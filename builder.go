package cluster

import (
	"math"

	"github.com/flywave/go3d/vec3"
	"go.uber.org/zap"
)

// clusterBuilder 单个簇生长过程中的全部临时状态, 簇封闭后即丢弃
type clusterBuilder struct {
	mesh *Mesh
	id   uint32

	prims     []uint32
	pointsIn  map[uint32]struct{}
	uniquePos map[vec3.T]struct{}
	points    []vec3.T
	normals   []vec3.T

	sphere Sphere
	normal vec3.T
}

func newClusterBuilder(m *Mesh, id, seed uint32, size int) *clusterBuilder {
	b := &clusterBuilder{
		mesh:      m,
		id:        id,
		prims:     make([]uint32, 0, size),
		pointsIn:  make(map[uint32]struct{}, size*3),
		uniquePos: make(map[vec3.T]struct{}, size*3),
		points:    make([]vec3.T, 0, size*3),
		normals:   make([]vec3.T, 0, size),
	}
	b.prims = append(b.prims, seed)
	for _, idx := range m.Prims[seed] {
		b.points = append(b.points, m.P[idx])
		b.pointsIn[idx] = struct{}{}
		b.uniquePos[m.P[idx]] = struct{}{}
	}
	b.normal = m.PrimsN[seed]
	b.normals = append(b.normals, b.normal)
	b.sphere = BoundingSphere(b.points)
	return b
}

func (b *clusterBuilder) normalValid(prim uint32, cosLimit float32) bool {
	return vec3.Dot(&b.mesh.PrimsN[prim], &b.normal) >= cosLimit
}

func (b *clusterBuilder) insideSphere(prim uint32) bool {
	for _, idx := range b.mesh.Prims[prim] {
		if !b.sphere.Contains(&b.mesh.P[idx]) {
			return false
		}
	}
	return true
}

// tentativeSphere 临时加入三角形中未包含的顶点计算包围球, 随后回滚
func (b *clusterBuilder) tentativeSphere(prim uint32) Sphere {
	added := 0
	for _, idx := range b.mesh.Prims[prim] {
		if _, ok := b.pointsIn[idx]; !ok {
			b.points = append(b.points, b.mesh.P[idx])
			added++
		}
	}
	s := BoundingSphere(b.points)
	b.points = b.points[:len(b.points)-added]
	return s
}

// pick 优先选择法线相容且完全位于当前包围球内的三角形,
// 否则选择使包围球半径最小的法线相容三角形.
func (b *clusterBuilder) pick(neighbours []uint32, cosLimit float32) (uint32, bool) {
	for _, prim := range neighbours {
		if b.normalValid(prim, cosLimit) && b.insideSphere(prim) {
			return prim, true
		}
	}

	found := false
	var best uint32
	smallest := float32(math.MaxFloat32)
	for _, prim := range neighbours {
		if !b.normalValid(prim, cosLimit) {
			continue
		}
		s := b.tentativeSphere(prim)
		if s.Radius < smallest {
			best, smallest, found = prim, s.Radius, true
			b.sphere = s
		}
	}
	return best, found
}

func (b *clusterBuilder) adopt(prim uint32) {
	b.prims = append(b.prims, prim)
	for _, idx := range b.mesh.Prims[prim] {
		if _, ok := b.pointsIn[idx]; ok {
			continue
		}
		pos := b.mesh.P[idx]
		if _, ok := b.uniquePos[pos]; !ok {
			b.points = append(b.points, pos)
			b.uniquePos[pos] = struct{}{}
		}
		b.pointsIn[idx] = struct{}{}
	}

	b.normals = append(b.normals, b.mesh.PrimsN[prim])
	b.normal = AverageNormal(b.normals)

	b.sphere = BoundingSphere(b.points)
}

// MakeClusters 按三角形索引顺序贪心生长簇, 返回的簇按 id 排列(不含 0 号空簇).
// Every triangle ends up in exactly one cluster; a cluster that finds no
// compatible neighbour is sealed early.
func MakeClusters(m *Mesh, grid *VolumeGrid, opts Options) [][]uint32 {
	opts = opts.withDefaults()
	if !m.valid() {
		panic("cluster: MakeClusters on an empty mesh")
	}

	assigned := make([]uint32, len(m.Prims))
	search := NewNeighbourSearch(grid, opts.MinNeighbours, opts.MaxSearchRounds)
	cosLimit := float32(math.Cos(float64(opts.MaxNormalAngle) * math.Pi / 180))

	clusters := make([][]uint32, 0, len(m.Prims)/opts.ClusterSize+2)
	var neighbours []uint32
	var id uint32
	for i := range m.Prims {
		seed := uint32(i)
		if assigned[seed] != 0 {
			continue
		}
		id++
		assigned[seed] = id
		b := newClusterBuilder(m, id, seed, opts.ClusterSize)

		for n := 1; n < opts.ClusterSize; n++ {
			neighbours = search.NeighbourPrims(b.prims, assigned, neighbours)
			if ce := opts.Logger.Check(zap.DebugLevel, "analysis neighbours"); ce != nil {
				ce.Write(zap.Int("step", n), zap.Int("neighbours", len(neighbours)), zap.Int("points", len(b.points)))
			}
			prim, ok := b.pick(neighbours, cosLimit)
			if !ok {
				break
			}
			assigned[prim] = id
			b.adopt(prim)
		}

		clusters = append(clusters, b.prims)
		opts.Logger.Debug("cluster generated", zap.Uint32("id", id), zap.Int("prims", len(b.prims)))
	}
	return clusters
}
