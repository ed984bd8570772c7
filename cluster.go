// Package cluster partitions triangle meshes into spatially coherent,
// near-planar clusters of a fixed triangle count for cluster based
// culling and LOD.
//
// A mesh is binned once into a capped volume grid; clusters are then grown
// greedily in triangle order, preferring neighbours that fit inside the
// cluster's current bounding sphere and whose normals stay within a cone of
// the cluster's average normal. Undersized clusters are finally repacked
// into padded groups of exactly the target size.
package cluster

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options 分簇参数, 零值字段使用默认值
type Options struct {
	// 每簇的目标三角形数
	ClusterSize int
	// 体素初始尺寸, 体素总数超过 MaxCells 时按 CellSizeStep 递增
	CellSize     float32
	CellSizeStep float32
	MaxCells     int
	// 三角形法线与簇平均法线的最大夹角(度)
	MaxNormalAngle float32
	// 邻域搜索在候选数超过 MinNeighbours 后停止扩展, 最多扩展 MaxSearchRounds 轮
	MinNeighbours   int
	MaxSearchRounds int
	Projection      ProjectionBounds
	DisableMerge    bool
	// CarryCellSize 使 GenerateAll 顺序执行并把上一个网格增长后的体素尺寸传给下一个
	CarryCellSize bool
	// GenerateAll 的最大并发数, 0 表示 GOMAXPROCS
	Concurrency int
	Logger      *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		ClusterSize:     DefaultClusterSize,
		CellSize:        DefaultCellSize,
		CellSizeStep:    DefaultCellSizeStep,
		MaxCells:        DefaultMaxCells,
		MaxNormalAngle:  DefaultMaxNormalAngle,
		MinNeighbours:   DefaultMinNeighbours,
		MaxSearchRounds: DefaultMaxSearchRounds,
		Projection:      ProjectionInfinite,
		Logger:          zap.NewNop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ClusterSize <= 0 {
		o.ClusterSize = d.ClusterSize
	}
	if o.CellSize <= 0 {
		o.CellSize = d.CellSize
	}
	if o.CellSizeStep <= 0 {
		o.CellSizeStep = d.CellSizeStep
	}
	if o.MaxCells <= 0 {
		o.MaxCells = d.MaxCells
	}
	if o.MaxNormalAngle <= 0 {
		o.MaxNormalAngle = d.MaxNormalAngle
	}
	if o.MinNeighbours <= 0 {
		o.MinNeighbours = d.MinNeighbours
	}
	if o.MaxSearchRounds <= 0 {
		o.MaxSearchRounds = d.MaxSearchRounds
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Result 一次分簇的输出
type Result struct {
	// 每个簇为原始三角形索引列表, 不包含 0 号空簇
	Clusters [][]uint32
	// 本次实际使用(可能已增长)的体素尺寸
	CellSize float32
	GridDims [3]int
	Stats    Stats
}

// Generate 对网格分簇并合并小簇.
// Passing a mesh that was not built by NewMesh (no positions or triangles)
// violates the contract and panics.
func Generate(m *Mesh, opts Options) *Result {
	opts = opts.withDefaults()
	if m == nil || !m.valid() {
		panic("cluster: Generate on an empty mesh")
	}

	grid := NewVolumeGrid(m, opts)
	grown := MakeClusters(m, grid, opts)
	final := grown
	if !opts.DisableMerge {
		final = MergeSmallClusters(grown, opts.ClusterSize)
	}

	res := &Result{
		Clusters: final,
		CellSize: grid.CellSize,
		GridDims: grid.Count,
		Stats:    computeStats(len(m.Prims), grown, final, opts.ClusterSize),
	}
	opts.Logger.Info("mesh clustered",
		zap.Int("prims", res.Stats.Prims),
		zap.Int("clusters", res.Stats.Clusters),
		zap.Int("small", res.Stats.SmallClusters),
		zap.Int("groups", res.Stats.Groups),
		zap.Int("padding", res.Stats.Padding))
	return res
}

// GenerateAll 对多个相互独立的网格分簇.
// Meshes are processed concurrently unless CarryCellSize is set, in which case
// they run in order and each starts from the cell size the previous one grew to.
func GenerateAll(ctx context.Context, meshes []*Mesh, opts Options) ([]*Result, error) {
	opts = opts.withDefaults()
	for i, m := range meshes {
		if m == nil || !m.valid() {
			return nil, fmt.Errorf("mesh %d: %w", i, ErrEmptyMesh)
		}
	}

	results := make([]*Result, len(meshes))
	if opts.CarryCellSize {
		for i, m := range meshes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = Generate(m, opts)
			opts.CellSize = results[i].CellSize
		}
		return results, nil
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, m := range meshes {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Generate(m, opts.withLogger(opts.Logger.With(zap.Int("mesh", i))))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o Options) withLogger(l *zap.Logger) Options {
	o.Logger = l
	return o
}
