package cluster

import (
	"gonum.org/v1/gonum/stat"
)

// Stats 分簇结果统计
type Stats struct {
	Prims int
	// 合并前
	Clusters      int
	FullClusters  int
	SmallClusters int
	MeanSize      float64
	StdDevSize    float64
	// 合并后
	Groups  int
	Padding int
}

func computeStats(prims int, grown, final [][]uint32, size int) Stats {
	s := Stats{Prims: prims, Clusters: len(grown), Groups: len(final)}
	sizes := make([]float64, len(grown))
	for i, c := range grown {
		sizes[i] = float64(len(c))
		if len(c) < size {
			s.SmallClusters++
		} else {
			s.FullClusters++
		}
	}
	if len(sizes) > 1 {
		s.MeanSize, s.StdDevSize = stat.MeanStdDev(sizes, nil)
	} else if len(sizes) == 1 {
		s.MeanSize = sizes[0]
	}

	total := 0
	for _, c := range final {
		total += len(c)
	}
	s.Padding = total - prims
	return s
}

// FillRatio 输出簇中非填充三角形所占的比例
func (s Stats) FillRatio() float64 {
	total := s.Prims + s.Padding
	if total == 0 {
		return 0
	}
	return float64(s.Prims) / float64(total)
}
