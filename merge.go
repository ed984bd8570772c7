package cluster

// MergeSmallClusters 保留三角形数不少于 size 的簇, 将其余小簇按顺序拼接后
// 重新切分为恰好 size 个三角形的簇, 最后一个不足的簇用其最后一个三角形补齐.
func MergeSmallClusters(clusters [][]uint32, size int) [][]uint32 {
	full := make([][]uint32, 0, len(clusters))
	var small [][]uint32
	for _, c := range clusters {
		if len(c) < size {
			small = append(small, c)
		} else {
			full = append(full, c)
		}
	}

	var merged [][]uint32
	chunk := make([]uint32, 0, size)
	for _, sc := range small {
		for _, prim := range sc {
			chunk = append(chunk, prim)
			if len(chunk) == size {
				merged = append(merged, chunk)
				chunk = make([]uint32, 0, size)
			}
		}
	}
	if len(chunk) > 0 {
		last := chunk[len(chunk)-1]
		for len(chunk) < size {
			chunk = append(chunk, last)
		}
		merged = append(merged, chunk)
	}
	return append(full, merged...)
}
