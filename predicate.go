package cluster

import (
	"math"

	"github.com/flywave/go3d/vec3"
)

// 包围盒的三个面法线, 同时也是其棱的方向
var boxNormals = [3]vec3.T{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// 退化轴的长度平方阈值
const degenerateAxisEpsilon = 1e-12

type projector struct {
	bounds ProjectionBounds
}

func (p projector) init() (float32, float32) {
	if p.bounds == ProjectionLegacy {
		return math.MaxFloat32, fltMin
	}
	return float32(math.Inf(1)), float32(math.Inf(-1))
}

func (p projector) triangle(tri *[3]vec3.T, axis *vec3.T) (minValue, maxValue float32) {
	minValue, maxValue = p.init()
	for i := range tri {
		v := vec3.Dot(axis, &tri[i])
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}
	return
}

func (p projector) box(box *vec3.Box, axis *vec3.T) (minValue, maxValue float32) {
	minValue, maxValue = p.init()
	corners := boxCorners(box)
	for i := range corners {
		v := vec3.Dot(axis, &corners[i])
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}
	return
}

// skip 在非兼容模式下跳过无法分离任何区间的零长度轴
func (p projector) skip(axis *vec3.T) bool {
	if p.bounds == ProjectionLegacy {
		return false
	}
	return vec3.Dot(axis, axis) < degenerateAxisEpsilon
}

// separated 判断叉积轴上的两个区间是否分离.
// 兼容模式下仅接触也视为分离, 否则接触视为相交, 与面法线轴的判定一致.
func (p projector) separated(boxMin, boxMax, triMin, triMax float32) bool {
	if p.bounds == ProjectionLegacy {
		return boxMax <= triMin || boxMin >= triMax
	}
	return boxMax < triMin || boxMin > triMax
}

func boxCorners(box *vec3.Box) [8]vec3.T {
	return [8]vec3.T{
		{box.Min[0], box.Min[1], box.Min[2]},
		{box.Max[0], box.Min[1], box.Min[2]},
		{box.Min[0], box.Max[1], box.Min[2]},
		{box.Max[0], box.Max[1], box.Min[2]},

		{box.Min[0], box.Min[1], box.Max[2]},
		{box.Max[0], box.Min[1], box.Max[2]},
		{box.Min[0], box.Max[1], box.Max[2]},
		{box.Max[0], box.Max[1], box.Max[2]},
	}
}

// TriangleIntersectsBox 使用分离轴定理判断三角形与轴对齐包围盒是否相交
func TriangleIntersectsBox(tri [3]vec3.T, box vec3.Box) bool {
	return triangleIntersectsBox(&tri, &box, ProjectionInfinite)
}

// TriangleIntersectsBoxWith 与 TriangleIntersectsBox 相同, 但可指定投影区间的初始化方式
func TriangleIntersectsBoxWith(tri [3]vec3.T, box vec3.Box, bounds ProjectionBounds) bool {
	return triangleIntersectsBox(&tri, &box, bounds)
}

func triangleIntersectsBox(tri *[3]vec3.T, box *vec3.Box, bounds ProjectionBounds) bool {
	p := projector{bounds: bounds}

	// box normals
	for i := range boxNormals {
		triMin, triMax := p.triangle(tri, &boxNormals[i])
		if triMax < box.Min[i] || triMin > box.Max[i] {
			return false
		}
	}

	// triangle normal
	triN := TriangleNormal(&tri[0], &tri[1], &tri[2])
	if !p.skip(&triN) {
		offset := vec3.Dot(&triN, &tri[0])
		boxMin, boxMax := p.box(box, &triN)
		if boxMax < offset || boxMin > offset {
			return false
		}
	}

	// nine edge cross products
	edges := [3]vec3.T{
		vec3.Sub(&tri[0], &tri[1]),
		vec3.Sub(&tri[1], &tri[2]),
		vec3.Sub(&tri[2], &tri[0]),
	}
	for i := range edges {
		for j := range boxNormals {
			axis := vec3.Cross(&edges[i], &boxNormals[j])
			if p.skip(&axis) {
				continue
			}
			boxMin, boxMax := p.box(box, &axis)
			triMin, triMax := p.triangle(tri, &axis)
			if p.separated(boxMin, boxMax, triMin, triMax) {
				return false
			}
		}
	}
	return true
}
