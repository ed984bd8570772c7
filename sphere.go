package cluster

import (
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

// 共面/共线判定以及点包含判定使用的相对误差
const welzlEpsilon = 1e-9

// Sphere 包围球
type Sphere struct {
	Center vec3.T
	Radius float32
}

// Contains 判断点是否在球内, 允许 sphereInsideTolerance 的误差
func (s *Sphere) Contains(p *vec3.T) bool {
	d := vec3.Sub(&s.Center, p)
	r := s.Radius + sphereInsideTolerance
	return vec3.Dot(&d, &d) <= r*r
}

// BoundingSphere 计算点集的最小包围球.
//
// Move-to-front Welzl over a private float64 copy of the points; the input
// slice is never reordered. An empty set yields the zero sphere.
func BoundingSphere(points []vec3.T) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}
	pts := make([]dvec3.T, len(points))
	for i := range points {
		pts[i] = toDvec(&points[i])
	}
	ds := mtfSphere(pts, len(pts), supportSet{})

	// 数值误差可能让个别点落在球外, 以最远点距离兜底
	r2 := ds.r2
	for i := range pts {
		if d := dvec3.SquareDistance(&pts[i], &ds.c); d > r2 {
			r2 = d
		}
	}
	return Sphere{
		Center: vec3.T{float32(ds.c[0]), float32(ds.c[1]), float32(ds.c[2])},
		Radius: float32(math.Sqrt(r2)),
	}
}

// AverageNormal 以法线集合(视为点)的包围球球心归一化后作为平均法线.
// This is an approximation, not a spherical mean.
func AverageNormal(normals []vec3.T) vec3.T {
	s := BoundingSphere(normals)
	n := s.Center
	if l := n.Length(); l > 0 {
		n = n.Scaled(1 / l)
	}
	return n
}

func toDvec(v *vec3.T) dvec3.T {
	return dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
}

type dsphere struct {
	c  dvec3.T
	r2 float64
}

func (s *dsphere) contains(p *dvec3.T) bool {
	if s.r2 < 0 {
		return false
	}
	return dvec3.SquareDistance(p, &s.c) <= s.r2*(1+welzlEpsilon)+welzlEpsilon*welzlEpsilon
}

// supportSet 位于球面上的支撑点, 最多 4 个
type supportSet struct {
	p [4]dvec3.T
	n int
}

func (s supportSet) with(p dvec3.T) supportSet {
	s.p[s.n] = p
	s.n++
	return s
}

func mtfSphere(pts []dvec3.T, n int, support supportSet) dsphere {
	s := supportSphere(&support)
	if support.n == 4 {
		return s
	}
	for i := 0; i < n; i++ {
		p := pts[i]
		if s.contains(&p) {
			continue
		}
		s = mtfSphere(pts, i, support.with(p))
		copy(pts[1:i+1], pts[:i])
		pts[0] = p
	}
	return s
}

func supportSphere(s *supportSet) dsphere {
	switch s.n {
	case 0:
		return dsphere{r2: -1}
	case 1:
		return dsphere{c: s.p[0]}
	case 2:
		return diameterSphere(&s.p[0], &s.p[1])
	case 3:
		return circumSphere3(&s.p[0], &s.p[1], &s.p[2])
	default:
		return circumSphere4(&s.p[0], &s.p[1], &s.p[2], &s.p[3])
	}
}

func diameterSphere(a, b *dvec3.T) dsphere {
	c := dvec3.T{(a[0] + b[0]) * 0.5, (a[1] + b[1]) * 0.5, (a[2] + b[2]) * 0.5}
	return dsphere{c: c, r2: dvec3.SquareDistance(a, b) * 0.25}
}

// circumSphere3 三点外接圆所在的球, 共线时退化为最远两点的直径球
func circumSphere3(p0, p1, p2 *dvec3.T) dsphere {
	a := dvec3.Sub(p1, p0)
	b := dvec3.Sub(p2, p0)
	axb := dvec3.Cross(&a, &b)
	la := dvec3.Dot(&a, &a)
	lb := dvec3.Dot(&b, &b)
	d := dvec3.Dot(&axb, &axb)
	if d <= welzlEpsilon*welzlEpsilon*la*lb {
		return widestPair(p0, p1, p2)
	}

	ta := a.Scaled(lb)
	tb := b.Scaled(la)
	t := dvec3.Sub(&tb, &ta)
	off := dvec3.Cross(&t, &axb)
	off.Scale(1 / (2 * d))
	return dsphere{c: dvec3.Add(p0, &off), r2: dvec3.Dot(&off, &off)}
}

func widestPair(p0, p1, p2 *dvec3.T) dsphere {
	s := diameterSphere(p0, p1)
	if o := diameterSphere(p1, p2); o.r2 > s.r2 {
		s = o
	}
	if o := diameterSphere(p0, p2); o.r2 > s.r2 {
		s = o
	}
	return s
}

// circumSphere4 四面体外接球, 共面时退化为包含全部四点的最小三点球
func circumSphere4(p0, p1, p2, p3 *dvec3.T) dsphere {
	a := dvec3.Sub(p1, p0)
	b := dvec3.Sub(p2, p0)
	c := dvec3.Sub(p3, p0)
	bxc := dvec3.Cross(&b, &c)
	det := dvec3.Dot(&a, &bxc)
	scale := math.Sqrt(dvec3.Dot(&a, &a) * dvec3.Dot(&b, &b) * dvec3.Dot(&c, &c))
	if math.Abs(det) <= welzlEpsilon*scale {
		return coplanarSphere4(p0, p1, p2, p3)
	}

	cxa := dvec3.Cross(&c, &a)
	axb := dvec3.Cross(&a, &b)
	off := bxc.Scaled(dvec3.Dot(&a, &a))
	t1 := cxa.Scaled(dvec3.Dot(&b, &b))
	t2 := axb.Scaled(dvec3.Dot(&c, &c))
	off.Add(&t1)
	off.Add(&t2)
	off.Scale(1 / (2 * det))
	return dsphere{c: dvec3.Add(p0, &off), r2: dvec3.Dot(&off, &off)}
}

func coplanarSphere4(p0, p1, p2, p3 *dvec3.T) dsphere {
	pts := [4]*dvec3.T{p0, p1, p2, p3}
	var best dsphere
	found := false
	var widest dsphere
	for skip := 0; skip < 4; skip++ {
		var tri [3]*dvec3.T
		k := 0
		for i := 0; i < 4; i++ {
			if i != skip {
				tri[k] = pts[i]
				k++
			}
		}
		s := circumSphere3(tri[0], tri[1], tri[2])
		if s.r2 > widest.r2 {
			widest = s
		}
		if !s.contains(pts[skip]) {
			continue
		}
		if !found || s.r2 < best.r2 {
			best = s
			found = true
		}
	}
	if found {
		return best
	}
	return widest
}
