package cluster

const CLUSTER_SIGNATURE string = "fwcl"
const CLUSTEREXT string = ".mcl"
const V1 uint32 = 1

const (
	DefaultClusterSize     = 128
	DefaultCellSize        = float32(1)
	DefaultCellSizeStep    = float32(1)
	DefaultMaxCells        = 10 * 10 * 10
	DefaultMaxNormalAngle  = float32(60)
	DefaultMinNeighbours   = 12
	DefaultMaxSearchRounds = 5
)

const (
	// 包围盒按对角线长度扩展的比例
	volumeExpandRatio = 0.1
	// 点是否在包围球内的容差
	sphereInsideTolerance = 1e-4
	// FLT_MIN, 最小正规格化 float32
	fltMin = float32(1.17549435082228750796873653722224568e-38)
)

// ProjectionBounds 投影区间累加器的初始化方式
type ProjectionBounds int

const (
	// ProjectionInfinite 以 +Inf/-Inf 初始化, 跳过退化的零长度轴
	ProjectionInfinite ProjectionBounds = iota
	// ProjectionLegacy 以 MaxFloat32/FLT_MIN 初始化, 不跳过任何轴
	ProjectionLegacy
)

func (p ProjectionBounds) String() string {
	switch p {
	case ProjectionLegacy:
		return "legacy"
	default:
		return "infinite"
	}
}
