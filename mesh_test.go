package cluster

import (
	"errors"
	"testing"

	"github.com/flywave/go3d/vec3"
)

// TestNewMesh 测试网格构建与法线计算
func TestNewMesh(t *testing.T) {
	positions := []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 1}}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	m, err := NewMesh(positions, indices, 2)
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}

	if m.PrimCount() != 2 {
		t.Errorf("Expected 2 triangles, got %d", m.PrimCount())
	}
	if m.PointCount() != 4 {
		t.Errorf("Expected 4 points, got %d", m.PointCount())
	}
	if m.P[2] != (vec3.T{2, 2, 0}) {
		t.Errorf("Expected scaled position [2 2 0], got %v", m.P[2])
	}
	if positions[2] != (vec3.T{1, 1, 0}) {
		t.Error("NewMesh should not modify the input positions")
	}
	if m.PrimsN[0] != (vec3.T{0, 0, 1}) {
		t.Errorf("Expected normal [0 0 1], got %v", m.PrimsN[0])
	}
	if m.BBox.Min != (vec3.T{0, 0, 0}) || m.BBox.Max != (vec3.T{2, 2, 2}) {
		t.Errorf("Unexpected bounding box %v", m.BBox)
	}

	tri := m.Triangle(1)
	if tri[2] != (vec3.T{0, 2, 2}) {
		t.Errorf("Unexpected triangle %v", tri)
	}
}

// TestNewMeshErrors 测试非法输入
func TestNewMeshErrors(t *testing.T) {
	positions := []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}}
	tests := []struct {
		name      string
		positions []vec3.T
		indices   []uint32
		want      error
	}{
		{"no positions", nil, []uint32{0, 1, 2}, ErrEmptyMesh},
		{"no indices", positions, nil, ErrEmptyMesh},
		{"partial triangle", positions, []uint32{0, 1}, ErrIndexCount},
		{"out of range", positions, []uint32{0, 1, 3}, ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMesh(tt.positions, tt.indices, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestNewMeshFromFloats 测试连续顶点缓冲
func TestNewMeshFromFloats(t *testing.T) {
	m, err := NewMeshFromFloats([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2}, 1)
	if err != nil {
		t.Fatalf("NewMeshFromFloats failed: %v", err)
	}
	if m.P[1] != (vec3.T{1, 0, 0}) {
		t.Errorf("Unexpected position %v", m.P[1])
	}

	_, err = NewMeshFromFloats([]float32{0, 0, 0, 1}, []uint32{0, 0, 0}, 1)
	if !errors.Is(err, ErrPositionCount) {
		t.Errorf("Expected ErrPositionCount, got %v", err)
	}
}
