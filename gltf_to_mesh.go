package cluster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

var ErrUnsupportedAccessor = errors.New("cluster: unsupported gltf accessor")

// GltfPrimitive glTF 中一个三角形图元的顶点与索引
type GltfPrimitive struct {
	Name      string
	Mesh      int
	Primitive int
	Positions []vec3.T
	Indices   []uint32
}

// ToMesh 构建可分簇的网格
func (p *GltfPrimitive) ToMesh(scale float32) (*Mesh, error) {
	return NewMesh(p.Positions, p.Indices, scale)
}

// GltfToMesh 读取 glTF/glb 文件中所有三角形图元
func GltfToMesh(path string) ([]*GltfPrimitive, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return GltfPrimitives(doc)
}

// GltfPrimitives 提取文档中所有三角形图元, 非三角形图元被跳过
func GltfPrimitives(doc *gltf.Document) ([]*GltfPrimitive, error) {
	var prims []*GltfPrimitive
	for mi, mh := range doc.Meshes {
		for pi, ps := range mh.Primitives {
			if ps.Mode != gltf.PrimitiveTriangles {
				continue
			}
			idx, ok := ps.Attributes["POSITION"]
			if !ok {
				continue
			}
			positions, err := readPositions(doc, doc.Accessors[int(idx)])
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}

			var indices []uint32
			if ps.Indices != nil {
				indices, err = readIndices(doc, doc.Accessors[int(*ps.Indices)])
				if err != nil {
					return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
				}
			} else {
				indices = make([]uint32, len(positions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}

			prims = append(prims, &GltfPrimitive{
				Name:      mh.Name,
				Mesh:      mi,
				Primitive: pi,
				Positions: positions,
				Indices:   indices,
			})
		}
	}
	return prims, nil
}

// accessorData 返回访问器数据的起始切片与元素步长
func accessorData(doc *gltf.Document, acc *gltf.Accessor, elemSize int) ([]byte, int, error) {
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("%w: accessor without buffer view", ErrUnsupportedAccessor)
	}
	view := doc.BufferViews[int(*acc.BufferView)]
	buff := doc.Buffers[int(view.Buffer)]

	stride := int(view.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	start := int(view.ByteOffset) + int(acc.ByteOffset)
	end := start + stride*(int(acc.Count)-1) + elemSize
	if acc.Count == 0 {
		end = start
	}
	if end > int(view.ByteOffset+view.ByteLength) || end > len(buff.Data) {
		return nil, 0, fmt.Errorf("%w: accessor exceeds buffer", ErrUnsupportedAccessor)
	}
	return buff.Data[start:end], stride, nil
}

func readPositions(doc *gltf.Document, acc *gltf.Accessor) ([]vec3.T, error) {
	if acc.Type != gltf.AccessorVec3 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%w: position must be float vec3", ErrUnsupportedAccessor)
	}
	data, stride, err := accessorData(doc, acc, 12)
	if err != nil {
		return nil, err
	}
	positions := make([]vec3.T, acc.Count)
	for i := range positions {
		bf := bytes.NewReader(data[i*stride : i*stride+12])
		if err := binary.Read(bf, binary.LittleEndian, &positions[i]); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func readIndices(doc *gltf.Document, acc *gltf.Accessor) ([]uint32, error) {
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("%w: indices must be scalar", ErrUnsupportedAccessor)
	}
	bytePerIndices := 0
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		bytePerIndices = 1
	case gltf.ComponentUshort:
		bytePerIndices = 2
	case gltf.ComponentUint:
		bytePerIndices = 4
	default:
		return nil, fmt.Errorf("%w: index component type %v", ErrUnsupportedAccessor, acc.ComponentType)
	}
	data, stride, err := accessorData(doc, acc, bytePerIndices)
	if err != nil {
		return nil, err
	}
	indices := make([]uint32, acc.Count)
	for i := range indices {
		b := data[i*stride:]
		switch bytePerIndices {
		case 1:
			indices[i] = uint32(b[0])
		case 2:
			indices[i] = uint32(binary.LittleEndian.Uint16(b))
		default:
			indices[i] = binary.LittleEndian.Uint32(b)
		}
	}
	return indices, nil
}
