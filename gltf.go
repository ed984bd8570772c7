package cluster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
)

const (
	gltfVersion = "2.0"
	// glb 总长度按 4 字节对齐, 以空格填充
	glbAlignment = 4
	glbPadding   = 0x20
)

// newClusterDoc 只含一个场景和一个缓冲区的空文档
func newClusterDoc() *gltf.Document {
	scene := uint32(0)
	return &gltf.Document{
		Asset:   gltf.Asset{Version: gltfVersion},
		Scene:   &scene,
		Scenes:  []*gltf.Scene{{}},
		Buffers: []*gltf.Buffer{{}},
	}
}

// encodeGlb 将文档编码为 glb
func encodeGlb(doc *gltf.Document) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	encoder := gltf.NewEncoder(buf)
	encoder.AsBinary = true
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	if rem := buf.Len() % glbAlignment; rem != 0 {
		buf.Write(bytes.Repeat([]byte{glbPadding}, glbAlignment-rem))
	}
	return buf.Bytes(), nil
}

// ClustersToGltf 导出网格, 每个簇对应一个独立着色的图元
func ClustersToGltf(m *Mesh, clusters [][]uint32) (*gltf.Document, error) {
	doc := newClusterDoc()
	buffer := doc.Buffers[0]
	buf := bytes.NewBuffer(nil)

	// 顶点位置数据
	if err := binary.Write(buf, binary.LittleEndian, m.P); err != nil {
		return nil, err
	}
	positionsView := &gltf.BufferView{
		ByteOffset: 0,
		ByteLength: uint32(buf.Len()),
		Buffer:     0,
	}

	// 索引数据, 按簇顺序连续存放
	indicesView := &gltf.BufferView{
		ByteOffset: uint32(buf.Len()),
		Buffer:     0,
	}
	for _, c := range clusters {
		for _, prim := range c {
			if int(prim) >= len(m.Prims) {
				return nil, fmt.Errorf("%w: cluster references triangle %d of %d", ErrIndexOutOfRange, prim, len(m.Prims))
			}
			if err := binary.Write(buf, binary.LittleEndian, m.Prims[prim]); err != nil {
				return nil, err
			}
		}
	}
	indicesView.ByteLength = uint32(buf.Len()) - indicesView.ByteOffset
	doc.BufferViews = append(doc.BufferViews, positionsView, indicesView)

	buffer.ByteLength = uint32(buf.Len())
	buffer.Data = buf.Bytes()

	// 位置访问器
	bounds := m.BBox
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(m.P)),
		BufferView:    uint32Ptr(0),
		Min:           []float32{bounds.Min[0], bounds.Min[1], bounds.Min[2]},
		Max:           []float32{bounds.Max[0], bounds.Max[1], bounds.Max[2]},
	})

	mesh := &gltf.Mesh{Name: "clusters"}
	var startOffset uint32
	for i, c := range clusters {
		accessorIndex := uint32(len(doc.Accessors))
		doc.Accessors = append(doc.Accessors, &gltf.Accessor{
			ComponentType: gltf.ComponentUint,
			Type:          gltf.AccessorScalar,
			ByteOffset:    startOffset * 12,
			Count:         uint32(len(c)) * 3,
			BufferView:    uint32Ptr(1),
		})
		startOffset += uint32(len(c))

		materialID := uint32(len(doc.Materials))
		doc.Materials = append(doc.Materials, clusterMaterial(i))

		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Material:   &materialID,
			Indices:    uint32Ptr(accessorIndex),
			Mode:       gltf.PrimitiveTriangles,
			Attributes: gltf.Attribute{"POSITION": 0},
			Extras:     map[string]interface{}{"cluster": i, "triangles": len(c)},
		})
	}

	doc.Meshes = append(doc.Meshes, mesh)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "clusters", Mesh: uint32Ptr(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// clusterMaterial 以黄金角分布色相, 相邻簇颜色差异明显
func clusterMaterial(i int) *gltf.Material {
	h := math.Mod(float64(i)*0.618033988749895, 1)
	r, g, b := hsvToRGB(h, 0.65, 0.95)
	metallic := float32(0)
	roughness := float32(1)
	return &gltf.Material{
		Name: fmt.Sprintf("cluster_%d", i),
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{r, g, b, 1},
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}
}

func hsvToRGB(h, s, v float64) (float32, float32, float32) {
	h6 := h * 6
	sector := int(h6) % 6
	f := h6 - math.Floor(h6)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	var r, g, b float64
	switch sector {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return float32(r), float32(g), float32(b)
}

// WriteClustersGlb 将簇视图写为 glb 文件
func WriteClustersGlb(path string, m *Mesh, clusters [][]uint32) error {
	doc, err := ClustersToGltf(m, clusters)
	if err != nil {
		return err
	}
	bt, err := encodeGlb(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, bt, 0o644)
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}
