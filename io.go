package cluster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	ErrBadSignature = errors.New("cluster: not a cluster file")
	ErrCorruptFile  = errors.New("cluster: corrupt cluster file")
)

// ClusterFile 持久化的分簇结果
type ClusterFile struct {
	Version     uint32
	ClusterSize uint32
	CellSize    float32
	PrimCount   uint32
	Clusters    [][]uint32
}

// NewClusterFile 由分簇结果构建文件内容
func NewClusterFile(res *Result, clusterSize int) *ClusterFile {
	return &ClusterFile{
		Version:     V1,
		ClusterSize: uint32(clusterSize),
		CellSize:    res.CellSize,
		PrimCount:   uint32(res.Stats.Prims),
		Clusters:    res.Clusters,
	}
}

func toLittleByteOrder(v interface{}) []byte {
	var buf []byte
	b := bytes.NewBuffer(buf)
	e := binary.Write(b, binary.LittleEndian, v)
	if e != nil {
		return nil
	}
	return b.Bytes()
}

func writeLittleByte(wt io.Writer, v interface{}) error {
	buf := toLittleByteOrder(v)
	if buf == nil {
		return fmt.Errorf("cluster: cannot encode %T", v)
	}
	_, err := wt.Write(buf)
	return err
}

func readLittleByte(rd io.Reader, v interface{}) error {
	return binary.Read(rd, binary.LittleEndian, v)
}

func ClusterFileMarshal(wt io.Writer, cf *ClusterFile) error {
	if _, err := wt.Write([]byte(CLUSTER_SIGNATURE)); err != nil {
		return err
	}
	head := []interface{}{cf.Version, cf.ClusterSize, cf.CellSize, cf.PrimCount, uint32(len(cf.Clusters))}
	for _, v := range head {
		if err := writeLittleByte(wt, v); err != nil {
			return err
		}
	}
	for _, c := range cf.Clusters {
		if err := writeLittleByte(wt, uint32(len(c))); err != nil {
			return err
		}
		if len(c) == 0 {
			continue
		}
		if err := writeLittleByte(wt, c); err != nil {
			return err
		}
	}
	return nil
}

func ClusterFileUnMarshal(rd io.Reader) (*ClusterFile, error) {
	sig := make([]byte, len(CLUSTER_SIGNATURE))
	if _, err := io.ReadFull(rd, sig); err != nil {
		return nil, err
	}
	if string(sig) != CLUSTER_SIGNATURE {
		return nil, ErrBadSignature
	}

	cf := &ClusterFile{}
	var count uint32
	for _, v := range []interface{}{&cf.Version, &cf.ClusterSize, &cf.CellSize, &cf.PrimCount, &count} {
		if err := readLittleByte(rd, v); err != nil {
			return nil, err
		}
	}
	if cf.Version > V1 {
		return nil, fmt.Errorf("cluster: unsupported cluster file version %d", cf.Version)
	}

	// 每组至少包含一个不同的三角形, 每组不超过 ClusterSize
	if count > cf.PrimCount {
		return nil, fmt.Errorf("%w: %d clusters for %d triangles", ErrCorruptFile, count, cf.PrimCount)
	}

	cf.Clusters = make([][]uint32, count)
	for i := range cf.Clusters {
		var size uint32
		if err := readLittleByte(rd, &size); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		if size > cf.ClusterSize {
			return nil, fmt.Errorf("%w: cluster %d has %d triangles, limit %d", ErrCorruptFile, i, size, cf.ClusterSize)
		}
		cf.Clusters[i] = make([]uint32, size)
		if size == 0 {
			continue
		}
		if err := readLittleByte(rd, cf.Clusters[i]); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		for _, prim := range cf.Clusters[i] {
			if prim >= cf.PrimCount {
				return nil, fmt.Errorf("%w: cluster %d references triangle %d of %d", ErrCorruptFile, i, prim, cf.PrimCount)
			}
		}
	}
	return cf, nil
}

func ClusterFileReadFrom(path string) (*ClusterFile, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, e
	}
	defer f.Close()
	return ClusterFileUnMarshal(f)
}

func ClusterFileWriteTo(path string, cf *ClusterFile) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	f, e := os.Create(path)
	if e != nil {
		return e
	}
	if err := ClusterFileMarshal(f, cf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
