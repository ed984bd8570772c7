package cluster

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterFileMarshal(t *testing.T) {
	cf := &ClusterFile{
		Version:     V1,
		ClusterSize: 4,
		CellSize:    2.5,
		PrimCount:   9,
		Clusters:    [][]uint32{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 8, 8, 8}, {}},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, ClusterFileMarshal(buf, cf))
	// 签名 + 5 个头部字段 + 每簇长度 + 索引
	assert.Equal(t, 4+5*4+4*4+12*4, buf.Len())
	assert.Equal(t, CLUSTER_SIGNATURE, string(buf.Bytes()[:4]))

	got, err := ClusterFileUnMarshal(buf)
	require.NoError(t, err)
	if diff := cmp.Diff(cf, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClusterFileUnMarshalErrors(t *testing.T) {
	_, err := ClusterFileUnMarshal(bytes.NewReader([]byte("mst\x00rest")))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = ClusterFileUnMarshal(bytes.NewReader([]byte("fw")))
	assert.Error(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, ClusterFileMarshal(buf, &ClusterFile{Version: V1, ClusterSize: 3, PrimCount: 4, Clusters: [][]uint32{{1, 2, 3}}}))
	truncated := buf.Bytes()[:buf.Len()-4]
	_, err = ClusterFileUnMarshal(bytes.NewReader(truncated))
	assert.Error(t, err)

	buf.Reset()
	require.NoError(t, ClusterFileMarshal(buf, &ClusterFile{Version: V1 + 1}))
	_, err = ClusterFileUnMarshal(buf)
	assert.Error(t, err)
}

func TestClusterFileReadWrite(t *testing.T) {
	m := gridMesh(t, 6, 1)
	res := Generate(m, Options{ClusterSize: 16})
	cf := NewClusterFile(res, 16)
	assert.Equal(t, uint32(72), cf.PrimCount)
	assert.Equal(t, uint32(16), cf.ClusterSize)

	path := filepath.Join(t.TempDir(), "sub", "grid"+CLUSTEREXT)
	require.NoError(t, ClusterFileWriteTo(path, cf))

	got, err := ClusterFileReadFrom(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cf, got); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = ClusterFileReadFrom(filepath.Join(t.TempDir(), "missing.mcl"))
	assert.Error(t, err)
}

// headerBytes 构造只有头部的文件, 簇数量与内容由调用方追加
func headerBytes(t *testing.T, clusterSize, primCount, count uint32) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString(CLUSTER_SIGNATURE)
	for _, v := range []interface{}{V1, clusterSize, float32(1), primCount, count} {
		require.NoError(t, writeLittleByte(buf, v))
	}
	return buf
}

func TestClusterFileUnMarshalLimits(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *bytes.Buffer
	}{
		{"cluster count beyond triangles", func(t *testing.T) *bytes.Buffer {
			return headerBytes(t, 128, 10, 0xFFFFFFFF)
		}},
		{"cluster larger than cluster size", func(t *testing.T) *bytes.Buffer {
			buf := headerBytes(t, 4, 10, 1)
			require.NoError(t, writeLittleByte(buf, uint32(0xFFFFFFFF)))
			return buf
		}},
		{"triangle out of range", func(t *testing.T) *bytes.Buffer {
			buf := headerBytes(t, 4, 10, 1)
			require.NoError(t, writeLittleByte(buf, uint32(2)))
			require.NoError(t, writeLittleByte(buf, []uint32{3, 10}))
			return buf
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClusterFileUnMarshal(tt.build(t))
			assert.ErrorIs(t, err, ErrCorruptFile)
		})
	}

	buf := headerBytes(t, 4, 10, 1)
	require.NoError(t, writeLittleByte(buf, uint32(2)))
	require.NoError(t, writeLittleByte(buf, []uint32{3, 9}))
	cf, err := ClusterFileUnMarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, [][]uint32{{3, 9}}, cf.Clusters)
}
