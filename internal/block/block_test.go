// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/block"
	"github.com/geostream/pbfstream/model"
)

func appendStringTable(buf []byte, entries ...string) []byte {
	var st []byte
	for _, e := range entries {
		st = protowire.AppendTag(st, 1, protowire.BytesType)
		st = protowire.AppendBytes(st, []byte(e))
	}

	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, st)

	return buf
}

func appendGroup(buf []byte, group []byte) []byte {
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, group)

	return buf
}

func packedZigzag(vals ...int64) []byte {
	var out []byte
	for _, v := range vals {
		out = protowire.AppendVarint(out, protowire.EncodeZigZag(v))
	}

	return out
}

func packedVarint(vals ...int32) []byte {
	var out []byte
	for _, v := range vals {
		out = protowire.AppendVarint(out, uint64(v))
	}

	return out
}

func TestDenseNodeReconstruction(t *testing.T) {
	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(100, 2, 3))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(450000000, 1, 0))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(-1200000000, 0, 2))

	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, protowire.AppendBytes(protowire.AppendTag(nil, 2, protowire.BytesType), dense))

	blk, err := block.Decode(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 100, blk.Granularity)

	var got []model.Node

	for _, g := range blk.Groups() {
		require.Equal(t, block.KindDenseNodes, g.Kind())

		for n, err := range g.DenseNodes() {
			require.NoError(t, err)
			got = append(got, n)
		}
	}

	require.Len(t, got, 3)
	assert.EqualValues(t, 100, got[0].ID)
	assert.EqualValues(t, 102, got[1].ID)
	assert.EqualValues(t, 105, got[2].ID)
	assert.InDelta(t, 45.0, float64(got[0].Lat), 1e-9)
	assert.InDelta(t, 45.0000001, float64(got[1].Lat), 1e-9)
	assert.InDelta(t, 45.0000001, float64(got[2].Lat), 1e-9)
	assert.InDelta(t, -120.0, float64(got[0].Lon), 1e-9)
	assert.InDelta(t, -120.0, float64(got[1].Lon), 1e-9)
	assert.InDelta(t, -119.9999998, float64(got[2].Lon), 1e-9)
}

func TestWayRefPrefixSum(t *testing.T) {
	var way []byte
	way = protowire.AppendTag(way, 1, protowire.VarintType)
	way = protowire.AppendVarint(way, 7)
	way = protowire.AppendTag(way, 8, protowire.BytesType)
	way = protowire.AppendBytes(way, packedZigzag(10, 5, -3, 1))

	var group []byte
	group = protowire.AppendTag(group, 3, protowire.BytesType)
	group = protowire.AppendBytes(group, way)

	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, group)

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got model.Way

	for _, g := range blk.Groups() {
		require.Equal(t, block.KindWays, g.Kind())

		for w, err := range g.Ways() {
			require.NoError(t, err)
			got = w
		}
	}

	refs := make([]int64, len(got.NodeIDs))
	for i, id := range got.NodeIDs {
		refs[i] = int64(id)
	}

	assert.Equal(t, []int64{10, 15, 12, 13}, refs)
}

func TestRelationMemberAlignment(t *testing.T) {
	var rel []byte
	rel = protowire.AppendTag(rel, 1, protowire.VarintType)
	rel = protowire.AppendVarint(rel, 1)
	rel = protowire.AppendTag(rel, 8, protowire.BytesType)
	rel = protowire.AppendBytes(rel, packedVarint(1, 2, 1))
	rel = protowire.AppendTag(rel, 9, protowire.BytesType)
	rel = protowire.AppendBytes(rel, packedZigzag(1000, 1, -2))
	rel = protowire.AppendTag(rel, 10, protowire.BytesType)
	rel = protowire.AppendBytes(rel, packedVarint(0, 1, 2))

	var group []byte
	group = protowire.AppendTag(group, 4, protowire.BytesType)
	group = protowire.AppendBytes(group, rel)

	var buf []byte
	buf = appendStringTable(buf, "", "outer", "inner")
	buf = appendGroup(buf, group)

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got model.Relation

	for _, g := range blk.Groups() {
		require.Equal(t, block.KindRelations, g.Kind())

		for r, err := range g.Relations() {
			require.NoError(t, err)
			got = r
		}
	}

	require.Len(t, got.Members, 3)
	assert.Equal(t, model.Member{ID: 1000, Type: model.NODE, Role: "outer"}, got.Members[0])
	assert.Equal(t, model.Member{ID: 1001, Type: model.WAY, Role: "inner"}, got.Members[1])
	assert.Equal(t, model.Member{ID: 999, Type: model.RELATION, Role: "outer"}, got.Members[2])
}

func TestStringTableSizeOneOutOfRange(t *testing.T) {
	var node []byte
	node = protowire.AppendTag(node, 1, protowire.VarintType)
	node = protowire.AppendVarint(node, protowire.EncodeZigZag(1))
	node = protowire.AppendTag(node, 2, protowire.BytesType)
	node = protowire.AppendBytes(node, packedVarint(1))
	node = protowire.AppendTag(node, 3, protowire.BytesType)
	node = protowire.AppendBytes(node, packedVarint(0))

	var group []byte
	group = protowire.AppendTag(group, 1, protowire.BytesType)
	group = protowire.AppendBytes(group, node)

	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, group)

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var sawErr error

	for _, g := range blk.Groups() {
		for _, err := range g.Nodes() {
			if err != nil {
				sawErr = err
			}
		}
	}

	require.Error(t, sawErr)

	var typed *errs.Error
	require.ErrorAs(t, sawErr, &typed)
	assert.Equal(t, errs.StringIndexOutOfRange, typed.Kind)
}

func TestDenseNodesEmptyKeysvalsNoError(t *testing.T) {
	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(1, 1))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0, 0))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0, 0))

	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, protowire.AppendBytes(protowire.AppendTag(nil, 2, protowire.BytesType), dense))

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got []model.Node

	for _, g := range blk.Groups() {
		for n, err := range g.DenseNodes() {
			require.NoError(t, err)
			got = append(got, n)
		}
	}

	require.Len(t, got, 2)
	assert.Empty(t, got[0].Tags)
	assert.Empty(t, got[1].Tags)
}

func TestNodeTagsPreserveWireOrderAndDuplicates(t *testing.T) {
	var node []byte
	node = protowire.AppendTag(node, 1, protowire.VarintType)
	node = protowire.AppendVarint(node, protowire.EncodeZigZag(1))
	node = protowire.AppendTag(node, 2, protowire.BytesType)
	node = protowire.AppendBytes(node, packedVarint(1, 2, 1))
	node = protowire.AppendTag(node, 3, protowire.BytesType)
	node = protowire.AppendBytes(node, packedVarint(2, 3, 3))

	var group []byte
	group = protowire.AppendTag(group, 1, protowire.BytesType)
	group = protowire.AppendBytes(group, node)

	var buf []byte
	buf = appendStringTable(buf, "", "highway", "residential", "name")
	buf = appendGroup(buf, group)

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got model.Node

	for _, g := range blk.Groups() {
		for n, err := range g.Nodes() {
			require.NoError(t, err)
			got = n
		}
	}

	require.Len(t, got.Tags, 3)
	assert.Equal(t, []model.Tag{
		{Key: "highway", Value: "residential"},
		{Key: "residential", Value: "name"},
		{Key: "highway", Value: "name"},
	}, got.Tags)
}

func TestDenseNodeTagsPreserveWireOrderAndDuplicates(t *testing.T) {
	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(1))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0))
	dense = protowire.AppendTag(dense, 10, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedVarint(1, 2, 1, 2, 0))

	var buf []byte
	buf = appendStringTable(buf, "", "highway", "residential")
	buf = appendGroup(buf, protowire.AppendBytes(protowire.AppendTag(nil, 2, protowire.BytesType), dense))

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got model.Node

	for _, g := range blk.Groups() {
		for n, err := range g.DenseNodes() {
			require.NoError(t, err)
			got = n
		}
	}

	require.Len(t, got.Tags, 2)
	assert.Equal(t, []model.Tag{
		{Key: "highway", Value: "residential"},
		{Key: "highway", Value: "residential"},
	}, got.Tags)
}

func TestEmptyPrimitiveGroupNoEntitiesNoError(t *testing.T) {
	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, nil)

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var count int

	for _, g := range blk.Groups() {
		assert.Equal(t, block.KindEmpty, g.Kind())

		for range g.Nodes() {
			count++
		}
	}

	assert.Zero(t, count)
}

func TestCoordinateAtOffsetZero(t *testing.T) {
	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(1))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(0))

	var buf []byte
	buf = appendStringTable(buf, "")
	buf = appendGroup(buf, protowire.AppendBytes(protowire.AppendTag(nil, 2, protowire.BytesType), dense))

	blk, err := block.Decode(buf)
	require.NoError(t, err)

	var got model.Node

	for _, g := range blk.Groups() {
		for n, err := range g.DenseNodes() {
			require.NoError(t, err)
			got = n
		}
	}

	assert.Equal(t, model.Degrees(0), got.Lat)
	assert.Equal(t, model.Degrees(0), got.Lon)
}
