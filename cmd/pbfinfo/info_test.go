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

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendRecord(buf []byte, blobType string, payload []byte) []byte {
	var header []byte
	header = protowire.AppendTag(header, 1, protowire.BytesType)
	header = protowire.AppendBytes(header, []byte(blobType))
	header = protowire.AppendTag(header, 3, protowire.VarintType)
	header = protowire.AppendVarint(header, uint64(len(payload)))

	var lenPrefix [4]byte
	lenPrefix[0] = byte(len(header) >> 24)
	lenPrefix[1] = byte(len(header) >> 16)
	lenPrefix[2] = byte(len(header) >> 8)
	lenPrefix[3] = byte(len(header))

	buf = append(buf, lenPrefix[:]...)
	buf = append(buf, header...)
	buf = append(buf, payload...)

	return buf
}

func rawBlob(payload []byte) []byte {
	var blob []byte
	blob = protowire.AppendTag(blob, 1, protowire.BytesType)
	blob = protowire.AppendBytes(blob, payload)

	return blob
}

func fixtureStream() []byte {
	var header []byte
	header = protowire.AppendTag(header, 4, protowire.BytesType)
	header = protowire.AppendBytes(header, []byte("OsmSchema-V0.6"))

	var st []byte
	st = protowire.AppendTag(st, 1, protowire.BytesType)
	st = protowire.AppendBytes(st, nil)

	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, protowire.AppendVarint(nil, protowire.EncodeZigZag(1)))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, protowire.AppendVarint(nil, protowire.EncodeZigZag(0)))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, protowire.AppendVarint(nil, protowire.EncodeZigZag(0)))

	var group []byte
	group = protowire.AppendTag(group, 2, protowire.BytesType)
	group = protowire.AppendBytes(group, dense)

	block := st
	block = protowire.AppendTag(block, 2, protowire.BytesType)
	block = protowire.AppendBytes(block, group)

	var stream []byte
	stream = appendRecord(stream, "OSMHeader", rawBlob(header))
	stream = appendRecord(stream, "OSMData", rawBlob(block))

	return stream
}

func TestRunInfo(t *testing.T) {
	info, err := runInfo(bytes.NewReader(fixtureStream()), 0, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"OsmSchema-V0.6"}, info.RequiredFeatures)
	assert.Zero(t, info.NodeCount)
}

func TestRunInfoExtended(t *testing.T) {
	info, err := runInfo(bytes.NewReader(fixtureStream()), 0, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"OsmSchema-V0.6"}, info.RequiredFeatures)
	assert.EqualValues(t, 1, info.NodeCount)
	assert.Zero(t, info.WayCount)
	assert.Zero(t, info.RelationCount)
}
