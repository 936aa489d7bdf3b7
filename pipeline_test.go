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

package pbfstream_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	pbfstream "github.com/geostream/pbfstream"
	"github.com/geostream/pbfstream/model"
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

func headerBlockPayload() []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("OsmSchema-V0.6"))

	return buf
}

func stringTable(entries ...string) []byte {
	var st []byte
	for _, e := range entries {
		st = protowire.AppendTag(st, 1, protowire.BytesType)
		st = protowire.AppendBytes(st, []byte(e))
	}

	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, st)

	return buf
}

func packedZigzag(vals ...int64) []byte {
	var out []byte
	for _, v := range vals {
		out = protowire.AppendVarint(out, protowire.EncodeZigZag(v))
	}

	return out
}

func primitiveBlockPayload() []byte {
	var dense []byte
	dense = protowire.AppendTag(dense, 1, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(1, 1, 1))
	dense = protowire.AppendTag(dense, 8, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(10, 0, 0))
	dense = protowire.AppendTag(dense, 9, protowire.BytesType)
	dense = protowire.AppendBytes(dense, packedZigzag(10, 0, 0))

	var group []byte
	group = protowire.AppendTag(group, 2, protowire.BytesType)
	group = protowire.AppendBytes(group, dense)

	buf := stringTable("")
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, group)

	return buf
}

func buildFixtureStream() []byte {
	var stream []byte
	stream = appendRecord(stream, "OSMHeader", rawBlob(headerBlockPayload()))
	stream = appendRecord(stream, "OSMData", rawBlob(primitiveBlockPayload()))

	return stream
}

func TestPipeline_EndToEnd(t *testing.T) {
	stream := buildFixtureStream()

	p := pbfstream.New()

	var (
		started     bool
		blobsReady  int
		nodeCount   int
		sawErrors   int
		ended       bool
	)

	sink := pbfstream.SinkFuncs{
		Start: func(pbfstream.StartEvent) { started = true },
		BlobReady: func(e pbfstream.BlobReadyEvent) {
			blobsReady++

			for _, g := range e.Block.Groups() {
				for n, err := range g.DenseNodes() {
					require.NoError(t, err)
					nodeCount++
					_ = n
				}
			}
		},
		Error: func(pbfstream.ErrorEvent) { sawErrors++ },
		End:   func(pbfstream.EndEvent) { ended = true },
	}

	err := p.Run(context.Background(), bytes.NewReader(stream), sink)
	require.NoError(t, err)

	assert.True(t, started)
	assert.True(t, ended)
	assert.Zero(t, sawErrors)
	assert.Equal(t, 1, blobsReady)
	assert.Equal(t, 3, nodeCount)

	require.NotNil(t, p.Header())
	assert.Contains(t, p.Header().RequiredFeatures, "OsmSchema-V0.6")
}

func TestPipeline_MaxBlobLimitStopsEarly(t *testing.T) {
	stream := buildFixtureStream()

	p := pbfstream.New(pbfstream.WithMaxBlobLimit(1))

	var (
		blobsReady int
		ended      bool
	)

	sink := pbfstream.SinkFuncs{
		BlobReady: func(pbfstream.BlobReadyEvent) { blobsReady++ },
		End:       func(pbfstream.EndEvent) { ended = true },
	}

	err := p.Run(context.Background(), bytes.NewReader(stream), sink)
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Zero(t, blobsReady)
	require.NotNil(t, p.Header())
}

func TestDecoder_PullLoop(t *testing.T) {
	stream := buildFixtureStream()

	d, err := pbfstream.NewDecoder(context.Background(), bytes.NewReader(stream))
	require.NoError(t, err)

	defer d.Close()

	require.NotNil(t, d.Header())

	var nodes []model.Node

	for {
		e, err := d.Decode()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		n, ok := e.(model.Node)
		require.True(t, ok)

		nodes = append(nodes, n)
	}

	require.Len(t, nodes, 3)
	assert.EqualValues(t, 1, nodes[0].ID)
	assert.EqualValues(t, 3, nodes[2].ID)
}
