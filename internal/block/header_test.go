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

	"github.com/geostream/pbfstream/internal/block"
)

func TestDecodeHeader_PlanetExcerpt(t *testing.T) {
	var bbox []byte
	bbox = protowire.AppendTag(bbox, 1, protowire.VarintType)
	bbox = protowire.AppendVarint(bbox, protowire.EncodeZigZag(-511482000))
	bbox = protowire.AppendTag(bbox, 2, protowire.VarintType)
	bbox = protowire.AppendVarint(bbox, protowire.EncodeZigZag(335437000))
	bbox = protowire.AppendTag(bbox, 3, protowire.VarintType)
	bbox = protowire.AppendVarint(bbox, protowire.EncodeZigZag(51693440000))
	bbox = protowire.AppendTag(bbox, 4, protowire.VarintType)
	bbox = protowire.AppendVarint(bbox, protowire.EncodeZigZag(51285540000))

	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, bbox)
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("OsmSchema-V0.6"))
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("DenseNodes"))
	buf = protowire.AppendTag(buf, 16, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("osmium/1.14.0"))

	h, err := block.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Contains(t, h.RequiredFeatures, "OsmSchema-V0.6")
	assert.Contains(t, h.RequiredFeatures, "DenseNodes")
	assert.Equal(t, "osmium/1.14.0", h.WritingProgram)
	require.NotNil(t, h.BoundingBox)
	assert.InDelta(t, -0.511482, float64(h.BoundingBox.Left), 1e-6)
	assert.InDelta(t, 0.335437, float64(h.BoundingBox.Right), 1e-6)
}
