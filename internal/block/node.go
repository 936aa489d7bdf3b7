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

package block

import (
	"fmt"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/strtable"
	"github.com/geostream/pbfstream/internal/wire"
	"github.com/geostream/pbfstream/model"
)

// Nodes returns a single-pass iterator over a KindNodes group's plain Node
// messages, in wire order. Calling it on a group of any other Kind yields
// nothing.
func (g *Group) Nodes() func(yield func(model.Node, error) bool) {
	return func(yield func(model.Node, error) bool) {
		if g.err != nil {
			yield(model.Node{}, g.err)
			return
		}

		table, err := g.block.StringTable()
		if err != nil {
			yield(model.Node{}, err)
			return
		}

		for _, msg := range g.nodeMsgs {
			n, err := decodeNode(msg, g.block, table)
			if !yield(n, err) || err != nil {
				return
			}
		}
	}
}

// decodeNode parses one Node message:
//
//	1 id     sint64 (zigzag)
//	2 keys   packed uint32
//	3 vals   packed uint32
//	4 info   Info submessage
//	8 lat    sint64 (zigzag)
//	9 lon    sint64 (zigzag)
func decodeNode(buf []byte, blk *Block, table *strtable.Table) (model.Node, error) {
	var (
		id         int64
		keys, vals []int32
		infoBuf    []byte
		rawLat     int64
		rawLon     int64
	)

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			id = f.ZigZag()
		case 2:
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			keys = v
		case 3:
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			vals = v
		case 4:
			infoBuf = f.Bytes()
		case 8:
			rawLat = f.ZigZag()
		case 9:
			rawLon = f.ZigZag()
		}

		return nil
	})
	if err != nil {
		return model.Node{}, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing node: %w", err))
	}

	if len(keys) != len(vals) {
		return model.Node{}, errs.New(errs.ProtobufMalformed,
			fmt.Errorf("node %d: keys/vals length mismatch %d != %d", id, len(keys), len(vals)))
	}

	tags, err := resolveTags(table, keys, vals)
	if err != nil {
		return model.Node{}, err
	}

	var info *model.Info

	if infoBuf != nil {
		info, err = decodeInfo(infoBuf, table, blk.DateGranularity)
		if err != nil {
			return model.Node{}, err
		}
	}

	return model.Node{
		ID:   model.ID(id),
		Tags: tags,
		Info: info,
		Lat:  model.Degrees(blk.lat(rawLat)),
		Lon:  model.Degrees(blk.lon(rawLon)),
	}, nil
}
