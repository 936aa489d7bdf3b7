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

// Ways returns a single-pass iterator over a KindWays group's Way messages.
func (g *Group) Ways() func(yield func(model.Way, error) bool) {
	return func(yield func(model.Way, error) bool) {
		if g.err != nil {
			yield(model.Way{}, g.err)
			return
		}

		table, err := g.block.StringTable()
		if err != nil {
			yield(model.Way{}, err)
			return
		}

		for _, msg := range g.wayMsgs {
			w, err := decodeWay(msg, g.block, table)
			if !yield(w, err) || err != nil {
				return
			}
		}
	}
}

// decodeWay parses one Way message:
//
//	1 id     int64
//	2 keys   packed uint32
//	3 vals   packed uint32
//	4 info   Info submessage
//	8 refs   packed sint64 deltas, reconstructed by prefix sum
func decodeWay(buf []byte, blk *Block, table *strtable.Table) (model.Way, error) {
	var (
		id         int64
		keys, vals []int32
		infoBuf    []byte
		deltas     []int64
	)

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			id = f.Int64()
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
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			deltas = v
		}

		return nil
	})
	if err != nil {
		return model.Way{}, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing way: %w", err))
	}

	if len(keys) != len(vals) {
		return model.Way{}, errs.New(errs.ProtobufMalformed,
			fmt.Errorf("way %d: keys/vals length mismatch %d != %d", id, len(keys), len(vals)))
	}

	tags, err := resolveTags(table, keys, vals)
	if err != nil {
		return model.Way{}, err
	}

	refs := make([]model.ID, len(deltas))

	var acc int64

	for i, d := range deltas {
		acc += d
		refs[i] = model.ID(acc)
	}

	var info *model.Info

	if infoBuf != nil {
		info, err = decodeInfo(infoBuf, table, blk.DateGranularity)
		if err != nil {
			return model.Way{}, err
		}
	}

	return model.Way{ID: model.ID(id), Tags: tags, Info: info, NodeIDs: refs}, nil
}
