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

// Relations returns a single-pass iterator over a KindRelations group's
// Relation messages.
func (g *Group) Relations() func(yield func(model.Relation, error) bool) {
	return func(yield func(model.Relation, error) bool) {
		if g.err != nil {
			yield(model.Relation{}, g.err)
			return
		}

		table, err := g.block.StringTable()
		if err != nil {
			yield(model.Relation{}, err)
			return
		}

		for _, msg := range g.relMsgs {
			r, err := decodeRelation(msg, g.block, table)
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// decodeRelation parses one Relation message:
//
//	1  id          int64
//	2  keys        packed uint32
//	3  vals        packed uint32
//	4  info        Info submessage
//	8  roles_sid   packed int32 (NOT zigzag)
//	9  memids      packed sint64 deltas, reconstructed by prefix sum
//	10 types       packed enum {NODE=0, WAY=1, RELATION=2}
func decodeRelation(buf []byte, blk *Block, table *strtable.Table) (model.Relation, error) {
	var (
		id          int64
		keys, vals  []int32
		infoBuf     []byte
		rolesSid    []int32
		memidDeltas []int64
		types       []int32
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
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			rolesSid = v
		case 9:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			memidDeltas = v
		case 10:
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			types = v
		}

		return nil
	})
	if err != nil {
		return model.Relation{}, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing relation: %w", err))
	}

	if len(keys) != len(vals) {
		return model.Relation{}, errs.New(errs.ProtobufMalformed,
			fmt.Errorf("relation %d: keys/vals length mismatch %d != %d", id, len(keys), len(vals)))
	}

	if len(rolesSid) != len(memidDeltas) || len(memidDeltas) != len(types) {
		return model.Relation{}, errs.New(errs.ProtobufMalformed,
			fmt.Errorf("relation %d: roles_sid/memids/types arity %d/%d/%d",
				id, len(rolesSid), len(memidDeltas), len(types)))
	}

	tags, err := resolveTags(table, keys, vals)
	if err != nil {
		return model.Relation{}, err
	}

	members := make([]model.Member, len(memidDeltas))

	var acc int64

	for i, d := range memidDeltas {
		acc += d

		role, err := table.Get(rolesSid[i])
		if err != nil {
			return model.Relation{}, err
		}

		members[i] = model.Member{
			ID:   model.ID(acc),
			Type: model.EntityType(types[i]),
			Role: string(role),
		}
	}

	var info *model.Info

	if infoBuf != nil {
		info, err = decodeInfo(infoBuf, table, blk.DateGranularity)
		if err != nil {
			return model.Relation{}, err
		}
	}

	return model.Relation{ID: model.ID(id), Tags: tags, Info: info, Members: members}, nil
}
