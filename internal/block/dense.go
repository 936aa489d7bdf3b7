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

// denseColumns holds a DenseNodes submessage's still delta-encoded parallel
// arrays, plus the shared keysvals cursor state.
type denseColumns struct {
	ids      []int64
	lats     []int64
	lons     []int64
	keysvals []int32
	info     *denseInfoColumns
}

// DenseNodes returns a single-pass iterator over a KindDenseNodes group's
// nodes, reconstructing absolute ids/lats/lons from the wire's delta
// encoding and consuming the flat keysvals tag stream as it goes. It
// reports errs.DenseNodeArityMismatch if the ids/lats/lons/denseinfo arrays
// disagree in length.
func (g *Group) DenseNodes() func(yield func(model.Node, error) bool) {
	return func(yield func(model.Node, error) bool) {
		if g.err != nil {
			yield(model.Node{}, g.err)
			return
		}

		if g.denseMsg == nil {
			return
		}

		table, err := g.block.StringTable()
		if err != nil {
			yield(model.Node{}, err)
			return
		}

		cols, err := decodeDenseColumns(g.denseMsg)
		if err != nil {
			yield(model.Node{}, err)
			return
		}

		n := len(cols.ids)
		if len(cols.lats) != n || len(cols.lons) != n {
			yield(model.Node{}, errs.New(errs.DenseNodeArityMismatch,
				fmt.Errorf("dense nodes: id/lat/lon arity %d/%d/%d", n, len(cols.lats), len(cols.lons))))

			return
		}

		if cols.info != nil {
			if err := checkDenseInfoArity(cols.info, n); err != nil {
				yield(model.Node{}, err)
				return
			}
		}

		var (
			idAcc, latAcc, lonAcc int64
			kvPos                 int
			tsAcc, csAcc          int64
			uidAcc, userAcc       int32
		)

		for k := 0; k < n; k++ {
			idAcc += cols.ids[k]
			latAcc += cols.lats[k]
			lonAcc += cols.lons[k]

			tags, next, err := consumeKeysvals(table, cols.keysvals, kvPos)
			if err != nil {
				yield(model.Node{}, err)
				return
			}

			kvPos = next

			var info *model.Info

			if cols.info != nil {
				info, err = cols.info.at(k, table, g.block.DateGranularity, &tsAcc, &csAcc, &uidAcc, &userAcc)
				if err != nil {
					yield(model.Node{}, err)
					return
				}
			}

			node := model.Node{
				ID:   model.ID(idAcc),
				Tags: tags,
				Info: info,
				Lat:  model.Degrees(g.block.lat(latAcc)),
				Lon:  model.Degrees(g.block.lon(lonAcc)),
			}

			if !yield(node, nil) {
				return
			}
		}

		if len(cols.keysvals) > 0 && kvPos < len(cols.keysvals) {
			yield(model.Node{}, errs.New(errs.DenseNodeArityMismatch,
				fmt.Errorf("dense nodes: keysvals has %d trailing entries after %d nodes", len(cols.keysvals)-kvPos, n)))
		}
	}
}

// decodeDenseColumns parses a DenseNodes submessage:
//
//	1  id         packed sint64 deltas
//	5  denseinfo  DenseInfo submessage
//	8  lat        packed sint64 deltas
//	9  lon        packed sint64 deltas
//	10 keysvals   packed int32, 0-terminated per node
func decodeDenseColumns(buf []byte) (*denseColumns, error) {
	cols := &denseColumns{}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			cols.ids = v
		case 5:
			info, err := decodeDenseInfo(f.Bytes())
			if err != nil {
				return err
			}

			cols.info = info
		case 8:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			cols.lats = v
		case 9:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			cols.lons = v
		case 10:
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			cols.keysvals = v
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing dense nodes: %w", err))
	}

	return cols, nil
}

func checkDenseInfoArity(info *denseInfoColumns, n int) error {
	for _, col := range []struct {
		name string
		len  int
	}{
		{"version", len(info.version)},
		{"timestamp", len(info.timestamp)},
		{"changeset", len(info.changeset)},
		{"uid", len(info.uid)},
		{"user_sid", len(info.userSid)},
		{"visible", len(info.visible)},
	} {
		if col.len != 0 && col.len != n {
			return errs.New(errs.DenseNodeArityMismatch,
				fmt.Errorf("dense info column %q has length %d, want %d", col.name, col.len, n))
		}
	}

	return nil
}

// consumeKeysvals reads (key-sid, val-sid) pairs from pos until a 0
// terminator or the end of kv, building one node's tag slice in wire order.
// Duplicate keys are not deduplicated. If kv is empty, every node's tag
// slice is nil, matching the empty-keysvals boundary case.
func consumeKeysvals(table *strtable.Table, kv []int32, pos int) ([]model.Tag, int, error) {
	if len(kv) == 0 {
		return nil, pos, nil
	}

	var tags []model.Tag

	for pos < len(kv) {
		k := kv[pos]
		pos++

		if k == 0 {
			return tags, pos, nil
		}

		if pos >= len(kv) {
			return nil, pos, errs.New(errs.DenseNodeArityMismatch,
				fmt.Errorf("dense nodes: keysvals ends mid-pair at %d", pos))
		}

		v := kv[pos]
		pos++

		keyBytes, err := table.Get(k)
		if err != nil {
			return nil, pos, err
		}

		valBytes, err := table.Get(v)
		if err != nil {
			return nil, pos, err
		}

		tags = append(tags, model.Tag{Key: string(keyBytes), Value: string(valBytes)})
	}

	return tags, pos, nil
}
