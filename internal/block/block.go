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

// Package block decodes one PrimitiveBlock's top-level layout and exposes
// lazy, single-pass iterators over its plain nodes, dense nodes, ways, and
// relations. Nothing here materializes more than one PrimitiveGroup's worth
// of entities at a time, and entities are built one at a time from each
// group's parallel arrays rather than pre-expanded into a slice.
package block

import (
	"fmt"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/strtable"
	"github.com/geostream/pbfstream/internal/wire"
)

const (
	defaultGranularity     = 100
	defaultDateGranularity = 1000
)

// Block is the decoded top-level layout of a PrimitiveBlock: the raw bytes
// of its string table and of each PrimitiveGroup, plus the coordinate and
// timestamp scaling parameters. It owns a reference to buf; every iterator
// it produces yields values that alias buf until copied out by the caller.
type Block struct {
	buf []byte

	stringTableBytes []byte
	stringTable      *strtable.Table

	groupBytes [][]byte

	Granularity     int32
	DateGranularity int32
	LatOffset       int64
	LonOffset       int64
}

// Decode scans buf's top-level PrimitiveBlock fields:
//
//	1  stringtable        bytes (StringTable submessage)
//	2  primitivegroup     bytes, repeated
//	17 granularity        int32, default 100
//	18 date_granularity   int32, default 1000
//	19 lat_offset         int64, default 0
//	20 lon_offset         int64, default 0
//
// It does not parse the string table or any group's entities; those happen
// lazily the first time a caller asks for them.
func Decode(buf []byte) (*Block, error) {
	b := &Block{
		buf:             buf,
		Granularity:     defaultGranularity,
		DateGranularity: defaultDateGranularity,
	}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			b.stringTableBytes = f.Bytes()
		case 2:
			b.groupBytes = append(b.groupBytes, f.Bytes())
		case 17:
			b.Granularity = int32(f.Int64())
		case 18:
			b.DateGranularity = int32(f.Int64())
		case 19:
			b.LatOffset = f.Int64()
		case 20:
			b.LonOffset = f.Int64()
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing primitive block: %w", err))
	}

	return b, nil
}

// StringTable parses and memoizes the block's string table on first call.
func (b *Block) StringTable() (*strtable.Table, error) {
	if b.stringTable != nil {
		return b.stringTable, nil
	}

	t, err := strtable.Parse(b.stringTableBytes)
	if err != nil {
		return nil, err
	}

	b.stringTable = t

	return t, nil
}

// lat applies this block's granularity and lat_offset to a raw coordinate,
// per the PBF spec: (offset + granularity*raw) * 1e-9.
func (b *Block) lat(raw int64) float64 {
	return coordToDegrees(b.LatOffset, b.Granularity, raw)
}

func (b *Block) lon(raw int64) float64 {
	return coordToDegrees(b.LonOffset, b.Granularity, raw)
}

func coordToDegrees(offset int64, granularity int32, raw int64) float64 {
	return float64(offset+int64(granularity)*raw) * 1e-9
}

// Groups returns a range-over-func iterator over the block's PrimitiveGroup
// sequence, in wire order. Each yielded Group is scanned from its raw bytes
// lazily, at the moment it is produced, not ahead of time.
func (b *Block) Groups() func(yield func(int, *Group) bool) {
	return func(yield func(int, *Group) bool) {
		for i, gb := range b.groupBytes {
			g, err := scanGroup(b, gb)
			if err != nil {
				g = &Group{block: b, err: err}
			}

			if !yield(i, g) {
				return
			}
		}
	}
}
