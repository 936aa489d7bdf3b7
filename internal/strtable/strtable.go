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

// Package strtable provides a lazy view over a PrimitiveBlock's string
// table: a repeated bytes field (field 1 of the StringTable sub-message)
// whose entries are indexed from 0, with index 0 reserved for the empty
// string by the PBF spec.
package strtable

import (
	"fmt"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/wire"
)

// Table is parsed lazily on first access (via Parse) and then memoized:
// every Get/Len call after that is an O(1) slice lookup aliasing the block's
// decompressed buffer, with no further copying.
type Table struct {
	raw [][]byte
}

// Parse walks the StringTable message's bytes, recording each repeated
// `bytes` field (field 1) as a slice aliasing buf, without copying.
func Parse(buf []byte) (*Table, error) {
	t := &Table{}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		t.raw = append(t.raw, f.Bytes())

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing string table: %w", err))
	}

	return t, nil
}

// Len returns the number of entries in the table, including the reserved
// empty string at index 0.
func (t *Table) Len() int { return len(t.raw) }

// Get returns the bytes at index i. The returned slice aliases the block's
// decompressed buffer and must be copied by the caller to outlive it.
func (t *Table) Get(i int32) ([]byte, error) {
	if i < 0 || int(i) >= len(t.raw) {
		return nil, errs.New(errs.StringIndexOutOfRange, fmt.Errorf("string index %d >= len %d", i, len(t.raw)))
	}

	return t.raw[i], nil
}

// MustGet is a convenience for call sites that have already range-checked i
// (e.g. because it came from a loop over 0..Len()), returning "" on an
// out-of-range index rather than propagating an error.
func (t *Table) MustGet(i int32) string {
	b, err := t.Get(i)
	if err != nil {
		return ""
	}

	return string(b)
}

// Iter returns a range-over-func iterator over every (index, bytes) pair in
// the table, in table order.
func (t *Table) Iter() func(yield func(int, []byte) bool) {
	return func(yield func(int, []byte) bool) {
		for i, b := range t.raw {
			if !yield(i, b) {
				return
			}
		}
	}
}
