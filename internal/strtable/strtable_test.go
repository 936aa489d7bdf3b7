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

package strtable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/strtable"
)

func buildTable(entries ...string) []byte {
	var buf []byte
	for _, e := range entries {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(e))
	}

	return buf
}

func TestTable_GetAndLen(t *testing.T) {
	buf := buildTable("", "highway", "residential")

	tbl, err := strtable.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	got, err := tbl.Get(0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "highway", string(got))

	got, err = tbl.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "residential", string(got))
}

func TestTable_OutOfRange(t *testing.T) {
	buf := buildTable("")

	tbl, err := strtable.Parse(buf)
	require.NoError(t, err)

	_, err = tbl.Get(1)
	require.Error(t, err)

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.StringIndexOutOfRange, typed.Kind)
}

func TestTable_Iter(t *testing.T) {
	buf := buildTable("", "a", "b")

	tbl, err := strtable.Parse(buf)
	require.NoError(t, err)

	var idxs []int

	var vals []string

	for i, b := range tbl.Iter() {
		idxs = append(idxs, i)
		vals = append(vals, string(b))
	}

	assert.Equal(t, []int{0, 1, 2}, idxs)
	assert.Equal(t, []string{"", "a", "b"}, vals)
}
