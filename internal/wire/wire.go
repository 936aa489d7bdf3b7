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

// Package wire walks raw protobuf bytes field by field without requiring
// generated message types. The OSM PBF messages are stable and small enough
// that a hand-rolled walker over google.golang.org/protobuf/encoding/protowire
// is simpler and faster than compiling .proto sources, and it lets every
// higher layer stay lazy: a field is only decoded when a caller asks for it.
package wire

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// Errors returned by the primitives below. Callers at the blob/framing level
// wrap these into errs.Error with the appropriate Kind; this package stays
// independent of that taxonomy so it can be reused without the rest of the
// decoder.
var (
	ErrTruncated       = errors.New("wire: buffer ends mid-field")
	ErrVarintTooLong   = errors.New("wire: varint exceeds 10 bytes")
	ErrUnknownWireType = errors.New("wire: unrecognized wire type")
)

// WireType is the protobuf wire type carried by a field tag.
type WireType = protowire.Type

// Wire type constants, re-exported so callers never need to import protowire
// directly.
const (
	VarintType     = protowire.VarintType
	Fixed32Type    = protowire.Fixed32Type
	Fixed64Type    = protowire.Fixed64Type
	BytesType      = protowire.BytesType
	StartGroupType = protowire.StartGroupType
	EndGroupType   = protowire.EndGroupType
)

// Field is one decoded (number, wire type, raw content) triple. Bytes
// returns a sub-slice of the buffer it was read from: callers must copy it
// out if they need it to outlive the buffer.
type Field struct {
	Num  int32
	Type WireType
	buf  []byte
	pos  int
}

// ReadUvarint reads an unsigned varint starting at buf[pos]. It returns the
// decoded value and the new position. It does not itself distinguish a
// too-long encoding from a truncated one; callers that need ErrVarintTooLong
// use ReadUvarintBounded instead.
func ReadUvarint(buf []byte, pos int) (uint64, int, error) {
	if pos < 0 || pos > len(buf) {
		return 0, pos, ErrTruncated
	}

	v, n := protowire.ConsumeVarint(buf[pos:])
	if n < 0 {
		return 0, pos, ErrTruncated
	}

	return v, pos + n, nil
}

// ReadUvarintBounded is like ReadUvarint but additionally reports
// ErrVarintTooLong when the encoding uses more than the 10 bytes a uint64
// can ever require.
func ReadUvarintBounded(buf []byte, pos int) (uint64, int, error) {
	if pos < 0 || pos > len(buf) {
		return 0, pos, ErrTruncated
	}

	end := pos + 10
	if end > len(buf) {
		end = len(buf)
	}

	scan := buf[pos:end]
	for i, b := range scan {
		if b < 0x80 {
			v, n := protowire.ConsumeVarint(buf[pos : pos+i+1])
			if n < 0 {
				return 0, pos, ErrTruncated
			}

			return v, pos + n, nil
		}
	}

	if end-pos >= 10 {
		return 0, pos, ErrVarintTooLong
	}

	return 0, pos, ErrTruncated
}

// ZigzagDecode maps protobuf's sint64 encoding back to a signed value.
func ZigzagDecode(u uint64) int64 {
	return protowire.DecodeZigZag(u)
}

// ZigzagEncode is the inverse of ZigzagDecode, provided for tests and for any
// future write path.
func ZigzagEncode(v int64) uint64 {
	return protowire.EncodeZigZag(v)
}

// ReadTag reads a field tag (field number + wire type) at buf[pos].
func ReadTag(buf []byte, pos int) (num int32, typ WireType, newPos int, err error) {
	if pos < 0 || pos >= len(buf) {
		return 0, 0, pos, ErrTruncated
	}

	n, t, consumed := protowire.ConsumeTag(buf[pos:])
	if consumed < 0 {
		return 0, 0, pos, ErrTruncated
	}

	if t != VarintType && t != Fixed32Type && t != Fixed64Type && t != BytesType &&
		t != StartGroupType && t != EndGroupType {
		return 0, 0, pos, ErrUnknownWireType
	}

	return int32(n), t, pos + consumed, nil
}

// SkipField advances past the field value following a tag of the given wire
// type, returning the new position. Unknown field numbers are always
// skippable this way, which is how the decoder stays forward-compatible with
// future PBF extensions.
func SkipField(buf []byte, pos int, typ WireType) (int, error) {
	if pos < 0 || pos > len(buf) {
		return pos, ErrTruncated
	}

	n := protowire.ConsumeFieldValue(-1, typ, buf[pos:])
	if n < 0 {
		return pos, ErrTruncated
	}

	return pos + n, nil
}

// ReadLengthDelimited reads a length-prefixed byte slice (protobuf "bytes" or
// "string" or embedded message) at buf[pos] and returns the sub-slice plus
// the new position. The returned slice aliases buf.
func ReadLengthDelimited(buf []byte, pos int) ([]byte, int, error) {
	if pos < 0 || pos > len(buf) {
		return nil, pos, ErrTruncated
	}

	data, n := protowire.ConsumeBytes(buf[pos:])
	if n < 0 {
		return nil, pos, ErrTruncated
	}

	return data, pos + n, nil
}

// ReadFixed32 reads a little-endian 32-bit fixed value.
func ReadFixed32(buf []byte, pos int) (uint32, int, error) {
	if pos < 0 || pos > len(buf) {
		return 0, pos, ErrTruncated
	}

	v, n := protowire.ConsumeFixed32(buf[pos:])
	if n < 0 {
		return 0, pos, ErrTruncated
	}

	return v, pos + n, nil
}

// ReadFixed64 reads a little-endian 64-bit fixed value.
func ReadFixed64(buf []byte, pos int) (uint64, int, error) {
	if pos < 0 || pos > len(buf) {
		return 0, pos, ErrTruncated
	}

	v, n := protowire.ConsumeFixed64(buf[pos:])
	if n < 0 {
		return 0, pos, ErrTruncated
	}

	return v, pos + n, nil
}

// ForEachField walks every top-level field of buf in wire order, invoking fn
// with each decoded Field. fn returning a non-nil error stops the walk early
// and that error is returned from ForEachField.
func ForEachField(buf []byte, fn func(Field) error) error {
	pos := 0
	for pos < len(buf) {
		num, typ, next, err := ReadTag(buf, pos)
		if err != nil {
			return err
		}

		pos = next

		switch typ {
		case VarintType:
			_, next, err := ReadUvarintBounded(buf, pos)
			if err != nil {
				return err
			}

			if err := fn(Field{Num: num, Type: typ, buf: buf, pos: pos}); err != nil {
				return err
			}

			pos = next
		case Fixed64Type:
			if err := fn(Field{Num: num, Type: typ, buf: buf, pos: pos}); err != nil {
				return err
			}

			pos += 8
		case BytesType:
			_, next, err := ReadLengthDelimited(buf, pos)
			if err != nil {
				return err
			}

			if err := fn(Field{Num: num, Type: typ, buf: buf, pos: pos}); err != nil {
				return err
			}

			pos = next
		case Fixed32Type:
			if err := fn(Field{Num: num, Type: typ, buf: buf, pos: pos}); err != nil {
				return err
			}

			pos += 4
		default:
			next, err := SkipField(buf, pos, typ)
			if err != nil {
				return err
			}

			pos = next
		}
	}

	return nil
}

// Uint64 interprets the field as a varint and returns its raw unsigned
// value. Valid only for VarintType fields.
func (f Field) Uint64() uint64 {
	v, _, _ := ReadUvarintBounded(f.buf, f.pos)
	return v
}

// Int64 interprets the field as a plain (non-zigzag) varint cast to int64.
func (f Field) Int64() int64 {
	return int64(f.Uint64())
}

// ZigZag interprets the field as a zigzag-encoded sint64.
func (f Field) ZigZag() int64 {
	return ZigzagDecode(f.Uint64())
}

// Bytes returns the content of a length-delimited field. Valid only for
// BytesType fields; the slice aliases the original buffer.
func (f Field) Bytes() []byte {
	data, _, _ := ReadLengthDelimited(f.buf, f.pos)
	return data
}

// Fixed64 interprets the field as a raw little-endian 64-bit value.
func (f Field) Fixed64() uint64 {
	v, _, _ := ReadFixed64(f.buf, f.pos)
	return v
}

// Fixed32 interprets the field as a raw little-endian 32-bit value.
func (f Field) Fixed32() uint32 {
	v, _, _ := ReadFixed32(f.buf, f.pos)
	return v
}

// PackedVarints decodes a length-delimited field as a back-to-back run of
// plain varints, e.g. Way.refs before zigzag decoding is applied by the
// caller.
func PackedVarints(data []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(data)/2)

	pos := 0
	for pos < len(data) {
		v, next, err := ReadUvarintBounded(data, pos)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
		pos = next
	}

	return out, nil
}

// PackedZigzag decodes a length-delimited field as a run of zigzag-encoded
// sint64 values.
func PackedZigzag(data []byte) ([]int64, error) {
	raw, err := PackedVarints(data)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = ZigzagDecode(v)
	}

	return out, nil
}

// PackedInt32 decodes a length-delimited field as a run of plain (non-zigzag)
// varints narrowed to int32, used for Relation.types and Relation.roles_sid.
func PackedInt32(data []byte) ([]int32, error) {
	raw, err := PackedVarints(data)
	if err != nil {
		return nil, err
	}

	out := make([]int32, len(raw))
	for i, v := range raw {
		out[i] = int32(v)
	}

	return out, nil
}

// DecodeTag is a convenience wrapper exposing protowire's own tag codec for
// callers that already have a raw tag word (used by tests asserting against
// the wire format directly).
func DecodeTag(tag uint64) (int32, WireType) {
	return int32(protowire.Number(tag >> 3)), protowire.Type(tag & 0x7)
}
