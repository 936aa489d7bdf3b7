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

// Package errs defines the typed error taxonomy shared by every stage of the
// pbfstream decoding pipeline.
package errs

import "fmt"

// Kind classifies a decoding failure so callers can decide whether to treat
// it as fatal (stream-ending), per-block, or per-entity.
type Kind int

const (
	// SourceIo means the upstream byte source failed. Fatal.
	SourceIo Kind = iota
	// Truncated means EOF occurred mid-record. Fatal.
	Truncated
	// InvalidFraming means a header length or datasize was out of range. Fatal.
	InvalidFraming
	// MalformedBlob means a Blob envelope had no payload field. Per-block.
	MalformedBlob
	// UnsupportedCompression means the blob used a variant this build can't decode. Per-block.
	UnsupportedCompression
	// DecompressionFailed means the codec itself reported an error. Per-block.
	DecompressionFailed
	// RawSizeMismatch means declared and actual decompressed lengths disagree. Per-block.
	RawSizeMismatch
	// ProtobufMalformed means a varint/tag/length was invalid wire data.
	ProtobufMalformed
	// StringIndexOutOfRange means a tag/role/user sid exceeded the string table. Per-entity.
	StringIndexOutOfRange
	// DenseNodeArityMismatch means DenseNodes' parallel arrays disagreed in length. Per-block.
	DenseNodeArityMismatch
	// Cancelled means the caller tore the pipeline down; not a failure.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case SourceIo:
		return "source_io"
	case Truncated:
		return "truncated"
	case InvalidFraming:
		return "invalid_framing"
	case MalformedBlob:
		return "malformed_blob"
	case UnsupportedCompression:
		return "unsupported_compression"
	case DecompressionFailed:
		return "decompression_failed"
	case RawSizeMismatch:
		return "raw_size_mismatch"
	case ProtobufMalformed:
		return "protobuf_malformed"
	case StringIndexOutOfRange:
		return "string_index_out_of_range"
	case DenseNodeArityMismatch:
		return "dense_node_arity_mismatch"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and, for per-block failures,
// the index of the offending blob.
type Error struct {
	Kind  Kind
	Index *int64
	Err   error
}

// New constructs an Error with no associated blob index.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithIndex constructs an Error tagged with the blob index that produced it.
func WithIndex(kind Kind, index int64, err error) *Error {
	return &Error{Kind: kind, Index: &index, Err: err}
}

func (e *Error) Error() string {
	if e.Index != nil {
		return fmt.Sprintf("%s (blob %d): %v", e.Kind, *e.Index, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether errors of this kind terminate the pipeline outright,
// as opposed to being reported per-block/per-entity and skipped.
func (k Kind) Fatal() bool {
	switch k {
	case SourceIo, Truncated, InvalidFraming, Cancelled:
		return true
	default:
		return false
	}
}
