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

// Package blob classifies a PBF Blob envelope: which compression variant it
// carries, its payload bytes, and its declared raw size. It does not
// decompress anything itself — that is internal/decompress's job — it only
// walks the envelope's protobuf fields.
package blob

import (
	"errors"
	"log/slog"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/wire"
)

var errMissingPayload = errors.New("blob: envelope has neither raw nor a compressed payload field")

// Compression enumerates the payload variants a Blob envelope may carry.
type Compression int

const (
	// None means the payload field itself is already the raw bytes.
	None Compression = iota
	Zlib
	Lzma
	Lz4
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case Lzma:
		return "lzma"
	case Lz4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Envelope is the classified content of one Blob message: which
// compression variant was used, the (still compressed, unless None) payload
// bytes aliasing the decoder's input buffer, and the declared uncompressed
// size when the encoder supplied one.
type Envelope struct {
	Compression    Compression
	Payload        []byte
	DeclaredSize   int32
	HasDeclaredLen bool
}

// Parse walks the top-level fields of a Blob protobuf message:
//
//	1 raw          bytes
//	2 raw_size     int32
//	3 zlib_data    bytes
//	4 lzma_data    bytes
//	6 lz4_data     bytes
//	7 zstd_data    bytes
//
// If more than one payload field is present — which OSMnx-family writers
// should never emit but which a malformed file technically can — the first
// one encountered wins and the rest are logged and discarded. Field 5
// (OBSOLETE_bzip2_data) is skipped like any other unrecognized field.
func Parse(buf []byte) (Envelope, error) {
	var env Envelope

	havePayload := false

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			if havePayload {
				slog.Warn("blob envelope carries more than one payload field", "field", f.Num)
				return nil
			}

			env.Compression = None
			env.Payload = f.Bytes()
			havePayload = true
		case 2:
			env.DeclaredSize = int32(f.Int64())
			env.HasDeclaredLen = true
		case 3:
			if havePayload {
				slog.Warn("blob envelope carries more than one payload field", "field", f.Num)
				return nil
			}

			env.Compression = Zlib
			env.Payload = f.Bytes()
			havePayload = true
		case 4:
			if havePayload {
				slog.Warn("blob envelope carries more than one payload field", "field", f.Num)
				return nil
			}

			env.Compression = Lzma
			env.Payload = f.Bytes()
			havePayload = true
		case 6:
			if havePayload {
				slog.Warn("blob envelope carries more than one payload field", "field", f.Num)
				return nil
			}

			env.Compression = Lz4
			env.Payload = f.Bytes()
			havePayload = true
		case 7:
			if havePayload {
				slog.Warn("blob envelope carries more than one payload field", "field", f.Num)
				return nil
			}

			env.Compression = Zstd
			env.Payload = f.Bytes()
			havePayload = true
		}

		return nil
	})
	if err != nil {
		return Envelope{}, errs.New(errs.ProtobufMalformed, err)
	}

	if !havePayload {
		return Envelope{}, errs.New(errs.MalformedBlob, errMissingPayload)
	}

	return env, nil
}
