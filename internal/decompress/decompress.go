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

// Package decompress inflates a classified Blob envelope's payload into the
// raw bytes of a PrimitiveBlock or HeaderBlock. One() does the inflation
// itself; Stage wraps One in either an inline call or a fixed-size worker
// pool, re-sequencing pool output so callers always see blocks in file
// order.
package decompress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/blob"
	"github.com/geostream/pbfstream/internal/bufpool"
	"github.com/geostream/pbfstream/internal/core"
)

// One inflates env's payload according to its declared compression variant
// and returns the raw bytes. When env.HasDeclaredLen is set, the output
// length is checked against it and a RawSizeMismatch error is returned on
// disagreement.
func One(env blob.Envelope) ([]byte, error) {
	return OneWithPool(env, nil)
}

// OneWithPool behaves like One, but when pool is non-nil and the payload is
// compressed the returned slice is acquired from it instead of freshly
// allocated; a None payload is returned as is. Callers that pass a
// pool are responsible for releasing the returned slice back to it once
// they are done reading the decoded block; a nil pool (the default) makes
// this identical to One.
func OneWithPool(env blob.Envelope, pool *bufpool.Pool) ([]byte, error) {
	if env.Compression == blob.None {
		if env.HasDeclaredLen && int(env.DeclaredSize) != len(env.Payload) {
			return nil, errs.New(errs.RawSizeMismatch,
				fmt.Errorf("declared raw_size %d != payload length %d", env.DeclaredSize, len(env.Payload)))
		}

		return env.Payload, nil
	}

	reader, err := readerFor(env)
	if err != nil {
		return nil, err
	}

	out := core.NewPooledBuffer()
	defer out.Close()

	if env.HasDeclaredLen && int(env.DeclaredSize) > out.Cap() {
		out.Grow(int(env.DeclaredSize))
	}

	n, err := out.ReadFrom(reader)
	if err != nil {
		return nil, errs.New(errs.DecompressionFailed, fmt.Errorf("%s: %w", env.Compression, err))
	}

	if env.HasDeclaredLen && n != int64(env.DeclaredSize) {
		return nil, errs.New(errs.RawSizeMismatch,
			fmt.Errorf("declared raw_size %d but decompressed %d bytes", env.DeclaredSize, n))
	}

	if pool != nil {
		dst := pool.Acquire(out.Len())
		dst = append(dst, out.Bytes()...)

		return dst, nil
	}

	return append([]byte(nil), out.Bytes()...), nil
}

func readerFor(env blob.Envelope) (io.Reader, error) {
	switch env.Compression {
	case blob.Zlib:
		r, err := newZlibReader(bytes.NewReader(env.Payload))
		if err != nil {
			return nil, errs.New(errs.DecompressionFailed, fmt.Errorf("zlib: %w", err))
		}

		return r, nil
	case blob.Lzma:
		r, err := lzma.NewReader(bytes.NewReader(env.Payload))
		if err != nil {
			return nil, errs.New(errs.DecompressionFailed, fmt.Errorf("lzma: %w", err))
		}

		return r, nil
	case blob.Lz4:
		return lz4.NewReader(bytes.NewReader(env.Payload)), nil
	case blob.Zstd:
		r, err := zstd.NewReader(bytes.NewReader(env.Payload))
		if err != nil {
			return nil, errs.New(errs.DecompressionFailed, fmt.Errorf("zstd: %w", err))
		}

		return r, nil
	default:
		return nil, errs.New(errs.UnsupportedCompression, fmt.Errorf("variant %v", env.Compression))
	}
}
