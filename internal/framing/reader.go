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

// Package framing pulls length-prefixed BlobHeader/Blob records off a byte
// stream without buffering more of the file than one record at a time. The
// reader is a pull iterator: nothing is read ahead of what the consumer asks
// for, so back-pressure is simply the consumer not calling yield again.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/core"
	"github.com/geostream/pbfstream/internal/wire"
)

// maxHeaderLen bounds BlobHeader's length prefix. The real-world limit
// published by the OSM PBF format is 64 KiB; anything larger means the
// stream has desynchronized.
const maxHeaderLen = 64 * 1024

// BlobRecord is one length-prefixed (BlobHeader, Blob) pair as read off the
// wire, before envelope classification or decompression.
type BlobRecord struct {
	Index        int64
	Offset       int64
	Type         string
	HeaderBytes  []byte
	PayloadBytes []byte
}

// Limits gates how many records a Reader will produce before it stops
// pulling from the source and closes its sequence cleanly. A zero value
// means "no limit" for that dimension.
type Limits struct {
	MaxBlobLimit  int64
	ReadThreshold int64
}

// Reader pulls BlobRecords from src in file order.
type Reader struct {
	src    io.Reader
	limits Limits

	index     int64
	offset    int64
	bytesRead int64
}

// New constructs a Reader over src, gated by limits.
func New(src io.Reader, limits Limits) *Reader {
	return &Reader{src: src, limits: limits}
}

// BytesRead returns the number of payload+header bytes consumed from the
// source so far, for progress reporting.
func (r *Reader) BytesRead() int64 { return r.bytesRead }

// Records returns a range-over-func iterator yielding each BlobRecord in
// order. The iterator stops, without error, either at a clean end-of-file on
// a record boundary, once MaxBlobLimit records have been emitted, or once
// ReadThreshold bytes have been consumed. Any other failure is delivered as
// the iterator's error value and the sequence ends.
func (r *Reader) Records() func(yield func(BlobRecord, error) bool) {
	return func(yield func(BlobRecord, error) bool) {
		for {
			if r.limits.MaxBlobLimit > 0 && r.index >= r.limits.MaxBlobLimit {
				return
			}

			if r.limits.ReadThreshold > 0 && r.bytesRead >= r.limits.ReadThreshold {
				return
			}

			rec, err := r.readOne()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}

				slog.Error("framing: failed to read blob record", "index", r.index, "error", err)
				yield(BlobRecord{}, err)

				return
			}

			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (r *Reader) readOne() (BlobRecord, error) {
	var lenBuf [4]byte

	// A source that ends early is Truncated; any other read failure is the
	// source's own SourceIo failure.
	readKind := func(err error) errs.Kind {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.Truncated
		}

		return errs.SourceIo
	}

	n, err := io.ReadFull(r.src, lenBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return BlobRecord{}, io.EOF
		}

		return BlobRecord{}, errs.New(readKind(err), fmt.Errorf("reading header length: %w", err))
	}

	headerLen := binary.BigEndian.Uint32(lenBuf[:])
	if headerLen == 0 || headerLen > maxHeaderLen {
		return BlobRecord{}, errs.New(errs.InvalidFraming,
			fmt.Errorf("blob header length %d out of range (0, %d]", headerLen, maxHeaderLen))
	}

	headerBuf := core.NewPooledBuffer()
	defer headerBuf.Close()

	if _, err := io.CopyN(headerBuf, r.src, int64(headerLen)); err != nil {
		return BlobRecord{}, errs.New(readKind(err), fmt.Errorf("reading blob header: %w", err))
	}

	headerBytes := append([]byte(nil), headerBuf.Bytes()...)

	blobType, dataSize, err := parseBlobHeader(headerBytes)
	if err != nil {
		return BlobRecord{}, err
	}

	if dataSize < 0 || dataSize > maxHeaderLen*64 {
		return BlobRecord{}, errs.New(errs.InvalidFraming, fmt.Errorf("blob datasize %d out of range", dataSize))
	}

	payload := make([]byte, dataSize)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		return BlobRecord{}, errs.New(readKind(err), fmt.Errorf("reading blob payload: %w", err))
	}

	rec := BlobRecord{
		Index:        r.index,
		Offset:       r.offset,
		Type:         blobType,
		HeaderBytes:  headerBytes,
		PayloadBytes: payload,
	}

	advance := int64(4) + int64(headerLen) + int64(dataSize)
	r.offset += advance
	r.bytesRead += advance
	r.index++

	return rec, nil
}

// parseBlobHeader walks the BlobHeader protobuf message:
//
//	1 type       string
//	2 indexdata  bytes  (optional, unused by this decoder)
//	3 datasize   int32
func parseBlobHeader(buf []byte) (blobType string, dataSize int32, err error) {
	err = wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			blobType = string(f.Bytes())
		case 3:
			dataSize = int32(f.Int64())
		}

		return nil
	})
	if err != nil {
		return "", 0, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing blob header: %w", err))
	}

	return blobType, dataSize, nil
}
