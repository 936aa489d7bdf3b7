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
	"time"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/wire"
	"github.com/geostream/pbfstream/model"
)

// DecodeHeader parses an OSMHeader blob's decompressed bytes into a
// model.Header:
//
//	1 bbox                  HeaderBBox submessage
//	4 required_features     repeated string
//	5 optional_features     repeated string
//	16 writingprogram       string
//	17 source               string
//	32 osmosis_replication_timestamp         int64
//	33 osmosis_replication_sequence_number   int64
//	34 osmosis_replication_base_url          string
func DecodeHeader(buf []byte) (*model.Header, error) {
	h := &model.Header{}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			bbox, err := decodeHeaderBBox(f.Bytes())
			if err != nil {
				return err
			}

			h.BoundingBox = bbox
		case 4:
			h.RequiredFeatures = append(h.RequiredFeatures, string(f.Bytes()))
		case 5:
			h.OptionalFeatures = append(h.OptionalFeatures, string(f.Bytes()))
		case 16:
			h.WritingProgram = string(f.Bytes())
		case 17:
			h.Source = string(f.Bytes())
		case 32:
			h.OsmosisReplicationTimestamp = time.Unix(f.Int64(), 0).UTC()
		case 33:
			h.OsmosisReplicationSequenceNumber = f.Int64()
		case 34:
			h.OsmosisReplicationBaseURL = string(f.Bytes())
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing header block: %w", err))
	}

	return h, nil
}

// decodeHeaderBBox parses a HeaderBBox submessage, whose coordinates are
// stored as raw nanodegrees (int64), unlike PrimitiveBlock coordinates which
// go through granularity/offset scaling:
//
//	1 left   sint64
//	2 right  sint64
//	3 top    sint64
//	4 bottom sint64
func decodeHeaderBBox(buf []byte) (*model.BoundingBox, error) {
	bbox := &model.BoundingBox{}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		const nanodegree = 1e-9

		switch f.Num {
		case 1:
			bbox.Left = model.Degrees(float64(f.ZigZag()) * nanodegree)
		case 2:
			bbox.Right = model.Degrees(float64(f.ZigZag()) * nanodegree)
		case 3:
			bbox.Top = model.Degrees(float64(f.ZigZag()) * nanodegree)
		case 4:
			bbox.Bottom = model.Degrees(float64(f.ZigZag()) * nanodegree)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing header bbox: %w", err)
	}

	return bbox, nil
}
