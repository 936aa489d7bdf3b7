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
	"github.com/geostream/pbfstream/internal/strtable"
	"github.com/geostream/pbfstream/internal/wire"
	"github.com/geostream/pbfstream/model"
)

// decodeInfo parses an Info submessage (Node/Way/Relation field 4):
//
//	1 version     int32, default -1
//	2 timestamp   int64 (x date_granularity = epoch milliseconds)
//	3 changeset   int64
//	4 uid         int32
//	5 user_sid    uint32 (string table index)
//	6 visible     bool, default true
func decodeInfo(buf []byte, table *strtable.Table, dateGranularity int32) (*model.Info, error) {
	info := &model.Info{Version: -1, Visible: true}

	var (
		haveTimestamp bool
		rawTimestamp  int64
		userSid       int32
	)

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			info.Version = int32(f.Int64())
		case 2:
			rawTimestamp = f.Int64()
			haveTimestamp = true
		case 3:
			info.Changeset = f.Int64()
		case 4:
			info.UID = model.UID(int32(f.Int64()))
		case 5:
			userSid = int32(f.Int64())
		case 6:
			info.Visible = f.Uint64() != 0
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing info: %w", err))
	}

	if haveTimestamp {
		info.Timestamp = time.UnixMilli(rawTimestamp * int64(dateGranularity)).UTC()
	}

	if userSid != 0 && table != nil {
		user, err := table.Get(userSid)
		if err != nil {
			return nil, err
		}

		info.User = string(user)
	}

	return info, nil
}

// denseInfoColumns holds the parallel, still delta-encoded arrays of a
// DenseInfo submessage (DenseNodes field 5).
type denseInfoColumns struct {
	version   []int32
	timestamp []int64
	changeset []int64
	uid       []int32
	userSid   []int32
	visible   []bool
}

func decodeDenseInfo(buf []byte) (*denseInfoColumns, error) {
	cols := &denseInfoColumns{}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			v, err := wire.PackedInt32(f.Bytes())
			if err != nil {
				return err
			}

			cols.version = v
		case 2:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			cols.timestamp = v
		case 3:
			v, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			cols.changeset = v
		case 4:
			raw, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			v := make([]int32, len(raw))
			for i, x := range raw {
				v[i] = int32(x)
			}

			cols.uid = v
		case 5:
			raw, err := wire.PackedZigzag(f.Bytes())
			if err != nil {
				return err
			}

			v := make([]int32, len(raw))
			for i, x := range raw {
				v[i] = int32(x)
			}

			cols.userSid = v
		case 6:
			raw, err := wire.PackedVarints(f.Bytes())
			if err != nil {
				return err
			}

			v := make([]bool, len(raw))
			for i, x := range raw {
				v[i] = x != 0
			}

			cols.visible = v
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing dense info: %w", err))
	}

	return cols, nil
}

// at materializes the k'th entry of a DenseInfo run given running delta
// accumulators, which the caller owns and advances across calls.
func (c *denseInfoColumns) at(k int, table *strtable.Table, dateGranularity int32,
	tsAcc, csAcc *int64, uidAcc, userAcc *int32,
) (*model.Info, error) {
	info := &model.Info{Version: -1, Visible: true}

	if k < len(c.version) {
		info.Version = c.version[k]
	}

	if k < len(c.timestamp) {
		*tsAcc += c.timestamp[k]
		info.Timestamp = time.UnixMilli(*tsAcc * int64(dateGranularity)).UTC()
	}

	if k < len(c.changeset) {
		*csAcc += c.changeset[k]
		info.Changeset = *csAcc
	}

	if k < len(c.uid) {
		*uidAcc += c.uid[k]
		info.UID = model.UID(*uidAcc)
	}

	if k < len(c.userSid) {
		*userAcc += c.userSid[k]

		if *userAcc != 0 && table != nil {
			user, err := table.Get(*userAcc)
			if err != nil {
				return nil, err
			}

			info.User = string(user)
		}
	}

	if k < len(c.visible) {
		info.Visible = c.visible[k]
	}

	return info, nil
}
