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
	"github.com/geostream/pbfstream/internal/strtable"
	"github.com/geostream/pbfstream/model"
)

// resolveTags zips parallel key-sid/val-sid arrays into an ordered tag
// slice, resolving each sid through table. Wire order is preserved and
// duplicate keys are not deduplicated: both pairs survive, in the order
// they appeared on the wire.
func resolveTags(table *strtable.Table, keys, vals []int32) ([]model.Tag, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	tags := make([]model.Tag, len(keys))

	for i, k := range keys {
		key, err := table.Get(k)
		if err != nil {
			return nil, err
		}

		val, err := table.Get(vals[i])
		if err != nil {
			return nil, err
		}

		tags[i] = model.Tag{Key: string(key), Value: string(val)}
	}

	return tags, nil
}
