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

package bufpool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geostream/pbfstream/internal/bufpool"
)

func TestAcquire_RoundsUpToBucket(t *testing.T) {
	p := bufpool.New(0)

	buf := p.Acquire(100)
	assert.GreaterOrEqual(t, cap(buf), 100)
	assert.Len(t, buf, 0)
}

func TestAcquireRelease_ReusesBuffer(t *testing.T) {
	p := bufpool.New(0)

	buf := p.Acquire(4096)
	buf = append(buf, []byte("hello world")...)

	p.Release(buf)

	reused := p.Acquire(4096)
	require.Equal(t, cap(buf), cap(reused))
	assert.Len(t, reused, 0)

	// The used prefix must be zeroed so no prior blob's bytes leak.
	full := reused[:cap(reused)]
	for _, b := range full[:len("hello world")] {
		assert.Zero(t, b)
	}
}

func TestSweep_DropsOldEntries(t *testing.T) {
	p := bufpool.New(time.Millisecond)

	buf := p.Acquire(2048)
	p.Release(buf)

	time.Sleep(5 * time.Millisecond)
	p.Sweep()

	// The swept buffer is gone, so Acquire hands out a fresh backing array.
	reused := p.Acquire(2048)
	assert.NotSame(t, &buf[:1][0], &reused[:1][0])
}

func TestRelease_BelowMinBucketDiscarded(t *testing.T) {
	p := bufpool.New(0)

	tiny := make([]byte, 0, 8)
	p.Release(tiny)

	buf := p.Acquire(8)
	assert.GreaterOrEqual(t, cap(buf), 1<<10)
}

func TestAbsenceDoesNotAffectCorrectness(t *testing.T) {
	// A nil pool is never dereferenced by internal/decompress when
	// buffer_pool_enabled is off; this test simply documents that a plain
	// append-built slice, the no-pool path, holds its bytes without any
	// Acquire or Release.
	var data []byte
	data = append(data, []byte("abc")...)
	assert.Equal(t, "abc", string(data))
}
