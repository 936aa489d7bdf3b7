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

package pbfstream

import (
	"runtime"
	"time"

	"github.com/geostream/pbfstream/internal/decompress"
)

// ScalingMode selects how many workers the decompression worker pool runs,
// mirroring internal/decompress.ScalingMode one level up so callers never
// need to import an internal package. The count is fixed when the pool
// starts; the pool does not grow or shrink in response to backlog.
type ScalingMode = decompress.ScalingMode

// The three scaling modes the core recognizes.
const (
	ScalingFixed        = decompress.Fixed
	ScalingConservative = decompress.Conservative
	ScalingAggressive   = decompress.Aggressive
)

// DefaultHighWaterMark is the source read chunk size used when no Option
// overrides it.
const DefaultHighWaterMark = 1024 * 1024

// config holds the fully-resolved settings driving a Pipeline or Decoder.
// Unexported, the same way decoderOptions is in the teacher's
// decoder_options.go: callers only ever see it through Options.
type config struct {
	maxBlobLimit  int64
	readThreshold int64
	verbose       bool

	decompressionWorkersEnabled bool
	minWorkers                  int
	maxWorkers                  int
	optimalWorkers              int
	scalingMode                 ScalingMode

	highWaterMark int

	bufferPoolEnabled bool
	bufferPoolMaxAge  time.Duration

	watchdogInterval time.Duration
}

// defaultNCPU mirrors the teacher's DefaultNCpu: leave one core free for the
// coordinator thread itself.
func defaultNCPU() int {
	cpus := runtime.GOMAXPROCS(-1)
	if cpus <= 1 {
		return 1
	}

	return cpus - 1
}

// defaultConfig provides the out-of-the-box settings: inline decompression,
// no limits, quiet, no buffer pool.
var defaultConfig = config{
	decompressionWorkersEnabled: false,
	minWorkers:                  1,
	maxWorkers:                  max(defaultNCPU(), 1),
	optimalWorkers:              max(defaultNCPU()/2, 1),
	scalingMode:                 ScalingFixed,
	highWaterMark:               DefaultHighWaterMark,
	bufferPoolMaxAge:            30 * time.Second,
}

// Option configures how a Pipeline or Decoder is constructed, following the
// teacher's DecoderOption/decoderOptions functional-options shape.
type Option func(*config)

// WithMaxBlobLimit stops the stream cleanly after n blobs, the OSMHeader
// blob included. Zero (the default) means no limit, so no value of n ends
// the stream before its first blob.
func WithMaxBlobLimit(n int64) Option {
	return func(c *config) { c.maxBlobLimit = n }
}

// WithReadThreshold stops the stream once at least n bytes have been read
// from the source.
func WithReadThreshold(n int64) Option {
	return func(c *config) { c.readThreshold = n }
}

// WithVerbose enables per-stage slog.Debug diagnostic logging.
func WithVerbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

// WithDecompressionWorkers enables a worker pool, sized by the scaling mode,
// for the decompression stage instead of inline, single-goroutine decoding.
func WithDecompressionWorkers(enabled bool) Option {
	return func(c *config) { c.decompressionWorkersEnabled = enabled }
}

// WithWorkerPoolSize sets the decompression worker pool's min/max/optimal
// sizes. Only meaningful when WithDecompressionWorkers(true) is also set.
func WithWorkerPoolSize(minWorkers, maxWorkers, optimalWorkers int) Option {
	return func(c *config) {
		c.minWorkers = minWorkers
		c.maxWorkers = maxWorkers
		c.optimalWorkers = optimalWorkers
	}
}

// WithScalingMode selects the worker pool's size: the min workers for
// ScalingFixed, the optimal workers for ScalingConservative, the max workers
// for ScalingAggressive.
func WithScalingMode(mode ScalingMode) Option {
	return func(c *config) { c.scalingMode = mode }
}

// WithHighWaterMark sets the chunk size the framing reader requests from
// the source at a time.
func WithHighWaterMark(bytes int) Option {
	return func(c *config) { c.highWaterMark = bytes }
}

// WithBufferPool enables the C8 bucketed buffer pool for decompression
// output buffers, with buffers unused for longer than maxAge swept
// periodically. Disabled by default; absence never changes correctness.
// Each decompressed block's buffer is acquired from the pool; the pipeline
// does not release delivered buffers back to it.
func WithBufferPool(enabled bool, maxAge time.Duration) Option {
	return func(c *config) {
		c.bufferPoolEnabled = enabled

		if maxAge > 0 {
			c.bufferPoolMaxAge = maxAge
		}
	}
}

// WithWatchdog enables a soft stall detector: if no byte progress occurs
// within interval, the pipeline emits an ErrorEvent reporting a stall but
// does not stop the pipeline on its own. Zero (the default) disables it.
func WithWatchdog(interval time.Duration) Option {
	return func(c *config) { c.watchdogInterval = interval }
}

func resolveConfig(opts []Option) config {
	c := defaultConfig

	for _, opt := range opts {
		opt(&c)
	}

	return c
}
