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

package decompress

import (
	"context"
	"time"

	"github.com/destel/rill"

	"github.com/geostream/pbfstream/internal/blob"
	"github.com/geostream/pbfstream/internal/bufpool"
)

// ScalingMode selects how many concurrent workers a pooled Stage runs with.
// rill.OrderedMap fixes its concurrency for the lifetime of a call, so a
// ScalingMode is resolved once, up front, into a static worker count rather
// than grown or shrunk mid-stream off observed backlog.
type ScalingMode int

const (
	// Fixed runs exactly MinWorkers workers for the stage's lifetime.
	Fixed ScalingMode = iota
	// Conservative runs OptimalWorkers workers, a middle ground between the
	// floor and ceiling of the configured range.
	Conservative
	// Aggressive pre-warms to MaxWorkers.
	Aggressive
)

// Config controls Stage's concurrency. WorkersEnabled false makes Run behave
// like a synchronous inline decompressor, which also happens to be the
// natural ordering-preserving mode.
type Config struct {
	WorkersEnabled  bool
	MinWorkers      int
	MaxWorkers      int
	OptimalWorkers  int
	ScalingMode     ScalingMode
	SampleInterval  time.Duration
	IdleShrinkAfter time.Duration

	// OutputPool, when non-nil, supplies the []byte backing each Result's
	// Bytes instead of a fresh allocation. The caller that reads Results
	// off Stage.Run owns releasing them back to OutputPool once done.
	OutputPool *bufpool.Pool
}

// DefaultConfig returns sane inline-equivalent defaults.
func DefaultConfig() Config {
	return Config{
		WorkersEnabled:  false,
		MinWorkers:      1,
		MaxWorkers:      4,
		OptimalWorkers:  2,
		ScalingMode:     Fixed,
		SampleInterval:  50 * time.Millisecond,
		IdleShrinkAfter: time.Second,
	}
}

// concurrency resolves ScalingMode into the fixed worker count passed to
// rill.OrderedMap, clamping Min/Max/Optimal into a consistent range first.
func (cfg Config) concurrency() int {
	minWorkers := cfg.MinWorkers
	if minWorkers < 1 {
		minWorkers = 1
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}

	optimalWorkers := cfg.OptimalWorkers
	if optimalWorkers < minWorkers {
		optimalWorkers = minWorkers
	}

	if optimalWorkers > maxWorkers {
		optimalWorkers = maxWorkers
	}

	switch cfg.ScalingMode {
	case Aggressive:
		return maxWorkers
	case Conservative:
		return optimalWorkers
	default:
		return minWorkers
	}
}

// Job is one decompression unit submitted to a Stage. Err, when set by the
// caller, means envelope classification already failed upstream (in
// internal/blob.Parse); the Stage passes it straight through as that
// index's Result without attempting to decompress a zero Env, which would
// otherwise misreport as a successful empty payload.
type Job struct {
	Index int64
	Env   blob.Envelope
	Err   error
}

// Result is a Job's outcome, always eventually delivered from Stage.Run in
// ascending Index order regardless of completion order.
type Result struct {
	Index int64
	Bytes []byte
	Err   error
}

// Stage decompresses a stream of Jobs, either inline on the caller's
// goroutine or across a rill.OrderedMap-driven worker pool, and emits
// Results in strict index order.
type Stage struct {
	cfg Config
}

// New constructs a Stage. A zero Config behaves as the inline mode.
func New(cfg Config) *Stage {
	return &Stage{cfg: cfg}
}

// Run consumes jobs (which the caller must close when done) and returns a
// channel of Results closed once every job has been processed or ctx is
// done. Jobs must be submitted in ascending Index order starting at
// startIndex; Results are always emitted in that same order.
func (s *Stage) Run(ctx context.Context, startIndex int64, jobs <-chan Job) <-chan Result {
	if !s.cfg.WorkersEnabled {
		return s.runInline(ctx, jobs)
	}

	return s.runPooled(ctx, jobs)
}

func (s *Stage) runInline(ctx context.Context, jobs <-chan Job) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-jobs:
				if !ok {
					return
				}

				res := s.decompressJob(job)

				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (s *Stage) decompressJob(job Job) Result {
	if job.Err != nil {
		return Result{Index: job.Index, Err: job.Err}
	}

	bs, err := OneWithPool(job.Env, s.cfg.OutputPool)

	return Result{Index: job.Index, Bytes: bs, Err: err}
}

// runPooled hands jobs to rill.OrderedMap, which runs s.cfg.concurrency()
// decompressions concurrently while guaranteeing its output channel yields
// results in the same order its input arrived in — the same ordered-fan-out
// primitive the teacher's own Encoder.NewEncoder pipeline builds on for an
// identical "parallelize but keep input order" concern.
func (s *Stage) runPooled(ctx context.Context, jobs <-chan Job) <-chan Result {
	tries := make(chan rill.Try[Job])

	go func() {
		defer close(tries)

		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-jobs:
				if !ok {
					return
				}

				select {
				case tries <- rill.Try[Job]{Value: job}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	mapped := rill.OrderedMap(tries, s.cfg.concurrency(), func(job Job) (Result, error) {
		return s.decompressJob(job), nil
	})

	out := make(chan Result)

	go func() {
		defer close(out)

		for r := range mapped {
			select {
			case out <- r.Value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
