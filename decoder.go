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
	"context"
	"errors"
	"io"

	"github.com/destel/rill"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/model"
)

const decoderPairBacklog = 64

// Decoder is a pull-style convenience wrapper around Pipeline, for callers
// who would rather call Decode in a loop than implement Sink. It is built
// on top of Pipeline the same way the teacher's Decoder is built on top of
// its own read/decode/coalesce goroutines: a background goroutine drives
// the event-based coordinator and funnels its entities, each wrapped the
// same rill.Try[T]{Value, Error} way the teacher's own batch decoder
// reports per-entity failures, into a channel.
type Decoder struct {
	header *model.Header

	ctx    context.Context
	pairs  chan rill.Try[model.Entity]
	cancel context.CancelFunc
	runErr error
}

// NewDecoder constructs a Decoder reading from source, configured by opts.
// It blocks until the OSM header blob has been read and decoded, the same
// contract the teacher's NewDecoder offers by populating d.Header before
// returning.
func NewDecoder(ctx context.Context, source io.Reader, opts ...Option) (*Decoder, error) {
	ctx, cancel := context.WithCancel(ctx)

	p := New(opts...)
	d := &Decoder{ctx: ctx, pairs: make(chan rill.Try[model.Entity], decoderPairBacklog), cancel: cancel}

	headerReady := make(chan struct{})

	p.onHeader = func(h *model.Header) {
		d.header = h
		close(headerReady)
	}

	runDone := make(chan error, 1)

	go func() {
		err := p.Run(ctx, source, d.sink())
		d.runErr = err
		runDone <- err
		close(d.pairs)
	}()

	select {
	case <-headerReady:
		return d, nil
	case err := <-runDone:
		cancel()

		if err != nil {
			return nil, err
		}

		return nil, errors.New("pbfstream: stream ended before an OSM header blob was seen")
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// Header returns the decoded OSM header. Always non-nil once NewDecoder has
// returned successfully.
func (d *Decoder) Header() *model.Header { return d.header }

// Decode returns the next entity (a model.Node, model.Way, or
// model.Relation) in file order, or io.EOF once the stream is exhausted. A
// non-nil, non-EOF error reports a single failed entity or block; the
// caller may call Decode again to continue past it. Once the pipeline has
// stopped on a fatal error (cancellation included), every later call
// returns that error instead of io.EOF.
func (d *Decoder) Decode() (model.Entity, error) {
	t, ok := <-d.pairs
	if !ok {
		if d.runErr != nil {
			return nil, d.runErr
		}

		return nil, io.EOF
	}

	return t.Value, t.Error
}

// Close cancels the background pipeline. It does not wait for the
// background goroutine to exit. Decode keeps returning buffered entities
// until that goroutine is done; after Close its final result is the
// pipeline's Cancelled error rather than io.EOF, unless the stream had
// already ended.
func (d *Decoder) Close() error {
	d.cancel()
	return nil
}

// send delivers t to d.pairs, reporting false instead of blocking forever
// if the Decoder has been cancelled out from under a slow consumer.
func (d *Decoder) send(t rill.Try[model.Entity]) bool {
	select {
	case d.pairs <- t:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// sink adapts Pipeline's event interface into rill.Try values on d.pairs.
func (d *Decoder) sink() Sink {
	return SinkFuncs{
		BlobReady: func(e BlobReadyEvent) {
			for _, g := range e.Block.Groups() {
				if !d.drainGroup(g) {
					return
				}
			}
		},
		Error: func(e ErrorEvent) {
			var idx int64
			if e.Index != nil {
				idx = *e.Index
			}

			d.send(rill.Try[model.Entity]{Error: errs.WithIndex(e.Kind, idx, errors.New(e.Message))})
		},
	}
}

func (d *Decoder) drainGroup(g Group) bool {
	switch g.Kind() {
	case GroupNodes:
		for n, err := range g.Nodes() {
			if !d.send(rill.Try[model.Entity]{Value: n, Error: err}) {
				return false
			}

			if err != nil {
				return true
			}
		}
	case GroupDenseNodes:
		for n, err := range g.DenseNodes() {
			if !d.send(rill.Try[model.Entity]{Value: n, Error: err}) {
				return false
			}

			if err != nil {
				return true
			}
		}
	case GroupWays:
		for w, err := range g.Ways() {
			if !d.send(rill.Try[model.Entity]{Value: w, Error: err}) {
				return false
			}

			if err != nil {
				return true
			}
		}
	case GroupRelations:
		for r, err := range g.Relations() {
			if !d.send(rill.Try[model.Entity]{Value: r, Error: err}) {
				return false
			}

			if err != nil {
				return true
			}
		}
	case GroupEmpty:
	}

	return true
}
