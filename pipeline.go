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

// Package pbfstream streams and decodes OpenStreetMap PBF data: a framing
// reader pulls length-prefixed blob records off a byte source, a
// decompression stage (inline or a fixed-size worker pool) inflates
// each blob's payload, and a lazy per-block decoder turns the result into
// nodes, ways and relations without ever materializing the whole file in
// memory. Pipeline is the low-level event-driven coordinator; Decoder
// adapts it into a simple pull loop for callers who don't want to implement
// Sink.
package pbfstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/block"
	"github.com/geostream/pbfstream/internal/blob"
	"github.com/geostream/pbfstream/internal/bufpool"
	"github.com/geostream/pbfstream/internal/decompress"
	"github.com/geostream/pbfstream/internal/framing"
	"github.com/geostream/pbfstream/model"
)

const (
	osmHeaderBlobType = "OSMHeader"
	osmDataBlobType   = "OSMData"

	jobBacklog = 8
)

// Pipeline is the event-driven coordinator (C7): it owns framing,
// classification, decompression and block decoding, and serializes the
// results to a Sink strictly in blob index order regardless of how the
// decompression stage completed its work.
type Pipeline struct {
	cfg config

	header    *model.Header
	bytesRead atomic.Int64

	// onHeader, when set, is invoked once synchronously from Run right
	// after the OSMHeader blob is decoded. It exists only so Decoder (in
	// this same package) can block NewDecoder until the header is ready
	// without inventing a second public event kind for it.
	onHeader func(*model.Header)
}

// New constructs a Pipeline with the given Options applied over the default
// configuration.
func New(opts ...Option) *Pipeline {
	return &Pipeline{cfg: resolveConfig(opts)}
}

// Header returns the OSMHeader blob's decoded contents, if Run has already
// processed it. Nil before the first blob is decoded.
func (p *Pipeline) Header() *model.Header { return p.header }

// recordMeta pairs a framing.BlobRecord's identifying fields with the
// cumulative byte count after it was read, so the coordinator can emit
// ProgressEvents and distinguish OSMHeader from OSMData without re-reading
// the record.
type recordMeta struct {
	index     int64
	blobType  string
	bytesRead int64
}

// Run drives the pipeline to completion: it reads source until EOF (or
// until a configured limit or ctx cancellation), emitting events to sink in
// order, and returns the fatal error that stopped it, or nil on a clean
// end. Framing-level failures (SourceIo, Truncated, InvalidFraming) are
// fatal and returned; block-level failures are reported via sink.OnError
// and do not stop the pipeline. Entity-level failures surface through the
// delivered Block's iterators, not through sink.OnError.
func (p *Pipeline) Run(ctx context.Context, source io.Reader, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()

	descriptor, size := describeSource(source)
	sink.OnStart(StartEvent{SourceDescriptor: descriptor, SizeIfKnown: size})

	if p.cfg.watchdogInterval > 0 {
		go p.watchdog(ctx, sink)
	}

	var pool *bufpool.Pool
	if p.cfg.bufferPoolEnabled {
		pool = bufpool.New(p.cfg.bufferPoolMaxAge)

		sweepTicker := time.NewTicker(p.cfg.bufferPoolMaxAge)
		defer sweepTicker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-sweepTicker.C:
					pool.Sweep()
				}
			}
		}()
	}

	reader := framing.New(bufio.NewReaderSize(source, p.cfg.highWaterMark), framing.Limits{
		MaxBlobLimit:  p.cfg.maxBlobLimit,
		ReadThreshold: p.cfg.readThreshold,
	})

	jobs := make(chan decompress.Job, jobBacklog)
	metas := make(chan recordMeta, jobBacklog)
	producerErr := make(chan error, 1)

	go p.produce(ctx, reader, jobs, metas, producerErr)

	stage := decompress.New(decompress.Config{
		WorkersEnabled:  p.cfg.decompressionWorkersEnabled,
		MinWorkers:      p.cfg.minWorkers,
		MaxWorkers:      p.cfg.maxWorkers,
		OptimalWorkers:  p.cfg.optimalWorkers,
		ScalingMode:     p.cfg.scalingMode,
		SampleInterval:  50 * time.Millisecond,
		IdleShrinkAfter: time.Second,
		OutputPool:      pool,
	})

	results := stage.Run(ctx, 0, jobs)

	var blobCount int64

	var fatal error

consume:
	for res := range results {
		meta, ok := <-metas
		if !ok {
			break consume
		}

		p.bytesRead.Store(meta.bytesRead)
		sink.OnProgress(ProgressEvent{BytesRead: meta.bytesRead})

		if res.Err != nil {
			if kindOf(res.Err).Fatal() {
				fatal = res.Err
				break consume
			}

			sink.OnError(errorEventFor(meta.index, res.Err))

			continue
		}

		if meta.blobType == osmHeaderBlobType {
			h, err := block.DecodeHeader(res.Bytes)
			if err != nil {
				sink.OnError(errorEventFor(meta.index, err))
				continue
			}

			p.header = h

			if p.cfg.verbose {
				slog.Debug("pbfstream: decoded header blob", "index", meta.index)
			}

			if p.onHeader != nil {
				p.onHeader(h)
			}

			continue
		}

		blk, err := block.Decode(res.Bytes)
		if err != nil {
			sink.OnError(errorEventFor(meta.index, err))
			continue
		}

		blobCount++

		sink.OnBlobReady(BlobReadyEvent{
			Index:    meta.index,
			BlobType: meta.blobType,
			Block:    blockAdapter{blk},
		})
	}

	if fatal == nil {
		select {
		case err := <-producerErr:
			if err != nil && kindOf(err).Fatal() {
				fatal = err
			}
		default:
		}
	}

	if ctx.Err() != nil && fatal == nil {
		fatal = errs.New(errs.Cancelled, ctx.Err())
	}

	sink.OnEnd(EndEvent{Elapsed: time.Since(start), BlobCount: blobCount})

	return fatal
}

// produce reads blob records off reader and submits one decompress.Job plus
// one recordMeta per record, in lockstep, so the coordinator can zip
// decompress.Results back up with their originating blob's metadata purely
// by receive order. It closes jobs and metas when reader's sequence ends,
// and reports any fatal framing error on errCh.
func (p *Pipeline) produce(ctx context.Context, reader *framing.Reader, jobs chan<- decompress.Job, metas chan<- recordMeta, errCh chan<- error) {
	defer close(jobs)
	defer close(metas)

	var index int64

	for rec, err := range reader.Records() {
		if err != nil {
			errCh <- err
			return
		}

		env, envErr := blob.Parse(rec.PayloadBytes)

		job := decompress.Job{Index: index}
		if envErr != nil {
			job.Err = envErr
		} else {
			job.Env = env
		}

		meta := recordMeta{index: index, blobType: rec.Type, bytesRead: reader.BytesRead()}

		select {
		case jobs <- job:
		case <-ctx.Done():
			return
		}

		select {
		case metas <- meta:
		case <-ctx.Done():
			return
		}

		index++
	}

	errCh <- nil
}

func (p *Pipeline) watchdog(ctx context.Context, sink Sink) {
	ticker := time.NewTicker(p.cfg.watchdogInterval)
	defer ticker.Stop()

	var last int64 = -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := p.bytesRead.Load()
			if cur == last {
				sink.OnError(ErrorEvent{Kind: errs.SourceIo, Message: "no read progress within watchdog interval"})
			}

			last = cur
		}
	}
}

func kindOf(err error) errs.Kind {
	var typed *errs.Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return errs.ProtobufMalformed
}

func errorEventFor(index int64, err error) ErrorEvent {
	idx := index

	return ErrorEvent{Index: &idx, Kind: kindOf(err), Message: err.Error()}
}

// describeSource reports a best-effort descriptor and size for start
// events; neither is load-bearing for decoding, only diagnostics.
func describeSource(r io.Reader) (string, int64) {
	if f, ok := r.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			return f.Name(), fi.Size()
		}

		return f.Name(), -1
	}

	return "stream", -1
}

// blockAdapter adapts *internal/block.Block to the public Block interface.
type blockAdapter struct{ b *block.Block }

func (a blockAdapter) Groups() func(yield func(int, Group) bool) {
	return func(yield func(int, Group) bool) {
		for i, g := range a.b.Groups() {
			if !yield(i, groupAdapter{g}) {
				return
			}
		}
	}
}

// groupAdapter adapts *internal/block.Group to the public Group interface.
type groupAdapter struct{ g *block.Group }

func (a groupAdapter) Kind() GroupKind { return GroupKind(a.g.Kind()) }

func (a groupAdapter) Nodes() func(yield func(model.Node, error) bool) { return a.g.Nodes() }

func (a groupAdapter) DenseNodes() func(yield func(model.Node, error) bool) { return a.g.DenseNodes() }

func (a groupAdapter) Ways() func(yield func(model.Way, error) bool) { return a.g.Ways() }

func (a groupAdapter) Relations() func(yield func(model.Relation, error) bool) { return a.g.Relations() }
