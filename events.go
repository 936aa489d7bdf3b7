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
	"time"

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/model"
)

// Block is one decoded PrimitiveBlock delivered to a Sink, lazily iterable
// through the same Groups/Nodes/DenseNodes/Ways/Relations surface as
// internal/block.Block, re-exported here so consumers never need to import
// an internal package to use a BlobReadyEvent's payload.
type Block interface {
	Groups() func(yield func(int, Group) bool)
}

// Group is one PrimitiveGroup within a Block.
type Group interface {
	Kind() GroupKind
	Nodes() func(yield func(model.Node, error) bool)
	DenseNodes() func(yield func(model.Node, error) bool)
	Ways() func(yield func(model.Way, error) bool)
	Relations() func(yield func(model.Relation, error) bool)
}

// GroupKind identifies which entity form a Group carries.
type GroupKind int

// GroupEmpty plus the four mutually exclusive entity forms, matching
// internal/block.Kind.
const (
	GroupEmpty GroupKind = iota
	GroupNodes
	GroupDenseNodes
	GroupWays
	GroupRelations
)

// StartEvent is emitted exactly once, before the first blob is read.
type StartEvent struct {
	SourceDescriptor string
	SizeIfKnown      int64 // -1 if unknown
}

// ProgressEvent reports cumulative bytes read from the source. It may be
// emitted more often than once per blob and need not align with blob
// boundaries.
type ProgressEvent struct {
	BytesRead int64
}

// BlobReadyEvent delivers one decoded block, strictly in ascending Index
// order regardless of how the decompression stage completed its work.
type BlobReadyEvent struct {
	Index    int64
	BlobType string
	Block    Block
}

// ErrorEvent reports a per-block failure, or a watchdog stall, that the
// pipeline does not treat as fatal; the pipeline continues past it.
// Per-entity failures are not reported here: they come out of the Block's
// iterators as the error half of each yielded pair. Index
// is nil when the error isn't attributable to one blob (e.g. a watchdog
// stall).
type ErrorEvent struct {
	Index   *int64
	Kind    errs.Kind
	Message string
}

// EndEvent is emitted exactly once, whether the stream ended cleanly, hit a
// configured limit, or was cancelled.
type EndEvent struct {
	Elapsed   time.Duration
	BlobCount int64
}

// Sink receives a Pipeline's events as they occur. Every method is called
// from the coordinator's single goroutine, in event order; implementations
// must not block indefinitely, since doing so applies back-pressure all the
// way to the source reader.
type Sink interface {
	OnStart(StartEvent)
	OnProgress(ProgressEvent)
	OnBlobReady(BlobReadyEvent)
	OnError(ErrorEvent)
	OnEnd(EndEvent)
}

// SinkFuncs adapts five plain functions into a Sink, for callers who only
// care about a subset of events and would rather not implement every Sink
// method on a named type. A nil field is treated as a no-op.
type SinkFuncs struct {
	Start     func(StartEvent)
	Progress  func(ProgressEvent)
	BlobReady func(BlobReadyEvent)
	Error     func(ErrorEvent)
	End       func(EndEvent)
}

var _ Sink = SinkFuncs{}

func (s SinkFuncs) OnStart(e StartEvent) {
	if s.Start != nil {
		s.Start(e)
	}
}

func (s SinkFuncs) OnProgress(e ProgressEvent) {
	if s.Progress != nil {
		s.Progress(e)
	}
}

func (s SinkFuncs) OnBlobReady(e BlobReadyEvent) {
	if s.BlobReady != nil {
		s.BlobReady(e)
	}
}

func (s SinkFuncs) OnError(e ErrorEvent) {
	if s.Error != nil {
		s.Error(e)
	}
}

func (s SinkFuncs) OnEnd(e EndEvent) {
	if s.End != nil {
		s.End(e)
	}
}
