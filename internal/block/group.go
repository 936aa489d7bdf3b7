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

	"github.com/geostream/pbfstream/errs"
	"github.com/geostream/pbfstream/internal/wire"
)

// Kind identifies which of the four mutually-exclusive entity forms a
// PrimitiveGroup carries.
type Kind int

const (
	KindEmpty Kind = iota
	KindNodes
	KindDenseNodes
	KindWays
	KindRelations
)

// Group is one PrimitiveGroup, scanned just enough to know which entity
// form it holds and where each entity submessage's bytes are; individual
// entities are decoded on demand by the Nodes/DenseNodes/Ways/Relations
// iterators.
type Group struct {
	block *Block
	err   error

	kind Kind

	nodeMsgs [][]byte
	denseMsg []byte
	wayMsgs  [][]byte
	relMsgs  [][]byte
}

// Kind reports which entity form this group holds.
func (g *Group) Kind() Kind { return g.kind }

// Err reports a scan-time failure, if any; every iterator on a failed group
// yields one zero value paired with this error and then stops.
func (g *Group) Err() error { return g.err }

// scanGroup walks one PrimitiveGroup message's top-level fields:
//
//	1 node        repeated Node
//	2 dense       DenseNodes
//	3 ways        repeated Way
//	4 relations   repeated Relation
//
// A well-formed group contains occurrences of exactly one of these; this
// scan does not enforce that and simply records whichever it sees, which
// lets a lenient caller decode multi-kind test fixtures too.
func scanGroup(blk *Block, buf []byte) (*Group, error) {
	g := &Group{block: blk}

	err := wire.ForEachField(buf, func(f wire.Field) error {
		switch f.Num {
		case 1:
			g.kind = KindNodes
			g.nodeMsgs = append(g.nodeMsgs, f.Bytes())
		case 2:
			g.kind = KindDenseNodes
			g.denseMsg = f.Bytes()
		case 3:
			g.kind = KindWays
			g.wayMsgs = append(g.wayMsgs, f.Bytes())
		case 4:
			g.kind = KindRelations
			g.relMsgs = append(g.relMsgs, f.Bytes())
		}

		return nil
	})
	if err != nil {
		return nil, errs.New(errs.ProtobufMalformed, fmt.Errorf("parsing primitive group: %w", err))
	}

	return g, nil
}
