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

// Package pbfstream decodes OpenStreetMap PBF files as a stream: a framing
// reader, a decompression stage, and a lazy block decoder are wired
// together by Pipeline, which delivers events to a Sink strictly in blob
// index order. Decoder wraps Pipeline in a pull loop for callers that just
// want a sequence of nodes, ways and relations.
//
// The package never materializes a whole file's worth of entities at once:
// every message type is walked field by field off the wire (internal/wire),
// and iteration contracts throughout (internal/strtable, internal/block)
// are single-pass range-over-func sequences.
package pbfstream
