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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	pbfstream "github.com/geostream/pbfstream"
	"github.com/geostream/pbfstream/internal/cliutil"
	"github.com/geostream/pbfstream/model"
)

type extendedHeader struct {
	model.Header

	NodeCount     int64
	WayCount      int64
	RelationCount int64
}

// inputFile is bound to the --input flag via cliutil.NewReaderValue, opening
// the named path lazily when the flag is set; it defaults to stdin. A
// positional argument, when given, overrides it the same way --input would.
var inputFile *os.File

var input = cliutil.NewReaderValue(os.Stdin, &inputFile, "file")

func init() {
	flags := rootCmd.Flags()
	flags.BoolP("json", "j", false, "format information in JSON")
	flags.Uint16P("workers", "w", uint16(runtime.GOMAXPROCS(-1)), "decompression worker pool size")
	flags.BoolP("extended", "e", false, "provide extended information (scans the entire file)")
	flags.BoolP("progress", "p", false, "show a progress bar while scanning (implies --extended)")
	flags.Var(input, "input", "OSM PBF file to read (overridden by a positional argument)")

	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.RunE = runCommand
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if err := input.Set(args[0]); err != nil {
			return err
		}
	}

	f := inputFile
	if f != os.Stdin {
		defer f.Close()
	}

	flags := cmd.Flags()

	workers, err := flags.GetUint16("workers")
	if err != nil {
		return err
	}

	extended, err := flags.GetBool("extended")
	if err != nil {
		return err
	}

	progress, err := flags.GetBool("progress")
	if err != nil {
		return err
	}

	jsonfmt, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	extended = extended || progress

	var in io.ReadCloser = f

	if progress && f != os.Stdin {
		in, err = cliutil.WrapInputFile(f)
		if err != nil {
			return err
		}
	}

	info, err := runInfo(in, int(workers), extended)
	if err != nil {
		return err
	}

	if in != f {
		if err := in.Close(); err != nil {
			return err
		}
	}

	if jsonfmt {
		renderJSON(info, extended)
	} else {
		renderTxt(info, extended)
	}

	return nil
}

func runInfo(in io.Reader, workers int, extended bool) (*extendedHeader, error) {
	opts := []pbfstream.Option{pbfstream.WithDecompressionWorkers(workers > 1)}
	if workers > 1 {
		opts = append(opts, pbfstream.WithWorkerPoolSize(1, workers, max(workers/2, 1)))
	}

	d, err := pbfstream.NewDecoder(context.Background(), in, opts...)
	if err != nil {
		return nil, err
	}

	defer d.Close()

	info := &extendedHeader{Header: *d.Header()}

	if !extended {
		return info, nil
	}

	for {
		v, err := d.Decode()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		switch v.(type) {
		case model.Node:
			info.NodeCount++
		case model.Way:
			info.WayCount++
		case model.Relation:
			info.RelationCount++
		default:
			log.Fatalf("pbfinfo: unknown entity type %T", v)
		}
	}

	return info, nil
}

func renderJSON(info *extendedHeader, extended bool) {
	var v any = info.Header
	if extended {
		v = info
	}

	b, err := json.Marshal(v)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(b))
}

func renderTxt(info *extendedHeader, extended bool) {
	fmt.Printf("BoundingBox: %s\n", info.BoundingBox)
	fmt.Printf("RequiredFeatures: %s\n", strings.Join(info.RequiredFeatures, ", "))
	fmt.Printf("OptionalFeatures: %s\n", strings.Join(info.OptionalFeatures, ", "))
	fmt.Printf("WritingProgram: %s\n", info.WritingProgram)
	fmt.Printf("Source: %s\n", info.Source)
	fmt.Printf("OsmosisReplicationTimestamp: %s\n", info.OsmosisReplicationTimestamp.UTC().Format(time.RFC3339))
	fmt.Printf("OsmosisReplicationSequenceNumber: %d\n", info.OsmosisReplicationSequenceNumber)
	fmt.Printf("OsmosisReplicationBaseURL: %s\n", info.OsmosisReplicationBaseURL)

	if extended {
		fmt.Printf("NodeCount: %s\n", humanize.Comma(info.NodeCount))
		fmt.Printf("WayCount: %s\n", humanize.Comma(info.WayCount))
		fmt.Printf("RelationCount: %s\n", humanize.Comma(info.RelationCount))
	}
}
