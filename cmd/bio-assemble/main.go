// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-assemble is a demonstration driver for the positional de Bruijn graph
breakend assembler. It is not a replacement for a real evidence-extraction
collaborator (turning aligned reads into Evidence records is out of scope,
per positional's design notes): it reads a small line-oriented TSV of
pre-extracted evidence, or generates a synthetic single-breakend example
when -input is unset, and prints the resulting contigs to stdout.
*/

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/thefferon/gridss/positional"
)

var (
	inputPath    = flag.String("input", "", "TSV evidence file (referenceIndex, start, direction, kind, anchorLength, bases[, quals]); if empty, a small synthetic example is assembled")
	direction    = flag.String("direction", "both", "Assembly direction: 'forward', 'backward', or 'both'")
	exportDir    = flag.String("export-dir", "", "If set, write one positional-<contig>-<direction>.csv per contig pipeline here")
	recoveryMode = flag.Bool("recover", false, "Discard a failed contig's pipeline and continue with the next reference index, instead of exiting on the first failure")
	sanityCheck  = flag.Bool("sanity-check-graph", positional.DefaultConfig.SanityCheckGraph, "Enable the debug-build CheckingStage assertion interceptors between every stage")

	k                      = flag.Int("k", positional.DefaultConfig.K, "Kmer length (odd, [4,31])")
	anchorLength           = flag.Int("anchor-length", positional.DefaultConfig.AnchorLength, "Minimum reference-flagged kmer run required to treat a node as an anchor")
	maxPathLength          = flag.Int("max-path-length", positional.DefaultConfig.MaxPathLength, "Maximum kmers chained into a single path node")
	maxPathCollapseLength  = flag.Int("max-path-collapse-length", positional.DefaultConfig.MaxPathCollapseLength, "Maximum path length FullPathCollapse mode is willing to consider")
	maxBaseMismatch        = flag.Int("max-base-mismatch-for-collapse", positional.DefaultConfig.MaxBaseMismatchForCollapse, "Hamming budget for collapsing two sibling paths together; 0 disables collapsing")
	collapseBubblesOnly    = flag.Bool("collapse-bubbles-only", positional.DefaultConfig.CollapseBubblesOnly, "Restrict collapsing to leaf bubbles instead of FullPathCollapse")
	includePairAnchors     = flag.Bool("include-pair-anchors", positional.DefaultConfig.IncludePairAnchors, "Emit SupportNodes for discordant read-pair evidence in addition to soft-clips")
	minConcordantFragment  = flag.Int("min-concordant-fragment-size", positional.DefaultConfig.MinConcordantFragmentSize, "Lower bound on a normally-paired fragment's insert size")
	maxConcordantFragment  = flag.Int("max-concordant-fragment-size", positional.DefaultConfig.MaxConcordantFragmentSize, "Upper bound on a normally-paired fragment's insert size")
	maxReadLength          = flag.Int("max-read-length", positional.DefaultConfig.MaxReadLength, "Longest read the evidence source can produce")
)

func usage() {
	fmt.Fprintln(os.Stderr, `bio-assemble assembles structural-variant breakend contigs from a
positional de Bruijn graph built over soft-clip and discordant-pair evidence.

Usage:
  bio-assemble [flags]

With no -input, assembles a small synthetic single-contig example so the
tool can be exercised without a real evidence file.`)
	flag.PrintDefaults()
}

func buildConfig() positional.Config {
	c := positional.DefaultConfig
	c.K = *k
	c.AnchorLength = *anchorLength
	c.MaxPathLength = *maxPathLength
	c.MaxPathCollapseLength = *maxPathCollapseLength
	c.MaxBaseMismatchForCollapse = *maxBaseMismatch
	c.CollapseBubblesOnly = *collapseBubblesOnly
	c.IncludePairAnchors = *includePairAnchors
	c.MinConcordantFragmentSize = *minConcordantFragment
	c.MaxConcordantFragmentSize = *maxConcordantFragment
	c.MaxReadLength = *maxReadLength
	c.SanityCheckGraph = *sanityCheck
	return c
}

func directionsToRun() []positional.Direction {
	switch *direction {
	case "forward":
		return []positional.Direction{positional.Forward}
	case "backward":
		return []positional.Direction{positional.Backward}
	case "both":
		return []positional.Direction{positional.Forward, positional.Backward}
	default:
		log.Fatalf("-direction must be one of forward, backward, both, got %q", *direction)
		return nil
	}
}

func printContig(w io.Writer, c positional.Contig) {
	anchored := "unanchored"
	if c.Anchored {
		anchored = fmt.Sprintf("anchor@%d", c.AnchorPosition)
	}
	fmt.Fprintf(w, ">contig ref=%d dir=%s %s evidence=%d\n%s\n",
		c.ReferenceIndex, directionString(c.Direction), anchored, len(c.SupportingEvidenceIDs), c.BaseCalls)
}

func directionString(d positional.Direction) string {
	if d == positional.Forward {
		return "forward"
	}
	return "backward"
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	config := buildConfig()
	if err := config.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	items, err := loadEvidence(*inputPath)
	if err != nil {
		log.Fatalf("loading evidence: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for _, dir := range directionsToRun() {
		source := &positional.DirectionFilter{
			Upstream:  positional.NewSliceSource(items),
			Direction: &dir,
		}
		driver := positional.NewDriver(source, dir, config, *recoveryMode, *exportDir, nil)
		for {
			c, err := driver.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Fatalf("assembly failed: %v", err)
			}
			printContig(out, c)
		}
	}
}

// loadEvidence reads path's TSV format (one Evidence per line: referenceIndex,
// start, direction, kind, anchorLength, bases[, quals]) or, if path is
// empty, returns a small synthetic single-breakend example.
func loadEvidence(path string) ([]*positional.Evidence, error) {
	if path == "" {
		return syntheticEvidence(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []*positional.Evidence
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := parseEvidenceLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", path, lineNo, err)
		}
		items = append(items, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func parseEvidenceLine(line string) (*positional.Evidence, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 6 {
		return nil, fmt.Errorf("want at least 6 tab-separated fields, got %d", len(fields))
	}
	refIdx, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("referenceIndex: %v", err)
	}
	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("start: %v", err)
	}
	dir, err := parseDirectionField(fields[2])
	if err != nil {
		return nil, err
	}
	kind, err := parseKindField(fields[3])
	if err != nil {
		return nil, err
	}
	anchorLen, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("anchorLength: %v", err)
	}
	bases := []byte(strings.ToUpper(fields[5]))
	quals := make([]byte, len(bases))
	if len(fields) >= 7 && fields[6] != "" && fields[6] != "*" {
		q, err := parseQuals(fields[6], len(bases))
		if err != nil {
			return nil, err
		}
		quals = q
	} else {
		for i := range quals {
			quals[i] = 30
		}
	}
	end := positional.Pos(start) + positional.Pos(len(bases)) - 1
	return &positional.Evidence{
		ReferenceIndex: refIdx,
		Start:          positional.Pos(start),
		End:            end,
		Direction:      dir,
		Kind:           kind,
		ReadBases:      bases,
		BaseQuals:      quals,
		AnchorLength:   anchorLen,
	}, nil
}

func parseDirectionField(s string) (positional.Direction, error) {
	switch strings.ToLower(s) {
	case "f", "forward":
		return positional.Forward, nil
	case "b", "backward":
		return positional.Backward, nil
	default:
		return 0, fmt.Errorf("direction: want f/forward or b/backward, got %q", s)
	}
}

func parseKindField(s string) (positional.Kind, error) {
	switch strings.ToLower(s) {
	case "s", "softclip":
		return positional.SoftClip, nil
	case "p", "pairanchor":
		return positional.PairAnchor, nil
	default:
		return 0, fmt.Errorf("kind: want s/softclip or p/pairanchor, got %q", s)
	}
}

func parseQuals(s string, want int) ([]byte, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("quals: want %d comma-separated values, got %d", want, len(parts))
	}
	out := make([]byte, want)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("quals[%d]: %v", i, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// syntheticEvidence builds a minimal single-breakend example: a handful of
// overlapping soft-clip reads all supporting the same novel sequence at the
// same forward breakend, enough for AnchorLength==1, K==25's default config
// to produce one anchored contig.
func syntheticEvidence() []*positional.Evidence {
	novel := "ACGTTGGCATCGATCGGGCTTAACCG"
	anchor := "TTTTTTTTTTTTTTTTTTTTTTTTTT"
	var items []*positional.Evidence
	for i := 0; i < 6; i++ {
		bases := []byte(anchor + novel)
		quals := make([]byte, len(bases))
		for j := range quals {
			quals[j] = 35
		}
		items = append(items, &positional.Evidence{
			ReferenceIndex: 0,
			Start:          positional.Pos(100 + i),
			End:            positional.Pos(100+i) + positional.Pos(len(bases)) - 1,
			Direction:      positional.Forward,
			Kind:           positional.SoftClip,
			ReadBases:      bases,
			BaseQuals:      quals,
			AnchorLength:   len(anchor),
		})
	}
	return items
}
