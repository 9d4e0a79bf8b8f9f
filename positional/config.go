package positional

import "github.com/grailbio/base/log"

// Config holds the assembly parameters. It is a plain data record; the
// core never reads flags or the environment itself.
type Config struct {
	// K is the kmer length. Must be odd and in [4,31].
	K int
	// AnchorLength is the minimum number of reference-flagged kmers a
	// contig's anchor must span before ContigAssembler will treat it as
	// anchored.
	AnchorLength int
	// MaxPathLength caps the number of kmers chained into a single
	// KmerPathNode by PathNodeStage.
	MaxPathLength int
	// MaxPathCollapseLength caps the length (in kmers) of a divergent path
	// FullPathCollapse mode is willing to consider.
	MaxPathCollapseLength int
	// MaxBaseMismatchForCollapse is the Hamming budget CollapseStage allows
	// between two paths being folded together. 0 disables collapsing.
	MaxBaseMismatchForCollapse int
	// CollapseBubblesOnly selects LeafBubble collapse mode when true, and
	// FullPathCollapse when false.
	CollapseBubblesOnly bool
	// IncludePairAnchors enables SupportNodeStage emission for discordant
	// read-pair evidence in addition to soft-clips.
	IncludePairAnchors bool
	// PairAnchorMismatchIgnoreEndBases is the number of bases to skip at
	// each end of a pair-anchor read's usable kmer range.
	PairAnchorMismatchIgnoreEndBases int
	// MinConcordantFragmentSize and MaxConcordantFragmentSize bound the
	// insert size of a normally-paired fragment; their difference drives the
	// positional uncertainty of pair-anchor evidence.
	MinConcordantFragmentSize int
	MaxConcordantFragmentSize int
	// MaxReadLength is the longest read the evidence source can produce.
	MaxReadLength int
	// SanityCheckGraph enables the EvidenceTracker consistency-checking
	// interceptor between every stage. Expensive; intended for debug builds
	// and tests, not production runs.
	SanityCheckGraph bool
}

// DefaultConfig mirrors the values GRIDSS ships with.
var DefaultConfig = Config{
	K:                                25,
	AnchorLength:                     1,
	MaxPathLength:                    100,
	MaxPathCollapseLength:            50,
	MaxBaseMismatchForCollapse:       0,
	CollapseBubblesOnly:              true,
	IncludePairAnchors:               true,
	PairAnchorMismatchIgnoreEndBases: 0,
	MinConcordantFragmentSize:        0,
	MaxConcordantFragmentSize:        0,
	MaxReadLength:                    300,
	SanityCheckGraph:                 false,
}

// Derived holds the constants computed from a Config.
type Derived struct {
	// MaxKmerSupportIntervalWidth is the width of the positional uncertainty
	// a single pair-anchor kmer occurrence may carry.
	MaxKmerSupportIntervalWidth int
	// MaxEvidenceSupportIntervalWidth additionally accounts for where, along
	// a read of MaxReadLength, a kmer occurrence may start.
	MaxEvidenceSupportIntervalWidth int
}

// Derive computes the values every stage needs but which are redundant to
// store directly in Config.
func (c Config) Derive() Derived {
	maxKmerWidth := c.MaxConcordantFragmentSize - c.MinConcordantFragmentSize + 1
	maxEvidenceWidth := maxKmerWidth + c.MaxReadLength - c.K + 2
	return Derived{
		MaxKmerSupportIntervalWidth:     maxKmerWidth,
		MaxEvidenceSupportIntervalWidth: maxEvidenceWidth,
	}
}

// Validate checks the invariants placed on Config, and logs the same
// one-time warning GRIDSS logs when full-path collapse is selected (a
// warning at construction time, not per window, to avoid spamming the log).
func (c Config) Validate() error {
	if c.K < 4 || c.K > 31 {
		return newError(ErrKindMalformedInput, nil, "k must be in [4,31], got", c.K)
	}
	if c.K%2 == 0 {
		return newError(ErrKindMalformedInput, nil, "k must be odd, got", c.K)
	}
	if c.MaxPathLength <= 0 {
		return newError(ErrKindMalformedInput, nil, "maxPathLength must be positive")
	}
	if c.MaxConcordantFragmentSize < c.MinConcordantFragmentSize {
		return newError(ErrKindMalformedInput, nil, "maxConcordantFragmentSize must be >= minConcordantFragmentSize")
	}
	if c.MaxBaseMismatchForCollapse > 0 && !c.CollapseBubblesOnly {
		log.Printf("Collapsing all paths is an exponential time operation. " +
			"Assembly is likely to hang if your input contains repetitive sequence")
	}
	return nil
}
