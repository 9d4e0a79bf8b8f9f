// Package positional implements positional de Bruijn graph assembly of
// non-reference breakend contigs from a position-sorted stream of directed
// structural-variant evidence.
//
// The pipeline is a strictly linear chain of lazy, pull-based stages:
//
//	Evidence -> SupportNodeStage -> AggregateStage -> PathNodeStage
//	         -> [CollapseStage -> SimplifyStage]? -> ContigAssembler
//
// Every stage advances its upstream only as far as it needs to produce the
// next item, so the whole chain can process an arbitrarily long evidence
// stream for one reference contig in memory bounded by the active window
// (see Config.Derive). Evidence extraction, reference genome handling,
// alignment-record serialisation, and VCF attribute computation are not
// part of this package; it consumes an Evidence stream and produces a
// Contig stream.
package positional
