// Package seed implements SeederPass (spec.md section 4.4): the
// multi-pass windowed scan over a read that drives BurstTrieWalker at each
// window position and pools the resulting seed hits for LisBuilder.
package seed

import (
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/levaut"
	"github.com/bioflow/sortmerna-go/seq"
	"github.com/bioflow/sortmerna-go/trie"
)

// Pass runs the 3-stride SeederPass scan for one read against one loaded
// SeedIndex (one index, one part, current strand).
type Pass struct {
	FullSearch bool
}

// Run scans rd's windows in up to 3 passes, using strides (Runopts.Passes)
// and stopping early once some reference has accumulated >= seedHits window
// matches. It returns true if that early-termination threshold was reached
// on any pass.
//
// rd.Visited and rd.HitSeeds are shared across passes and across the
// forward/reverse strand iterations of the caller (ReadPipeline resets both
// via Read.ReverseComplementInPlace when switching strand).
func (p *Pass) Run(rd *seq.Read, lookup *index.SeedIndex, strides [3]int, seedHits int) bool {
	firstHalf := lookup.HalfWindow
	secondHalf := lookup.Lnwin - firstHalf
	windowLen := lookup.Lnwin
	if windowLen <= 0 || firstHalf <= 0 || rd.Len() < windowLen {
		return false
	}

	winF := levaut.NewWindow(secondHalf)
	winR := levaut.NewWindow(secondHalf)
	walker := &trie.Walker{FullSearch: p.FullSearch}
	refCounts := map[uint32]int{}

	prevStride := -1
	for _, stride := range strides {
		if stride <= 0 || stride == prevStride {
			continue
		}
		prevStride = stride

		for start := 0; start+windowLen <= rd.Len(); start += stride {
			if rd.Visited[start] {
				continue
			}
			rd.Visited[start] = true

			lookupKey := index.LookupKey(rd.ISequence[start : start+firstHalf])
			entry := &lookup.Lookup[lookupKey]

			winF.BuildForward(rd.ISequence, start, secondHalf)
			resF := walker.Walk(entry.TrieF, winF, secondHalf)
			hits := resF.SeedIDs

			if !resF.AcceptZeroKmer {
				winR.BuildReverse(rd.ISequence, start, secondHalf)
				resR := walker.Walk(entry.TrieR, winR, secondHalf)
				hits = append(hits, resR.SeedIDs...)
			}

			for _, seedID := range hits {
				rd.HitSeeds = append(rd.HitSeeds, seq.SeedHit{
					SeedID:        seedID,
					ReadWindowPos: uint32(start),
				})
				tallyRefCounts(refCounts, lookup, seedID)
			}
		}

		if maxRefCount(refCounts) >= seedHits {
			return true
		}
	}
	return false
}

// tallyRefCounts credits every distinct reference sequence this seed
// appears in with one additional window match, so SeederPass's early-exit
// check ("≥ seed_hits window matches on at least one reference") can be
// evaluated without re-scanning HitSeeds.
func tallyRefCounts(refCounts map[uint32]int, lookup *index.SeedIndex, seedID uint32) {
	if int(seedID) >= len(lookup.Positions) {
		return
	}
	seen := map[uint32]bool{}
	for _, pos := range lookup.Positions[seedID] {
		if seen[pos.RefSeq] {
			continue
		}
		seen[pos.RefSeq] = true
		refCounts[pos.RefSeq]++
	}
}

func maxRefCount(refCounts map[uint32]int) int {
	max := 0
	for _, c := range refCounts {
		if c > max {
			max = c
		}
	}
	return max
}
