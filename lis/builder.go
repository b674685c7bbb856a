// Package lis implements LisBuilder (spec.md section 4.5): grouping a
// read's pooled seed hits by reference sequence, then sliding a read-length
// window over each candidate's hit positions and extracting the longest
// strictly increasing subsequence of read positions as an alignment anchor.
package lis

import (
	"sort"

	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/seq"
)

// HitTriple is one (reference sequence, reference position, read position)
// correspondence derived from a SeedHit via the positions table.
type HitTriple struct {
	RefSeq  uint32
	RefPos  uint32
	ReadPos uint32
}

// Anchor is a candidate alignment anchor: the reference/read coordinates of
// the first element of an LIS chain long enough to attempt SW from, per
// spec.md section 4.5.
type Anchor struct {
	RefStart  uint32
	ReadStart uint32
	Len       int
}

// GroupByRef expands a read's pooled SeedHits through the positions table
// and groups the resulting triples by reference sequence.
func GroupByRef(hitSeeds []seq.SeedHit, positions [][]index.PositionEntry) map[uint32][]HitTriple {
	groups := map[uint32][]HitTriple{}
	for _, h := range hitSeeds {
		if int(h.SeedID) >= len(positions) {
			continue
		}
		for _, p := range positions[h.SeedID] {
			groups[p.RefSeq] = append(groups[p.RefSeq], HitTriple{
				RefSeq:  p.RefSeq,
				RefPos:  p.RefPos,
				ReadPos: h.ReadWindowPos,
			})
		}
	}
	return groups
}

// CandidateRefs keeps only references with at least seedHits triples and
// orders them by descending count, ties broken by ascending reference ID.
func CandidateRefs(groups map[uint32][]HitTriple, seedHits int) []uint32 {
	type refCount struct {
		ref   uint32
		count int
	}
	var ranked []refCount
	for ref, triples := range groups {
		if len(triples) >= seedHits {
			ranked = append(ranked, refCount{ref, len(triples)})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].ref < ranked[j].ref
	})
	out := make([]uint32, len(ranked))
	for i, rc := range ranked {
		out[i] = rc.ref
	}
	return out
}

// Builder walks the sliding window + LIS extraction for one reference's hit
// triples, yielding one Anchor per Next() call. Callers attempt SW from
// each yielded Anchor and report the outcome via ReportAligned before
// calling Next() again, per spec.md section 4.5's "after an alignment is
// attempted (success or fail), pop from the deque" rule.
type Builder struct {
	triples    []HitTriple
	readLen    int
	seedLen    int
	seedHits   int
	heuristic1 bool

	front int
	// back is the deque's exclusive upper bound; unlike front, it never
	// resets across Next() calls, so comparing it before/after widening the
	// window tells Next() whether a *new* hit entered the window at this
	// step (spec.md section 4.5's "when a new hit cannot be pushed").
	back       int
	alignedAny bool
}

// NewBuilder sorts triples by (RefPos, ReadPos) ascending, per step 1 of
// spec.md section 4.5, and prepares a Builder to slide the window over them.
func NewBuilder(triples []HitTriple, readLen, seedLen, seedHits int, heuristic1 bool) *Builder {
	sorted := make([]HitTriple, len(triples))
	copy(sorted, triples)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RefPos != sorted[j].RefPos {
			return sorted[i].RefPos < sorted[j].RefPos
		}
		return sorted[i].ReadPos < sorted[j].ReadPos
	})
	return &Builder{
		triples:    sorted,
		readLen:    readLen,
		seedLen:    seedLen,
		seedHits:   seedHits,
		heuristic1: heuristic1,
	}
}

// Next slides the deque forward from the current front hit, returning the
// first window whose LIS length reaches seedHits. It returns ok=false once
// every pending hit has been consumed without yielding another anchor.
//
// heuristic-1: once some anchor on this reference has already produced a
// successful alignment (ReportAligned(true)), a window that could not push
// a new hit since the last call is skipped without running patience-sort
// LIS on it -- the assumption (spec.md section 9) that every sub-LIS of a
// window yields the same alignment score makes the extra computation
// redundant. A window that *did* gain a new hit resets the aligned flag,
// since the assumption only held for the window's previous composition.
func (b *Builder) Next() (Anchor, bool) {
	span := uint32(b.readLen - b.seedLen + 1)
	if b.back < b.front {
		b.back = b.front
	}
	for b.front < len(b.triples) {
		begin := b.triples[b.front].RefPos
		if b.back < b.front {
			b.back = b.front
		}
		pushed := false
		for b.back < len(b.triples) && b.triples[b.back].RefPos <= begin+span {
			b.back++
			pushed = true
		}
		window := b.triples[b.front:b.back]

		if len(window) < b.seedHits {
			b.front++
			continue
		}

		if pushed {
			b.alignedAny = false
		} else if b.heuristic1 && b.alignedAny {
			b.front++
			continue
		}

		chain := patienceLIS(window)
		if len(chain) >= b.seedHits {
			anchor := Anchor{
				RefStart:  window[chain[0]].RefPos,
				ReadStart: window[chain[0]].ReadPos,
				Len:       len(chain),
			}
			b.front++
			return anchor, true
		}
		b.front++
	}
	return Anchor{}, false
}

// ReportAligned records whether the most recently yielded Anchor produced a
// successful alignment, feeding the heuristic-1 early exit.
func (b *Builder) ReportAligned(success bool) {
	if success {
		b.alignedAny = true
	}
}

// patienceLIS returns the indices (into window) of a longest strictly
// increasing subsequence of window's ReadPos values, found in O(n log k)
// via patience sorting: tails[k] holds the index of the smallest-ReadPos
// element ending an increasing run of length k+1, and pred reconstructs the
// chain once the longest run is known.
func patienceLIS(window []HitTriple) []int {
	tails := make([]int, 0, len(window))
	pred := make([]int, len(window))
	for i := range pred {
		pred[i] = -1
	}
	for i, t := range window {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if window[tails[mid]].ReadPos < t.ReadPos {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			pred[i] = tails[lo-1]
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	if len(tails) == 0 {
		return nil
	}
	chain := make([]int, len(tails))
	k := tails[len(tails)-1]
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i] = k
		k = pred[k]
	}
	return chain
}
