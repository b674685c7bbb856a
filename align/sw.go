// Package align implements SwAligner (spec.md section 4.6): a local
// Smith-Waterman alignment of a read substring against an anchored
// reference window, with affine gap penalties and CIGAR reconstruction.
//
// The original computes this with a two-pass striped SIMD kernel (Farrar
// layout, byte lanes falling back to word lanes on saturation). Per the
// rewrite's design note ("a scalar implementation that tracks the Farrar
// segment layout is correct; performance loss is ~10x but semantics are
// identical"), this implementation collapses the striped loop to a single
// lane: the H/E/F recurrence and outer-loop-over-reference, inner-loop-
// over-query structure are the same shape, just without SIMD lanes to
// stripe across. There is consequently no byte/word distinction to make:
// a plain int accumulator never saturates the way a biased byte lane does.
package align

import (
	"github.com/bioflow/sortmerna-go/seq"
)

// Strand records which orientation of the read produced an Alignment.
type Strand uint8

const (
	Forward Strand = 0
	Reverse Strand = 1
)

// ScoreParams is the scoring matrix SwAligner uses: match/mismatch reward,
// affine gap open/extend penalties, and the penalty for a masked ambiguous
// base (spec.md section 4.6).
type ScoreParams struct {
	Match    int
	Mismatch int
	GapOpen  int
	GapExt   int
	N        int
}

// Alignment is one scored local alignment, in the vocabulary of spec.md
// section 3: a CIGAR, a score, and begin/end coordinates on both read and
// reference, the latter in global part-relative coordinates.
type Alignment struct {
	Cigar []uint32
	Score int

	RefSeq             uint32
	RefBegin, RefEnd   int
	ReadBegin, ReadEnd int
	ReadLen            int

	Strand         Strand
	IndexNum, Part int

	// Mismatches and Gaps are tallied during traceback, alongside the CIGAR,
	// because the reference window is unloaded (the next index part
	// replaces it) long before a report writer runs. BLAST's mismatches/
	// gaps columns and SAM's NM tag read these directly rather than
	// re-deriving them from CIGAR + sequence at report time (spec.md
	// section 6).
	Mismatches int
	Gaps       int
}

// Aligner runs SwAligner.align for one scoring configuration.
type Aligner struct {
	Params ScoreParams
}

func (a *Aligner) score(refSym, querySym byte) int {
	if querySym == seq.SymAmbiguous {
		return a.Params.N
	}
	if refSym == querySym {
		return a.Params.Match
	}
	return a.Params.Mismatch
}

// Align runs local Smith-Waterman of query (the read substring, alphabet
// {0..4}) against ref (the anchored reference window, alphabet {0..3}).
// It reports ok=false if the best local score does not reach minScore --
// the E-value-derived gate from spec.md section 4.6.
//
// refOffset is added to every reference coordinate in the returned
// Alignment, recovering global part-relative coordinates per the
// "(align_ref_start − head)" shift of spec.md section 3.
func (a *Aligner) Align(query, ref []byte, refOffset, minScore int) (*Alignment, bool) {
	m, n := len(ref), len(query)
	if m == 0 || n == 0 {
		return nil, false
	}

	H := make([][]int32, m+1)
	E := make([][]int32, m+1)
	F := make([][]int32, m+1)
	for i := range H {
		H[i] = make([]int32, n+1)
		E[i] = make([]int32, n+1)
		F[i] = make([]int32, n+1)
	}

	maxScore, maxI, maxJ := int32(0), 0, 0
	gapOpen, gapExt := int32(a.Params.GapOpen), int32(a.Params.GapExt)

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			diag := H[i-1][j-1] + int32(a.score(ref[i-1], query[j-1]))

			e := E[i][j-1] - gapExt
			if h := H[i][j-1] - gapOpen; h > e {
				e = h
			}
			E[i][j] = e

			f := F[i-1][j] - gapExt
			if h := H[i-1][j] - gapOpen; h > f {
				f = h
			}
			F[i][j] = f

			h := int32(0)
			if diag > h {
				h = diag
			}
			if e > h {
				h = e
			}
			if f > h {
				h = f
			}
			H[i][j] = h

			if h > maxScore {
				maxScore = h
				maxI, maxJ = i, j
			}
		}
	}

	if int(maxScore) < minScore {
		return nil, false
	}

	cigar, refBegin, readBegin, mismatches, gaps := traceback(H, E, F, ref, query, maxI, maxJ, gapOpen, gapExt, a)

	return &Alignment{
		Cigar:      cigar,
		Score:      int(maxScore),
		RefBegin:   refBegin + refOffset,
		RefEnd:     maxI + refOffset,
		ReadBegin:  readBegin,
		ReadEnd:    maxJ,
		ReadLen:    n,
		Mismatches: mismatches,
		Gaps:       gaps,
	}, true
}

// traceback walks H/E/F backward from the best-scoring cell to the first
// zero cell, rebuilding the CIGAR and the alignment's start coordinates.
// Ties prefer a diagonal step (match/mismatch) over a gap, matching the
// common Gotoh convention.
func traceback(H, E, F [][]int32, ref, query []byte, i, j int, gapOpen, gapExt int32, a *Aligner) ([]uint32, int, int, int, int) {
	var b cigarBuilder
	mismatches, gaps := 0, 0
	for i > 0 && j > 0 && H[i][j] > 0 {
		diag := H[i-1][j-1] + int32(a.score(ref[i-1], query[j-1]))
		switch {
		case H[i][j] == diag:
			b.push(OpMatch)
			if ref[i-1] != query[j-1] {
				mismatches++
			}
			i--
			j--
		case H[i][j] == E[i][j]:
			b.push(OpInsert)
			gaps++
			j--
		case H[i][j] == F[i][j]:
			b.push(OpDelete)
			gaps++
			i--
		default:
			// Defensive: recurrence guarantees one of the three cases holds.
			b.push(OpMatch)
			i--
			j--
		}
	}
	return b.finish(), i, j, mismatches, gaps
}
