// Package accum implements AlignmentAccumulator (spec.md section 4.7): the
// per-read bounded set of best-scoring alignments, with the Empty/Growing/
// Full state machine, min/max-index tracking, and BEST_HITS_INCREMENT
// growth policy described there.
package accum

import (
	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/runopts"
)

// AlignmentSet is one read's accumulated best alignments (spec.md section
// 3). NumBestHits == 0 means unbounded ("report every alignment found").
type AlignmentSet struct {
	Alignments  []align.Alignment
	NumBestHits int

	maxSize int

	// MinIndex is the position of the currently lowest-scoring alignment,
	// valid once len(Alignments) == NumBestHits (the Full state).
	MinIndex int

	// MaxIndex always points to the earliest-inserted alignment with the
	// highest score.
	MaxIndex int
}

// NewAlignmentSet returns an empty accumulator capped at numBestHits (0 for
// unbounded).
func NewAlignmentSet(numBestHits int) *AlignmentSet {
	return &AlignmentSet{NumBestHits: numBestHits}
}

// OfferResult reports what Offer did, so the caller (ReadPipeline) can
// maintain the shared reads_matched_per_db aggregate (spec.md section 5)
// without AlignmentSet needing to know about per-database bookkeeping.
type OfferResult struct {
	Accepted   bool
	IsMaxScore bool

	// Replaced and ReplacedRefSeq describe the evicted alignment, set only
	// when Offer overwrote an existing slot in the Full state.
	Replaced       bool
	ReplacedRefSeq uint32
}

// Offer attempts to insert a into the set. maxTheoreticalScore is the
// read's best-possible SW score (readLen * match reward), used to detect
// a "perfect" alignment for the max_SW_count saturation check (spec.md
// section 4.7).
func (s *AlignmentSet) Offer(a align.Alignment, maxTheoreticalScore int) OfferResult {
	isMax := a.Score == maxTheoreticalScore

	if len(s.Alignments) == 0 {
		if s.NumBestHits == 0 {
			s.maxSize = runopts.BestHitsIncrement
		} else if s.NumBestHits < runopts.BestHitsIncrement {
			s.maxSize = s.NumBestHits
		} else {
			s.maxSize = runopts.BestHitsIncrement
		}
		s.Alignments = append(s.Alignments, a)
		s.MinIndex = 0
		s.MaxIndex = 0
		return OfferResult{Accepted: true, IsMaxScore: isMax}
	}

	if s.NumBestHits > 0 && len(s.Alignments) == s.NumBestHits {
		return s.offerFull(a, isMax)
	}
	return s.offerGrowing(a, isMax)
}

func (s *AlignmentSet) offerGrowing(a align.Alignment, isMax bool) OfferResult {
	if len(s.Alignments) == s.maxSize {
		next := s.maxSize + runopts.BestHitsIncrement
		if s.NumBestHits > 0 && next > s.NumBestHits {
			next = s.NumBestHits
		}
		s.maxSize = next
	}
	s.Alignments = append(s.Alignments, a)
	newIdx := len(s.Alignments) - 1

	if s.NumBestHits > 0 && len(s.Alignments) == s.NumBestHits {
		s.recomputeMinIndex()
	}
	if a.Score > s.Alignments[s.MaxIndex].Score {
		s.MaxIndex = newIdx
	}
	return OfferResult{Accepted: true, IsMaxScore: isMax}
}

func (s *AlignmentSet) offerFull(a align.Alignment, isMax bool) OfferResult {
	if a.Score <= s.Alignments[s.MinIndex].Score {
		return OfferResult{Accepted: false}
	}
	replacedRefSeq := s.Alignments[s.MinIndex].RefSeq
	s.Alignments[s.MinIndex] = a
	s.recomputeMinIndex()
	s.recomputeMaxIndex()
	return OfferResult{
		Accepted:       true,
		IsMaxScore:     isMax,
		Replaced:       true,
		ReplacedRefSeq: replacedRefSeq,
	}
}

// recomputeMinIndex finds the lowest-scoring slot by linear scan, keeping
// the earliest index on ties (spec.md section 4.7: "recompute min_index
// (linear scan)").
func (s *AlignmentSet) recomputeMinIndex() {
	minScore := s.Alignments[0].Score
	idx := 0
	for i, a := range s.Alignments {
		if a.Score < minScore {
			minScore = a.Score
			idx = i
		}
	}
	s.MinIndex = idx
}

// recomputeMaxIndex finds the highest-scoring slot, keeping the earliest
// index on ties (spec.md section 3's max_index invariant).
func (s *AlignmentSet) recomputeMaxIndex() {
	maxScore := s.Alignments[0].Score
	idx := 0
	for i, a := range s.Alignments {
		if a.Score > maxScore {
			maxScore = a.Score
			idx = i
		}
	}
	s.MaxIndex = idx
}

// Full reports whether the set has reached its NumBestHits cap (always
// false when NumBestHits == 0).
func (s *AlignmentSet) Full() bool {
	return s.NumBestHits > 0 && len(s.Alignments) == s.NumBestHits
}

// Best returns the current best-scoring alignment, or nil if empty.
func (s *AlignmentSet) Best() *align.Alignment {
	if len(s.Alignments) == 0 {
		return nil
	}
	return &s.Alignments[s.MaxIndex]
}
