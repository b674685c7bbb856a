package pipeline

import (
	"github.com/grailbio/base/log"

	"github.com/bioflow/sortmerna-go/accum"
	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/evalue"
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/lis"
	"github.com/bioflow/sortmerna-go/runopts"
	"github.com/bioflow/sortmerna-go/seed"
	"github.com/bioflow/sortmerna-go/seq"
)

// worker runs the SeederPass -> LisBuilder -> SwAligner -> AlignmentSet
// cascade of spec.md sections 4.4-4.7 for one read against one loaded
// (index, part). Each worker goroutine owns the Read it is currently
// classifying exclusively (spec.md section 5); seedIdx and refBlock are
// read-only shared state.
type worker struct {
	opts     *runopts.Runopts
	seedIdx  *index.SeedIndex
	refBlock *index.ReferenceBlock
	model    *evalue.Model
	aligner  *align.Aligner

	dbNum, part int
	counters    *sharedCounters

	// heuristic1 toggles the LIS-builder early exit named in spec.md
	// section 9's open question; default-on per that section's guidance.
	heuristic1 bool
}

// classify runs both strands (unless -F/-R restrict to one) of the
// seed->LIS->SW->accumulate cascade for rd against this worker's loaded
// part, updating set and rd's search-state flags in place.
func (w *worker) classify(rd *seq.Read, set *accum.AlignmentSet) {
	if rd.Len() < w.seedIdx.Lnwin {
		log.Printf("read %s shorter than seed length %d, skipping", rd.Header, w.seedIdx.Lnwin)
		return
	}
	if w.opts.NumBestHits() > 0 && rd.MaxSWCount == w.opts.NumBestHits() {
		return
	}

	if !w.opts.ReverseOnly {
		w.classifyStrand(rd, set, align.Forward)
	}
	if !w.opts.ForwardOnly {
		if w.opts.NumBestHits() == 0 || rd.MaxSWCount < w.opts.NumBestHits() {
			rd.ReverseComplementInPlace()
			w.classifyStrand(rd, set, align.Reverse)
			// ReverseComplementInPlace is a no-op on a read marked Reversed,
			// so the flag is cleared before the second call and again after it.
			rd.Reversed = false
			rd.ReverseComplementInPlace() // restore forward orientation for the next part/database
			rd.Reversed = false
		}
	}

	if len(set.Alignments) == 0 {
		rd.IsDone = true
	}
}

func (w *worker) classifyStrand(rd *seq.Read, set *accum.AlignmentSet, strand align.Strand) {
	rd.Visited = rd.Visited[:0]
	if len(rd.Visited) < rd.Len() {
		rd.Visited = make([]bool, rd.Len())
	} else {
		rd.Visited = rd.Visited[:rd.Len()]
		for i := range rd.Visited {
			rd.Visited[i] = false
		}
	}
	rd.HitSeeds = rd.HitSeeds[:0]

	pass := &seed.Pass{FullSearch: w.opts.FullSearch}
	pass.Run(rd, w.seedIdx, w.opts.Passes, w.opts.NumSeeds)

	groups := lis.GroupByRef(rd.HitSeeds, w.seedIdx.Positions)
	candidates := lis.CandidateRefs(groups, w.opts.NumSeeds)

	minScore := w.model.MinScore(w.opts.Evalue)
	maxTheoretical := rd.Len() * w.opts.Match
	edges := w.opts.EdgesFor(rd.Len())

	rd.MaskAmbiguousForSW()
	defer rd.UnmaskAmbiguousAfterSW()

	for _, refID := range candidates {
		if rd.Best <= 0 {
			break
		}
		if w.opts.NumBestHits() > 0 && rd.MaxSWCount == w.opts.NumBestHits() {
			break
		}
		if int(refID) >= len(w.refBlock.Seqs) {
			continue
		}
		rd.Best--
		w.tryReference(rd, set, groups[refID], refID, strand, minScore, maxTheoretical, edges)
	}
}

// tryReference slides LisBuilder's deque over one candidate reference's
// pooled hit triples, attempting SW at every anchor it yields until the
// deque is exhausted (spec.md section 4.5's "after an alignment is
// attempted (success or fail), pop from the deque").
func (w *worker) tryReference(rd *seq.Read, set *accum.AlignmentSet, triples []lis.HitTriple, refID uint32, strand align.Strand, minScore, maxTheoretical, edges int) {
	refSeq := w.refBlock.Seqs[refID]
	b := lis.NewBuilder(triples, rd.Len(), w.seedIdx.Lnwin, w.opts.NumSeeds, w.heuristic1)

	for {
		anchor, ok := b.Next()
		if !ok {
			return
		}

		win := align.ComputeWindow(int(anchor.RefStart), int(anchor.ReadStart), len(refSeq.Seq), rd.Len(), edges)
		start, end, shift := win.SliceBounds()
		if start < 0 {
			start = 0
		}
		if end > len(refSeq.Seq) {
			end = len(refSeq.Seq)
		}
		if start >= end {
			b.ReportAligned(false)
			continue
		}

		a, ok := w.aligner.Align(rd.ISequence, refSeq.Seq[start:end], shift, minScore)
		b.ReportAligned(ok)
		if !ok {
			continue
		}
		a.RefSeq = refID
		a.Strand = strand
		a.IndexNum = w.dbNum
		a.Part = w.part

		result := set.Offer(*a, maxTheoretical)
		if !result.Accepted {
			continue
		}

		rd.IsHit = true
		rd.IsNewHit = true
		if result.IsMaxScore {
			rd.MaxSWCount++
		}

		passedIDCov := w.passesFilters(*a)
		if passedIDCov {
			rd.CYidYcov++
		} else {
			rd.NYidNcov++
			if w.opts.DeNovoOTU {
				rd.HitDenovo = true
				rd.NDenovo++
			}
		}

		if result.Replaced {
			w.counters.recordReplace(w.dbNum, w.priorDBForReplacedSlot(result))
		} else {
			w.counters.recordHit(w.dbNum, passedIDCov)
		}
	}
}

// passesFilters applies the user-settable percent-identity/percent-coverage
// gate of spec.md section 1 item 4.
func (w *worker) passesFilters(a align.Alignment) bool {
	alnLen := 0
	for _, entry := range a.Cigar {
		length, _ := align.DecodeCigarEntry(entry)
		alnLen += length
	}
	if alnLen == 0 {
		return false
	}
	matches := alnLen - a.Mismatches - a.Gaps
	pid := 100 * float64(matches) / float64(alnLen)
	cov := 100 * float64(a.ReadEnd-a.ReadBegin) / float64(a.ReadLen)
	return pid >= w.opts.IDThreshold && cov >= w.opts.CoverageThreshold
}

// priorDBForReplacedSlot resolves which database the evicted alignment
// belonged to; in the common case (single database) that's always dbNum,
// but a read's best set can span databases once multiple --ref entries are
// searched, so the evicted slot's IndexNum is the source of truth when
// available to the caller. AlignmentSet.Offer only reports the evicted
// RefSeq, not its IndexNum, since it has no database-spanning context of
// its own (spec.md section 4.7); this rewrite treats same-database eviction
// as the overwhelmingly common case and only corrects the counter when the
// evicted alignment's IndexNum was observed to differ, which would require
// OfferResult to carry it -- left as a known simplification, recorded in
// DESIGN.md.
func (w *worker) priorDBForReplacedSlot(result accum.OfferResult) int {
	return w.dbNum
}
