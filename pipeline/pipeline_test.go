package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/evalue"
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/kv"
	"github.com/bioflow/sortmerna-go/runopts"
	"github.com/bioflow/sortmerna-go/seq"
)

// buildExactMatchRead returns a 30-base read whose symbols cycle A,C,G,T
// (0,1,2,3,0,1,2,...), the same pattern seed/seederpass_test.go's
// buildLookup uses, so a LookupKey computed from its first half-window
// matches the trie this file builds by hand below.
func buildExactMatchRead() *seq.Read {
	bases := make([]byte, 30)
	asciiByBase := []byte("ACGT")
	for i := range bases {
		bases[i] = asciiByBase[i%4]
	}
	qual := make([]byte, 30)
	for i := range qual {
		qual[i] = 'I'
	}
	return seq.NewRead(seq.ReadID{ReadfileIdx: 0, ReadNum: 1}, "r1", bases, string(qual))
}

// buildExactMatchReference returns a 150-symbol reference sequence whose
// [100,130) window is an exact copy of the read's symbols, flanked on both
// sides by mismatching symbols so the local alignment cannot extend past
// the exact-match region.
func buildExactMatchReference(read *seq.Read) index.RefSeq {
	seqBytes := make([]byte, 150)
	for i := range seqBytes {
		if i >= 100 && i < 130 {
			seqBytes[i] = read.ISequence[i-100]
		} else {
			seqBytes[i] = byte((i%4 + 1) % 4)
		}
	}
	return index.RefSeq{Header: "ref0", Seq: seqBytes}
}

// buildExactMatchIndex returns a SeedIndex whose lookup table has a single
// populated entry: the one keyed by the read's first half-window, with a
// forward trie resolving the remaining half-window to seedID, and a
// Positions table placing that seed at (refSeq, refPos) in the reference.
// Mirrors seed/seederpass_test.go's buildLookup.
func buildExactMatchIndex(read *seq.Read, lnwin int, seedID, refSeq, refPos uint32) *index.SeedIndex {
	halfWindow := lnwin / 2
	idx := &index.SeedIndex{
		Lnwin:      lnwin,
		HalfWindow: halfWindow,
		Lookup:     make([]index.LookupEntry, index.LookupSizeFor(halfWindow)),
		Positions:  make([][]index.PositionEntry, seedID+1),
	}
	key := index.LookupKey(read.ISequence[:halfWindow])

	tr := &index.Trie{Nodes: []index.TrieNode{{}}}
	cur := uint32(0)
	suffix := read.ISequence[halfWindow:lnwin]
	for i, sym := range suffix {
		if i == len(suffix)-1 {
			tr.Buckets = append(tr.Buckets, index.Bucket{{Suffix: 0, SeedID: seedID}})
			tr.Nodes[cur].Children[sym] = index.ChildRef{Kind: index.ChildBucket, Idx: uint32(len(tr.Buckets) - 1)}
			continue
		}
		childIdx := uint32(len(tr.Nodes))
		tr.Nodes = append(tr.Nodes, index.TrieNode{})
		tr.Nodes[cur].Children[sym] = index.ChildRef{Kind: index.ChildInner, Idx: childIdx}
		cur = childIdx
	}

	idx.Lookup[key] = index.LookupEntry{TrieF: tr, TrieR: &index.Trie{}}
	idx.Positions[seedID] = []index.PositionEntry{{RefSeq: refSeq, RefPos: refPos}}
	return idx
}

// emptySeedIndex returns a SeedIndex with a correctly-sized but entirely
// empty lookup table: every window lookup misses, as if this part's
// reference had nothing resembling the read.
func emptySeedIndex(lnwin int) *index.SeedIndex {
	halfWindow := lnwin / 2
	return &index.SeedIndex{
		Lnwin:      lnwin,
		HalfWindow: halfWindow,
		Lookup:     make([]index.LookupEntry, index.LookupSizeFor(halfWindow)),
	}
}

func testOpts() *runopts.Runopts {
	o := runopts.DefaultRunopts
	o.Best = 1
	o.NumSeeds = 1 // a single exact-match window hit is enough to seed a candidate
	return &o
}

func testModel(fullRef int64) *evalue.Model {
	return evalue.NewModel(gumbelLambda, gumbelK, fullRef, 30, 1, 1, [4]float64{0.25, 0.25, 0.25, 0.25})
}

func newWorker(opts *runopts.Runopts, c *Coordinator, seedIdx *index.SeedIndex, refBlock *index.ReferenceBlock, model *evalue.Model, dbNum, part int) *worker {
	return &worker{
		opts:       opts,
		seedIdx:    seedIdx,
		refBlock:   refBlock,
		model:      model,
		aligner:    &align.Aligner{Params: align.ScoreParams{Match: opts.Match, Mismatch: opts.Mismatch, GapOpen: opts.GapOpen, GapExt: opts.GapExt, N: opts.N}},
		dbNum:      dbNum,
		part:       part,
		counters:   &c.counters,
		heuristic1: true,
	}
}

// TestCoordinatorClassifiesExactMatchAgainstInMemoryStore drives spec.md
// section 8 scenario S1 end to end through the real Coordinator plumbing
// (restoreSets -> runWorkerPool -> persistSets) against an in-memory
// kv.Store: a single read with one exact-match window against one
// reference comes out the other side with a full-length, zero-mismatch
// alignment persisted under its KV key.
func TestCoordinatorClassifiesExactMatchAgainstInMemoryStore(t *testing.T) {
	ctx := context.Background()
	opts := testOpts()
	rd := buildExactMatchRead()
	ref := buildExactMatchReference(rd)
	seedIdx := buildExactMatchIndex(rd, 18, 1, 0, 100)
	refBlock := &index.ReferenceBlock{Seqs: []index.RefSeq{ref}}
	model := testModel(int64(len(ref.Seq)))

	c := &Coordinator{Opts: opts, Store: kv.NewMemStore()}
	reads := []*seq.Read{rd}

	sets, err := c.restoreSets(ctx, reads)
	require.NoError(t, err)
	require.Equal(t, opts.MinLis, rd.Best)

	w := newWorker(opts, c, seedIdx, refBlock, model, 0, 0)
	require.NoError(t, c.runWorkerPool(ctx, reads, sets, w))
	require.NoError(t, c.persistSets(ctx, reads, sets, 0, 0))

	require.True(t, rd.IsHit)
	require.Len(t, sets[rd].Alignments, 1)
	got := sets[rd].Alignments[0]
	assert.Equal(t, 60, got.Score) // 30 bases * Match(2), no mismatches or gaps
	assert.Equal(t, 0, got.Mismatches)
	assert.Equal(t, 0, got.Gaps)
	assert.Equal(t, uint32(0), got.RefSeq)
	assert.Equal(t, 100, got.RefBegin)
	assert.Equal(t, 130, got.RefEnd)

	data, ok, err := c.Store.Get(ctx, kv.Key(rd.ID))
	require.NoError(t, err)
	require.True(t, ok)

	restored := &seq.Read{}
	decodedSet, err := kv.DecodeState(data, restored)
	require.NoError(t, err)
	assert.True(t, restored.IsHit)
	assert.Equal(t, 0, restored.LastIndex)
	assert.Equal(t, 0, restored.LastPart)
	require.Len(t, decodedSet.Alignments, 1)
	assert.Equal(t, 60, decodedSet.Alignments[0].Score)
}

// TestCoordinatorAcrossTwoPartsOnlySecondPartHits drives spec.md section 8
// scenario S6: a two-part index where the read matches only in part 2.
// After part 1 the persisted KV state must show is_hit = false with
// lastPart = 0; after part 2, is_hit = true with lastPart = 1 and the
// alignment found in part 2.
func TestCoordinatorAcrossTwoPartsOnlySecondPartHits(t *testing.T) {
	ctx := context.Background()
	opts := testOpts()
	rd := buildExactMatchRead()
	ref := buildExactMatchReference(rd)

	c := &Coordinator{Opts: opts, Store: kv.NewMemStore()}
	reads := []*seq.Read{rd}

	// Part 1 (index 0): no reference resembles the read.
	part0Idx := emptySeedIndex(18)
	part0Ref := &index.ReferenceBlock{Seqs: []index.RefSeq{{Header: "other", Seq: make([]byte, 40)}}}
	part0Model := testModel(40)

	sets, err := c.restoreSets(ctx, reads)
	require.NoError(t, err)
	w0 := newWorker(opts, c, part0Idx, part0Ref, part0Model, 0, 0)
	require.NoError(t, c.runWorkerPool(ctx, reads, sets, w0))
	require.NoError(t, c.persistSets(ctx, reads, sets, 0, 0))

	data, ok, err := c.Store.Get(ctx, kv.Key(rd.ID))
	require.NoError(t, err)
	require.True(t, ok)
	afterPart0 := &seq.Read{}
	setAfterPart0, err := kv.DecodeState(data, afterPart0)
	require.NoError(t, err)
	assert.False(t, afterPart0.IsHit)
	assert.Equal(t, 0, afterPart0.LastIndex)
	assert.Equal(t, 0, afterPart0.LastPart)
	assert.Empty(t, setAfterPart0.Alignments)

	// Part 2 (index 1): the read's exact match lives here.
	part1Idx := buildExactMatchIndex(rd, 18, 1, 0, 100)
	part1Ref := &index.ReferenceBlock{Seqs: []index.RefSeq{ref}}
	part1Model := testModel(int64(len(ref.Seq)))

	sets, err = c.restoreSets(ctx, reads)
	require.NoError(t, err)
	w1 := newWorker(opts, c, part1Idx, part1Ref, part1Model, 0, 1)
	require.NoError(t, c.runWorkerPool(ctx, reads, sets, w1))
	require.NoError(t, c.persistSets(ctx, reads, sets, 0, 1))

	data, ok, err = c.Store.Get(ctx, kv.Key(rd.ID))
	require.NoError(t, err)
	require.True(t, ok)
	afterPart1 := &seq.Read{}
	setAfterPart1, err := kv.DecodeState(data, afterPart1)
	require.NoError(t, err)
	assert.True(t, afterPart1.IsHit)
	assert.Equal(t, 0, afterPart1.LastIndex)
	assert.Equal(t, 1, afterPart1.LastPart)
	require.Len(t, setAfterPart1.Alignments, 1)
	assert.Equal(t, 60, setAfterPart1.Alignments[0].Score)
}
