package lis

import (
	"testing"

	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByRefAndCandidateRefs(t *testing.T) {
	positions := [][]index.PositionEntry{
		0: {{RefSeq: 1, RefPos: 10}},
		1: {{RefSeq: 1, RefPos: 20}},
		2: {{RefSeq: 2, RefPos: 5}},
	}
	hits := []seq.SeedHit{
		{SeedID: 0, ReadWindowPos: 0},
		{SeedID: 1, ReadWindowPos: 10},
		{SeedID: 2, ReadWindowPos: 0},
	}
	groups := GroupByRef(hits, positions)
	require.Len(t, groups[1], 2)
	require.Len(t, groups[2], 1)

	ranked := CandidateRefs(groups, 2)
	require.Equal(t, []uint32{1}, ranked)
}

func TestPatienceLISFindsIncreasingChain(t *testing.T) {
	window := []HitTriple{
		{RefPos: 0, ReadPos: 5},
		{RefPos: 1, ReadPos: 3},
		{RefPos: 2, ReadPos: 7},
		{RefPos: 3, ReadPos: 8},
		{RefPos: 4, ReadPos: 2},
	}
	chain := patienceLIS(window)
	// Longest strictly increasing run of ReadPos: 3,7,8 at indices 1,2,3.
	require.Len(t, chain, 3)
	assert.Equal(t, []int{1, 2, 3}, chain)
}

func TestBuilderYieldsAnchorWhenWindowReachesSeedHits(t *testing.T) {
	triples := []HitTriple{
		{RefPos: 100, ReadPos: 0},
		{RefPos: 105, ReadPos: 5},
		{RefPos: 110, ReadPos: 10},
	}
	b := NewBuilder(triples, 50, 18, 3, false)
	anchor, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(100), anchor.RefStart)
	assert.Equal(t, uint32(0), anchor.ReadStart)
	assert.Equal(t, 3, anchor.Len)

	_, ok = b.Next()
	assert.False(t, ok)
}

func TestBuilderHeuristic1SkipsStagnantWindowAfterSuccess(t *testing.T) {
	// Four colinear hits all fall within one read-length span, so the first
	// window (front=0) already contains every hit and the deque's back
	// never advances again once front moves past 0 -- every later window is
	// "stagnant" (no new hit pushed) in the heuristic-1 sense.
	triples := []HitTriple{
		{RefPos: 100, ReadPos: 0},
		{RefPos: 105, ReadPos: 5},
		{RefPos: 110, ReadPos: 10},
		{RefPos: 115, ReadPos: 15},
	}

	withHeuristic := NewBuilder(triples, 50, 18, 3, true)
	first, ok := withHeuristic.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(100), first.RefStart)
	assert.Equal(t, 4, first.Len)
	withHeuristic.ReportAligned(true)

	// front=1's window (105,110,115) is stagnant and alignedAny is set, so
	// heuristic-1 must skip it instead of yielding a second anchor.
	_, ok = withHeuristic.Next()
	assert.False(t, ok, "heuristic-1 should skip the stagnant window and exhaust the deque")

	without := NewBuilder(triples, 50, 18, 3, false)
	first, ok = without.Next()
	require.True(t, ok)
	without.ReportAligned(true)

	// Without the heuristic, the same stagnant window is still evaluated
	// and yields its own (shorter) LIS anchor.
	second, ok := without.Next()
	require.True(t, ok, "without heuristic-1 the stagnant window must still be evaluated")
	assert.Equal(t, uint32(105), second.RefStart)
	assert.Equal(t, uint32(5), second.ReadStart)
	assert.Equal(t, 3, second.Len)
}

func TestBuilderNoAnchorWhenBelowSeedHits(t *testing.T) {
	triples := []HitTriple{
		{RefPos: 100, ReadPos: 0},
		{RefPos: 105, ReadPos: 5},
	}
	b := NewBuilder(triples, 50, 18, 3, false)
	_, ok := b.Next()
	assert.False(t, ok)
}
