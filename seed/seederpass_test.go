package seed

import (
	"testing"

	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLookup returns a SeedIndex whose lookup table has a single non-empty
// entry: the one whose key matches the first 9 symbols of read, with a
// forward trie that matches the next secondHalf symbols exactly and
// resolves to seedID.
func buildLookup(read []byte, secondHalf int, seedID uint32, refSeq uint32) *index.SeedIndex {
	const firstHalf = 9
	idx := &index.SeedIndex{
		Lnwin:      firstHalf + secondHalf,
		HalfWindow: firstHalf,
		Lookup:     make([]index.LookupEntry, index.LookupSizeFor(firstHalf)),
		Positions:  make([][]index.PositionEntry, seedID+1),
	}
	key := index.LookupKey(read[:firstHalf])

	tr := &index.Trie{Nodes: []index.TrieNode{{}}}
	cur := uint32(0)
	suffix := read[firstHalf : firstHalf+secondHalf]
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
	idx.Positions[seedID] = []index.PositionEntry{{RefSeq: refSeq, RefPos: 100}}
	return idx
}

func TestSeederPassFindsExactWindowMatch(t *testing.T) {
	read := []byte{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1}
	idx := buildLookup(read, 9, 5, 42)

	rd := &seq.Read{ISequence: read, Visited: make([]bool, len(read))}
	p := &Pass{}
	converged := p.Run(rd, idx, [3]int{18, 9, 3}, 1)

	require.True(t, converged)
	require.NotEmpty(t, rd.HitSeeds)
	assert.Equal(t, uint32(5), rd.HitSeeds[0].SeedID)
	assert.Equal(t, uint32(0), rd.HitSeeds[0].ReadWindowPos)
}

func TestSeederPassSkipsAlreadyVisitedWindows(t *testing.T) {
	read := make([]byte, 18)
	idx := &index.SeedIndex{
		Lnwin:      18,
		HalfWindow: 9,
		Lookup:     make([]index.LookupEntry, index.LookupSizeFor(9)),
		Positions:  make([][]index.PositionEntry, 0),
	}
	rd := &seq.Read{ISequence: read, Visited: make([]bool, len(read))}
	rd.Visited[0] = true

	p := &Pass{}
	converged := p.Run(rd, idx, [3]int{18, 9, 3}, 1)
	assert.False(t, converged)
	assert.Empty(t, rd.HitSeeds)
}

func TestSeederPassSkipsDuplicateStride(t *testing.T) {
	read := make([]byte, 5) // shorter than any window: Run should no-op, never panic
	idx := &index.SeedIndex{Lnwin: 18, HalfWindow: 9, Lookup: make([]index.LookupEntry, index.LookupSizeFor(9))}
	rd := &seq.Read{ISequence: read, Visited: make([]bool, len(read))}
	p := &Pass{}
	assert.False(t, p.Run(rd, idx, [3]int{18, 18, 3}, 1))
}
