package accum

import (
	"testing"

	"github.com/bioflow/sortmerna-go/align"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func al(score int, refSeq uint32) align.Alignment {
	return align.Alignment{Score: score, RefSeq: refSeq}
}

func TestOfferEmptyToGrowingToFull(t *testing.T) {
	s := NewAlignmentSet(2)

	r1 := s.Offer(al(50, 1), 100)
	require.True(t, r1.Accepted)
	assert.Equal(t, 0, s.MaxIndex)

	r2 := s.Offer(al(80, 2), 100)
	require.True(t, r2.Accepted)
	assert.Equal(t, 1, s.MaxIndex)
	assert.True(t, s.Full())
	assert.Equal(t, 0, s.MinIndex)

	// Below min_index score: rejected.
	r3 := s.Offer(al(40, 3), 100)
	assert.False(t, r3.Accepted)
	assert.Len(t, s.Alignments, 2)

	// Above min_index score: replaces it.
	r4 := s.Offer(al(90, 4), 100)
	require.True(t, r4.Accepted)
	require.True(t, r4.Replaced)
	assert.Equal(t, uint32(1), r4.ReplacedRefSeq)
	assert.Equal(t, 0, s.MaxIndex)
}

func TestOfferUnboundedNeverFull(t *testing.T) {
	s := NewAlignmentSet(0)
	for i := 0; i < 150; i++ {
		r := s.Offer(al(i, uint32(i)), 1000)
		require.True(t, r.Accepted)
		assert.False(t, s.Full())
	}
	assert.Len(t, s.Alignments, 150)
	assert.Equal(t, 149, s.MaxIndex)
}

func TestOfferMaxIndexTiesKeepEarliest(t *testing.T) {
	s := NewAlignmentSet(0)
	s.Offer(al(50, 1), 100)
	s.Offer(al(50, 2), 100)
	assert.Equal(t, 0, s.MaxIndex)
}

func TestOfferIsMaxScoreFlag(t *testing.T) {
	s := NewAlignmentSet(0)
	r := s.Offer(al(100, 1), 100)
	assert.True(t, r.IsMaxScore)
	r2 := s.Offer(al(90, 2), 100)
	assert.False(t, r2.IsMaxScore)
}
