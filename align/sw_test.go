package align

import (
	"testing"

	"github.com/bioflow/sortmerna-go/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() ScoreParams {
	return ScoreParams{Match: 2, Mismatch: -3, GapOpen: 5, GapExt: 2, N: -1}
}

func TestAlignExactMatchScoresMaximum(t *testing.T) {
	a := &Aligner{Params: defaultParams()}
	query := []byte{0, 1, 2, 3, 0, 1, 2, 3}
	ref := []byte{0, 1, 2, 3, 0, 1, 2, 3}

	alignment, ok := a.Align(query, ref, 0, 1)
	require.True(t, ok)
	assert.Equal(t, len(query)*defaultParams().Match, alignment.Score)
	assert.Equal(t, 0, alignment.RefBegin)
	assert.Equal(t, len(ref), alignment.RefEnd)

	length, op := DecodeCigarEntry(alignment.Cigar[0])
	assert.Equal(t, len(query), length)
	assert.Equal(t, OpMatch, op)
}

func TestAlignBelowMinScoreRejected(t *testing.T) {
	a := &Aligner{Params: defaultParams()}
	query := []byte{0, 0, 0, 0}
	ref := []byte{3, 3, 3, 3}
	_, ok := a.Align(query, ref, 0, 5)
	assert.False(t, ok)
}

func TestAlignShiftsRefCoordinatesByOffset(t *testing.T) {
	a := &Aligner{Params: defaultParams()}
	query := []byte{0, 1, 2, 3}
	ref := []byte{0, 1, 2, 3}
	alignment, ok := a.Align(query, ref, 1000, 1)
	require.True(t, ok)
	assert.Equal(t, 1000, alignment.RefBegin)
	assert.Equal(t, 1004, alignment.RefEnd)
}

func TestAlignAmbiguousBaseUsesNPenalty(t *testing.T) {
	a := &Aligner{Params: defaultParams()}
	query := []byte{0, 1, seq.SymAmbiguous, 3}
	ref := []byte{0, 1, 2, 3}
	alignment, ok := a.Align(query, ref, 0, 1)
	require.True(t, ok)
	expected := 2*3 + defaultParams().N
	assert.Equal(t, expected, alignment.Score)
}

func TestComputeWindowRefShorterThanRead(t *testing.T) {
	w := ComputeWindow(0, 5, 40, 50, 4)
	assert.Equal(t, 0, w.AlignRefStart)
	assert.Equal(t, 5, w.AlignQueStart)
	assert.Equal(t, 40, w.AlignLength)
}

func TestComputeWindowRefStartsAtOrAfterQuery(t *testing.T) {
	w := ComputeWindow(100, 0, 2000, 50, 4)
	assert.Equal(t, 100, w.AlignRefStart)
	assert.Equal(t, 0, w.AlignQueStart)
	assert.Equal(t, 3, w.Head) // min(100, edges-1=3)
	assert.Equal(t, 3, w.Tail)
	assert.Equal(t, 56, w.AlignLength) // readLen + head + tail
}

func TestCigarEncodeDecodeRoundTrip(t *testing.T) {
	e := EncodeCigarEntry(42, OpDelete)
	length, op := DecodeCigarEntry(e)
	assert.Equal(t, 42, length)
	assert.Equal(t, OpDelete, op)
}
