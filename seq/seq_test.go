package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReadFoldsAmbiguousBases(t *testing.T) {
	r := NewRead(ReadID{ReadfileIdx: 0, ReadNum: 1}, "h", []byte("ACNGTN"), "IIIIII")
	assert.Equal(t, []byte{SymA, SymC, SymA, SymG, SymT, SymA}, r.ISequence)
	assert.Equal(t, []int{2, 5}, r.AmbiguousNT)
}

// TestAmbiguousMaskRoundTrip exercises testable property 7 (spec.md section
// 8): after SW completion ISequence must equal its pre-SW value, all
// ambiguous positions restored to SymA rather than left at SymAmbiguous.
func TestAmbiguousMaskRoundTrip(t *testing.T) {
	r := NewRead(ReadID{ReadfileIdx: 0, ReadNum: 1}, "h", []byte("ACNGTN"), "IIIIII")
	before := append([]byte{}, r.ISequence...)

	r.MaskAmbiguousForSW()
	require.Equal(t, SymAmbiguous, r.ISequence[2])
	require.Equal(t, SymAmbiguous, r.ISequence[5])
	assert.Equal(t, SymC, r.ISequence[1]) // non-ambiguous positions untouched

	r.UnmaskAmbiguousAfterSW()
	assert.Equal(t, before, r.ISequence)
}

func TestAmbiguousMaskRoundTripNoAmbiguousPositions(t *testing.T) {
	r := NewRead(ReadID{ReadfileIdx: 0, ReadNum: 1}, "h", []byte("ACGTACGT"), "IIIIIIII")
	before := append([]byte{}, r.ISequence...)

	r.MaskAmbiguousForSW()
	assert.Equal(t, before, r.ISequence)
	r.UnmaskAmbiguousAfterSW()
	assert.Equal(t, before, r.ISequence)
}

func TestReverseComplementInPlace(t *testing.T) {
	r := NewRead(ReadID{ReadfileIdx: 0, ReadNum: 1}, "h", []byte("ACGT"), "IIII")
	r.Visited[1] = true
	r.HitSeeds = append(r.HitSeeds, SeedHit{SeedID: 1, ReadWindowPos: 0})

	r.ReverseComplementInPlace()
	assert.Equal(t, []byte{SymA, SymC, SymG, SymT}, r.ISequence) // revcomp(ACGT) == ACGT
	assert.True(t, r.Reversed)
	assert.Empty(t, r.HitSeeds)
	for _, v := range r.Visited {
		assert.False(t, v)
	}

	// A second call before the strand flips back is a no-op.
	r.ReverseComplementInPlace()
	assert.Equal(t, []byte{SymA, SymC, SymG, SymT}, r.ISequence)
	assert.True(t, r.Reversed)
}

func TestReverseComplementInPlaceOddLength(t *testing.T) {
	r := NewRead(ReadID{ReadfileIdx: 0, ReadNum: 1}, "h", []byte("AAC"), "III")
	r.ReverseComplementInPlace()
	assert.Equal(t, []byte{SymG, SymT, SymT}, r.ISequence) // revcomp(AAC) == GTT
}

func TestReverseComplementASCII(t *testing.T) {
	dst := make([]byte, 4)
	ReverseComplementASCII(dst, []byte("ACGT"))
	assert.Equal(t, []byte("ACGT"), dst)

	dst2 := make([]byte, 5)
	ReverseComplementASCII(dst2, []byte("AACGN"))
	assert.Equal(t, []byte("NCGTT"), dst2)
}

func TestSymbolToASCII(t *testing.T) {
	assert.Equal(t, byte('A'), SymbolToASCII(SymA))
	assert.Equal(t, byte('T'), SymbolToASCII(SymT))
	assert.Equal(t, byte('N'), SymbolToASCII(SymAmbiguous))
	assert.Equal(t, byte('N'), SymbolToASCII(5))
}
