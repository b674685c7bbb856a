package index

import "github.com/pkg/errors"

// HalfWindowFor returns L/2, the half-window length hashed into the lookup
// table for an index built with full seed length lnwin (spec.md section 3
// SeedIndex, GLOSSARY "mini burst-trie: burst-trie keyed by the second half
// of a seed, indexed by the first half's hash"; "L / W"). lnwin is the
// per-database Lnwin loaded from "<base>.stats" -- it is not fixed at 9/18,
// since indexdb_rna's -L flag lets a database choose any seed length.
//
// It is an index-integrity error (spec.md section 7) for lnwin to be
// non-positive or odd: the lookup table is keyed by a symmetric half-window
// and the burst-trie indexes the other, equal half.
func HalfWindowFor(lnwin int) (int, error) {
	if lnwin <= 0 || lnwin%2 != 0 {
		return 0, errors.Errorf("index integrity: lnwin %d must be a positive even seed length", lnwin)
	}
	return lnwin / 2, nil
}

// LookupBitsFor is the number of bits a half-window of the given length
// hashes into: 2 bits per nucleotide.
func LookupBitsFor(halfWindow int) int { return 2 * halfWindow }

// LookupSizeFor is the number of entries a SeedIndex.Lookup table needs for
// the given half-window length (2^LookupBitsFor(halfWindow)).
func LookupSizeFor(halfWindow int) int { return 1 << LookupBitsFor(halfWindow) }

// LookupEntry is one slot of the 9-mer lookup table: how many reference
// positions share this half-window prefix, and the roots of the forward and
// reverse mini burst-tries that index the remaining half of the seed.
type LookupEntry struct {
	Count uint32
	TrieF *Trie
	TrieR *Trie
}

// PositionEntry records one appearance of a seed in the reference database
// for the current index part (spec.md section 3).
type PositionEntry struct {
	RefSeq uint32
	RefPos uint32
}

// SeedIndex is the immutable, per-(database,part) burst-trie + position
// table the seed search consults. It is loaded once per (index, part)
// iteration and dropped before the next part loads (spec.md section 3
// "Lifecycle").
type SeedIndex struct {
	// Lnwin is L, the full seed length used to build this index (e.g. 18).
	Lnwin int

	// HalfWindow is Lnwin/2, derived once at load time via HalfWindowFor.
	HalfWindow int

	Lookup []LookupEntry

	// Positions[seedID] lists every reference occurrence of that seed.
	Positions [][]PositionEntry
}

// LookupKey packs a half-window of 2-bit symbols (values 0..3) into the
// lookup table index.
func LookupKey(halfWindow []byte) uint32 {
	var key uint32
	for _, s := range halfWindow {
		key = (key << 2) | uint32(s&3)
	}
	return key
}
