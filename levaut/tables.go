// Package levaut implements the universal Levenshtein automaton for edit
// distance d=1 over the 4-symbol nucleotide alphabet (spec.md section 4.1),
// plus the characteristic-bitvector encoder that feeds it (section 4.2).
//
// The transition table is a static constant copied unchanged from the
// original C++ implementation's traverse_bursttrie.cpp, per the rewrite's
// design note that reimplementers must preserve the exact numeric entries:
// BurstTrieWalker's correctness depends on them bit for bit.
package levaut

// State indexes the 15 states of the automaton. 0-7 are the non-accepting
// "mid-window" states, 8-13 are accepting states reachable only within the
// last few characters of the k-mer, and 14 is the failure sink.
type State uint32

const (
	// NumStates is 0..13 live states; State 14 (Sink) is not counted here
	// because no outgoing transition is ever taken from it.
	NumStates = 14
	// Sink is the automaton's failure state: once reached, the current trie
	// branch can never match within edit distance 1 and must be pruned.
	Sink State = 14
)

// IsAccepting reports whether s is one of the six accepting states (8-13),
// i.e. a state reachable only within the last 3 positions of the k-mer.
// State 9 among them is the zero-error match (see IsExactAccept); the
// others accept with one error.
func IsAccepting(s State) bool { return s >= 8 && s < Sink }

// IsExactAccept reports whether s is state 9, the "(M-1)^0" state that means
// an exact (zero-error) match has been found at the final k-mer position
// (spec.md section 4.3: "If LEV reaches code 9 at the final character, set
// accept_zero_kmer = true").
func IsExactAccept(s State) bool { return s == 9 }

// table[layer][bitvectorKey][state] -> nextState. Layer 0 is the mid-trie
// table (4-bit bitvector keys, 0-15); layers 1-3 are the near-end tables,
// whose keys are progressively masked down to 3, 2, and 1 bits as the walk
// approaches the end of the k-mer (spec.md section 4.1).
//
// Values copied verbatim from the reference implementation's
// traverse_bursttrie.cpp table[4][16][14] literal.
var table = [4][16][NumStates]State{
	{
		{3, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14},
		{3, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14},
		{7, 14, 14, 14, 4, 4, 4, 4, 14, 14, 14, 14, 14, 14},
		{7, 14, 14, 14, 4, 4, 4, 4, 14, 14, 14, 14, 14, 14},
		{0, 14, 2, 2, 14, 14, 2, 2, 14, 14, 14, 14, 14, 14},
		{0, 14, 2, 2, 14, 14, 2, 2, 14, 14, 14, 14, 14, 14},
		{0, 14, 2, 2, 4, 4, 6, 6, 14, 14, 14, 14, 14, 14},
		{0, 14, 2, 2, 4, 4, 6, 6, 14, 14, 14, 14, 14, 14},
		{3, 1, 14, 1, 14, 1, 14, 1, 14, 14, 14, 14, 14, 14},
		{3, 1, 14, 1, 14, 1, 14, 1, 14, 14, 14, 14, 14, 14},
		{7, 1, 14, 1, 4, 5, 4, 5, 14, 14, 14, 14, 14, 14},
		{7, 1, 14, 1, 4, 5, 4, 5, 14, 14, 14, 14, 14, 14},
		{0, 1, 2, 3, 14, 1, 2, 3, 14, 14, 14, 14, 14, 14},
		{0, 1, 2, 3, 14, 1, 2, 3, 14, 14, 14, 14, 14, 14},
		{0, 1, 2, 3, 4, 5, 6, 7, 14, 14, 14, 14, 14, 14},
		{0, 1, 2, 3, 4, 5, 6, 7, 14, 14, 14, 14, 14, 14},
	},
	{
		{3, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14},
		{13, 14, 14, 14, 10, 10, 10, 10, 14, 14, 14, 14, 14, 14},
		{8, 14, 2, 2, 14, 14, 2, 2, 14, 14, 14, 14, 14, 14},
		{8, 14, 2, 2, 10, 10, 12, 12, 14, 14, 14, 14, 14, 14},
		{3, 1, 14, 1, 14, 1, 14, 1, 14, 14, 14, 14, 14, 14},
		{13, 1, 14, 1, 10, 11, 10, 11, 14, 14, 14, 14, 14, 14},
		{8, 1, 2, 3, 14, 1, 2, 3, 14, 14, 14, 14, 14, 14},
		{8, 1, 2, 3, 10, 11, 12, 13, 14, 14, 14, 14, 14, 14},
	},
	{
		{12, 14, 14, 14, 14, 14, 14, 14, 12, 14, 14, 14, 14, 14},
		{9, 14, 10, 10, 14, 14, 10, 10, 9, 14, 14, 14, 10, 10},
		{12, 1, 14, 1, 14, 1, 14, 1, 12, 14, 14, 1, 14, 1},
		{9, 1, 10, 12, 14, 1, 10, 12, 9, 14, 14, 1, 10, 12},
	},
	{
		{10, 14, 14, 14, 14, 14, 14, 14, 14, 10, 14, 14, 14, 14},
		{10, 10, 14, 10, 14, 10, 14, 10, 14, 10, 14, 14, 10, 14},
	},
}

// Next returns the automaton's next state given the current state, the
// characteristic bitvector key at this trie depth, and the layer selecting
// which of the 4 tables to use (0 = mid-trie, 1-3 = near-end, progressively
// narrower bitvector masks as the walk nears the k-mer's last character).
//
// Next panics if layer, key, or state are out of range: the caller
// (BurstTrieWalker) is expected to have masked key to the table's row count
// before calling, since that masking is depth-dependent (spec.md section
// 4.1, "Layer selects ... bitvector masked by 2^(W-depth)-1").
func Next(layer int, key int, state State) State {
	return table[layer][key][state]
}

// NumLayers is the number of distinct transition tables (mid-trie + 3
// near-end tables).
const NumLayers = 4
