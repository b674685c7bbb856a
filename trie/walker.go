// Package trie implements BurstTrieWalker (spec.md section 4.3): the
// parallel depth-first traversal of a mini burst-trie driven by the
// universal Levenshtein automaton, producing every reference seed within
// edit distance <= 1 of a read's k-mer at one window position.
package trie

import (
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/levaut"
)

// Result holds the outcome of one Walk call: every candidate seed ID within
// edit distance <= 1, and whether an exact (d=0) match was found.
type Result struct {
	SeedIDs        []uint32
	AcceptZeroKmer bool
}

// Walker traverses mini burst-tries. FullSearch disables only the
// zero-kmer early-exit documented in spec.md section 4.3 and the open
// question in section 9 -- the in-bucket early break on an exact match at
// the final character still applies regardless of FullSearch, since that
// break is about a single bucket entry, not the whole window.
type Walker struct {
	FullSearch bool
}

// Walk traverses t starting from the root at depth 0, state 0 (the
// automaton's {I^0} initial state), using win to derive characteristic
// bitvectors at each depth. halfWindow is the number of nucleotides indexed
// by this trie (spec.md section 3, "L/2").
func (w *Walker) Walk(t *index.Trie, win *levaut.Window, halfWindow int) Result {
	var acc accumulator
	acc.fullSearch = w.FullSearch
	if !t.Empty() {
		acc.walkNode(t, 0, 0, 0, win, halfWindow)
	}
	return Result{SeedIDs: acc.hits, AcceptZeroKmer: acc.acceptZero}
}

type accumulator struct {
	fullSearch bool
	acceptZero bool
	hits       []uint32
}

// layerForDepth selects the LEV transition table to use at a given trie
// depth: layer 0 (the full 4-bit bitvector table) everywhere except the
// last 3 positions before the k-mer boundary, where the near-end tables
// (progressively narrower bitvector masks) apply (spec.md section 4.1).
func layerForDepth(depth, halfWindow int) int {
	distanceToEnd := halfWindow - depth
	if distanceToEnd > 3 {
		return 0
	}
	if distanceToEnd < 1 {
		distanceToEnd = 1
	}
	return 4 - distanceToEnd
}

func (a *accumulator) walkNode(t *index.Trie, nodeIdx uint32, depth int, state levaut.State, win *levaut.Window, halfWindow int) {
	if a.acceptZero && !a.fullSearch {
		return
	}
	node := t.Node(nodeIdx)
	layer := layerForDepth(depth, halfWindow)
	for sym := byte(0); sym < 4; sym++ {
		child := node.Children[sym]
		if child.Kind == index.ChildEmpty {
			continue
		}
		key := win.Key(sym, depth, layer)
		next := levaut.Next(layer, key, state)
		if next == levaut.Sink {
			continue
		}
		switch child.Kind {
		case index.ChildInner:
			a.walkNode(t, child.Idx, depth+1, next, win, halfWindow)
		case index.ChildBucket:
			a.walkBucket(t.BucketAt(child.Idx), next, depth, win, halfWindow)
		}
		if a.acceptZero && !a.fullSearch {
			return
		}
	}
}

// walkBucket steps the automaton through each bucket entry's packed suffix,
// one nucleotide at a time, per spec.md section 4.3: "if LEV reaches an
// accepting state during the last 3 characters, emit the entry's seed-ID;
// if LEV reaches code 9 at the final character, set accept_zero_kmer".
func (a *accumulator) walkBucket(bucket index.Bucket, state levaut.State, depth int, win *levaut.Window, halfWindow int) {
	suffixLen := halfWindow - depth
	for _, entry := range bucket {
		st := state
		exact := false
		accepted := false
		for i := 0; i < suffixLen; i++ {
			d := depth + i
			layer := layerForDepth(d, halfWindow)
			shift := uint((suffixLen - 1 - i) * 2)
			sym := byte((entry.Suffix >> shift) & 3)
			key := win.Key(sym, d, layer)
			st = levaut.Next(layer, key, st)
			if st == levaut.Sink {
				break
			}
			if halfWindow-(d+1) < 3 && levaut.IsAccepting(st) {
				accepted = true
				if d+1 == halfWindow && levaut.IsExactAccept(st) {
					exact = true
				}
			}
		}
		if st == levaut.Sink {
			continue
		}
		if exact {
			a.acceptZero = true
			a.hits = append(a.hits[:0], entry.SeedID)
			if !a.fullSearch {
				return
			}
			continue
		}
		if accepted && !a.acceptZero {
			a.addHit(entry.SeedID)
		}
	}
}

// addHit appends seedID unless it is already present: within one window,
// duplicate seed IDs reached via multiple 1-error paths are suppressed by a
// linear scan, since bucket cardinality is small (spec.md section 4.3).
func (a *accumulator) addHit(seedID uint32) {
	for _, existing := range a.hits {
		if existing == seedID {
			return
		}
	}
	a.hits = append(a.hits, seedID)
}
