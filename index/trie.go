// Package index holds the immutable, per-(database, part) data the seed
// search and alignment stages read from: the mini burst-trie + 9-mer lookup
// table (SeedIndex), the seed-ID -> reference-position table, and the
// reference sequence block itself (spec.md section 3).
//
// The on-disk burst-trie format is pointer-heavy C structure dumped
// directly to disk. Per the rewrite's design note, this package represents
// it as an arena of nodes addressed by integer offsets rather than raw
// pointers, so that BurstTrieWalker operates on plain slices.
package index

// ChildKind tags one of a TrieNode's 4 child slots.
type ChildKind uint8

const (
	ChildEmpty ChildKind = 0
	ChildInner ChildKind = 1
	ChildBucket ChildKind = 2
)

// ChildRef addresses a TrieNode's child: either another TrieNode (by index
// into Trie.Nodes) or a leaf Bucket (by index into Trie.Buckets).
type ChildRef struct {
	Kind ChildKind
	Idx  uint32
}

// TrieNode has exactly 4 children, one per nucleotide symbol (A,C,G,T).
type TrieNode struct {
	Children [4]ChildRef
}

// BucketEntry is one fixed-size leaf entry: a 2-bit-packed suffix (the
// remaining characters of the indexed k-mer beyond the trie's explicit
// depth) plus the seed ID it resolves to.
type BucketEntry struct {
	Suffix uint32
	SeedID uint32
}

// Bucket is a flat, fixed-size-entry array of k-mer suffixes sharing a trie
// prefix, replacing the original's NodeElement{bucket_ptr} arrays.
type Bucket []BucketEntry

// Trie is one mini burst-trie (the forward or reverse half of one 9-mer
// lookup entry). A nil/empty Trie (no Nodes) represents "no trie for this
// prefix", equivalent to the original's null bucket pointer.
type Trie struct {
	Nodes   []TrieNode
	Buckets []Bucket
}

// Empty reports whether the trie has no root node.
func (t *Trie) Empty() bool { return t == nil || len(t.Nodes) == 0 }

// Root returns the trie's root node. Callers must check Empty first.
func (t *Trie) Root() *TrieNode { return &t.Nodes[0] }

// Node returns the node referenced by a ChildInner ref.
func (t *Trie) Node(idx uint32) *TrieNode { return &t.Nodes[idx] }

// BucketAt returns the bucket referenced by a ChildBucket ref.
func (t *Trie) BucketAt(idx uint32) Bucket { return t.Buckets[idx] }
