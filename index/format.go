package index

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Stats is the per-database sidecar loaded from "<base>.stats" (spec.md
// section 6): background frequencies and per-part layout the E-value model
// and the part-iteration loop both need.
type Stats struct {
	OriginalFastaSize int64
	Tag               string
	BackgroundFreq    [4]float64 // A,C,G,T
	FullRef           int64
	Lnwin             int32
	NumSeq            int32
	Parts             []PartInfo
	SQ                []SQEntry
}

// PartInfo describes one index part's placement within the original FASTA.
type PartInfo struct {
	Start  uint64
	Size   uint64
	NumSeq uint32
}

// SQEntry mirrors one @SQ (reference sequence) record: its header ID and
// its length, in the order the reference FASTA listed them.
type SQEntry struct {
	ID  string
	Len uint32
}

// LoadStats parses "<base>.stats" per spec.md section 6's byte layout.
func LoadStats(ctx context.Context, base string) (*Stats, error) {
	f, err := file.Open(ctx, base+".stats")
	if err != nil {
		return nil, errors.Wrapf(err, "open stats file %s.stats", base)
	}
	defer f.Close(ctx)
	r := f.Reader(ctx)

	var s Stats
	var origSize int64
	if err := binary.Read(r, binary.LittleEndian, &origSize); err != nil {
		return nil, errors.Wrap(err, "read original fasta size")
	}
	s.OriginalFastaSize = origSize

	tag, err := readLenPrefixedString(r)
	if err != nil {
		return nil, errors.Wrap(err, "read tag")
	}
	s.Tag = tag

	for i := 0; i < 4; i++ {
		if err := binary.Read(r, binary.LittleEndian, &s.BackgroundFreq[i]); err != nil {
			return nil, errors.Wrapf(err, "read background freq %d", i)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &s.FullRef); err != nil {
		return nil, errors.Wrap(err, "read full_ref")
	}
	if err := binary.Read(r, binary.LittleEndian, &s.Lnwin); err != nil {
		return nil, errors.Wrap(err, "read lnwin")
	}
	if err := binary.Read(r, binary.LittleEndian, &s.NumSeq); err != nil {
		return nil, errors.Wrap(err, "read numseq")
	}
	var numParts uint16
	if err := binary.Read(r, binary.LittleEndian, &numParts); err != nil {
		return nil, errors.Wrap(err, "read num_index_parts")
	}
	s.Parts = make([]PartInfo, numParts)
	for i := range s.Parts {
		if err := binary.Read(r, binary.LittleEndian, &s.Parts[i].Start); err != nil {
			return nil, errors.Wrapf(err, "read part %d start", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &s.Parts[i].Size); err != nil {
			return nil, errors.Wrapf(err, "read part %d size", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &s.Parts[i].NumSeq); err != nil {
			return nil, errors.Wrapf(err, "read part %d numseq", i)
		}
	}

	var sqCount uint32
	if err := binary.Read(r, binary.LittleEndian, &sqCount); err != nil {
		return nil, errors.Wrap(err, "read @SQ count")
	}
	s.SQ = make([]SQEntry, sqCount)
	for i := range s.SQ {
		id, err := readLenPrefixedString(r)
		if err != nil {
			return nil, errors.Wrapf(err, "read @SQ %d id", i)
		}
		var seqLen uint32
		if err := binary.Read(r, binary.LittleEndian, &seqLen); err != nil {
			return nil, errors.Wrapf(err, "read @SQ %d seq_len", i)
		}
		s.SQ[i] = SQEntry{ID: id, Len: seqLen}
	}
	if origSize != 0 && origSize < 0 {
		return nil, errors.Errorf("index integrity: negative original fasta size in %s.stats", base)
	}
	return &s, nil
}

func readLenPrefixedString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// LoadKmerCounts parses "<base>.kmer_<part>.dat": lookupSize u32 counts, one
// per half-window lookup slot (lookupSize = index.LookupSizeFor(halfWindow)
// for this database's Lnwin -- it is 2^18 only when Lnwin happens to be 18).
func LoadKmerCounts(ctx context.Context, base string, part, lookupSize int) ([]uint32, error) {
	f, err := file.Open(ctx, kmerPath(base, part))
	if err != nil {
		return nil, errors.Wrapf(err, "open kmer file for part %d", part)
	}
	defer f.Close(ctx)
	r := f.Reader(ctx)

	counts := make([]uint32, lookupSize)
	if err := binary.Read(r, binary.LittleEndian, counts); err != nil {
		return nil, errors.Wrapf(err, "read kmer counts for part %d", part)
	}
	return counts, nil
}

// LoadPositions parses "<base>.pos_<part>.dat": total seed count, then per
// seed a position-count followed by that many (ref_seq, ref_pos) pairs.
func LoadPositions(ctx context.Context, base string, part int) ([][]PositionEntry, error) {
	f, err := file.Open(ctx, posPath(base, part))
	if err != nil {
		return nil, errors.Wrapf(err, "open positions file for part %d", part)
	}
	defer f.Close(ctx)
	r := f.Reader(ctx)

	var total uint32
	if err := binary.Read(r, binary.LittleEndian, &total); err != nil {
		return nil, errors.Wrap(err, "read total seed count")
	}
	positions := make([][]PositionEntry, total)
	for seedID := uint32(0); seedID < total; seedID++ {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, errors.Wrapf(err, "read position count for seed %d", seedID)
		}
		entries := make([]PositionEntry, count)
		for i := range entries {
			if err := binary.Read(r, binary.LittleEndian, &entries[i].RefSeq); err != nil {
				return nil, errors.Wrapf(err, "read ref_seq for seed %d entry %d", seedID, i)
			}
			if err := binary.Read(r, binary.LittleEndian, &entries[i].RefPos); err != nil {
				return nil, errors.Wrapf(err, "read ref_pos for seed %d entry %d", seedID, i)
			}
		}
		positions[seedID] = entries
	}
	return positions, nil
}

// trieNodeFlag mirrors the on-disk per-node flag byte (spec.md section 6):
// 0 = empty, 1 = inner trie, 2 = bucket.
type trieNodeFlag = uint8

const (
	flagEmpty  trieNodeFlag = 0
	flagInner  trieNodeFlag = 1
	flagBucket trieNodeFlag = 2
)

// LoadBurstTries parses "<base>.bursttrie_<part>.dat": per half-window
// lookup slot, two u32 sizes (forward/reverse trie byte sizes) followed by
// the two tries packed node-by-node in BFS order (spec.md section 6).
// lookupSize must match the value LoadKmerCounts was given for the same
// part, since both tables are indexed by the same half-window hash.
func LoadBurstTries(ctx context.Context, base string, part, lookupSize int) ([]LookupEntry, error) {
	f, err := file.Open(ctx, trieePath(base, part))
	if err != nil {
		return nil, errors.Wrapf(err, "open burst-trie file for part %d", part)
	}
	defer f.Close(ctx)
	r := f.Reader(ctx)

	entries := make([]LookupEntry, lookupSize)
	for i := range entries {
		var sizeF, sizeR uint32
		if err := binary.Read(r, binary.LittleEndian, &sizeF); err != nil {
			return nil, errors.Wrapf(err, "read forward trie size for lookup slot %d", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &sizeR); err != nil {
			return nil, errors.Wrapf(err, "read reverse trie size for lookup slot %d", i)
		}
		trieF, err := readTrie(r, sizeF)
		if err != nil {
			return nil, errors.Wrapf(err, "read forward trie for lookup slot %d", i)
		}
		trieR, err := readTrie(r, sizeR)
		if err != nil {
			return nil, errors.Wrapf(err, "read reverse trie for lookup slot %d", i)
		}
		entries[i].TrieF = trieF
		entries[i].TrieR = trieR
	}
	return entries, nil
}

// readTrie reads a BFS-packed mini burst-trie of the given byte size. A
// size of 0 means no trie is present for this 9-mer (equivalent to a null
// bucket pointer in the original).
func readTrie(r io.Reader, size uint32) (*Trie, error) {
	if size == 0 {
		return &Trie{}, nil
	}
	t := &Trie{}
	// BFS: node 0 is the root; each node's 4 flag bytes may enqueue more
	// inner nodes or attach a bucket. pending tracks node indices whose
	// children still need to be read.
	t.Nodes = append(t.Nodes, TrieNode{})
	pending := []uint32{0}
	for len(pending) > 0 {
		nodeIdx := pending[0]
		pending = pending[1:]
		var flags [4]byte
		if _, err := io.ReadFull(r, flags[:]); err != nil {
			return nil, errors.Wrap(err, "read node flags")
		}
		for sym, flag := range flags {
			switch flag {
			case flagEmpty:
				t.Nodes[nodeIdx].Children[sym] = ChildRef{Kind: ChildEmpty}
			case flagInner:
				childIdx := uint32(len(t.Nodes))
				t.Nodes = append(t.Nodes, TrieNode{})
				t.Nodes[nodeIdx].Children[sym] = ChildRef{Kind: ChildInner, Idx: childIdx}
				pending = append(pending, childIdx)
			case flagBucket:
				bucket, err := readBucket(r)
				if err != nil {
					return nil, errors.Wrap(err, "read bucket")
				}
				bucketIdx := uint32(len(t.Buckets))
				t.Buckets = append(t.Buckets, bucket)
				t.Nodes[nodeIdx].Children[sym] = ChildRef{Kind: ChildBucket, Idx: bucketIdx}
			default:
				return nil, errors.Errorf("index integrity: burst-trie flag %d out of {0,1,2}", flag)
			}
		}
	}
	return t, nil
}

func readBucket(r io.Reader) (Bucket, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	bucket := make(Bucket, size)
	for i := range bucket {
		if err := binary.Read(r, binary.LittleEndian, &bucket[i].Suffix); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &bucket[i].SeedID); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func kmerPath(base string, part int) string  { return base + ".kmer_" + itoa(part) + ".dat" }
func posPath(base string, part int) string   { return base + ".pos_" + itoa(part) + ".dat" }
func trieePath(base string, part int) string { return base + ".bursttrie_" + itoa(part) + ".dat" }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// LoadSeedIndex loads one complete (index, part): kmer counts, burst tries,
// and positions, assembling a SeedIndex ready for BurstTrieWalker and
// LisBuilder. lnwin is the database's Lnwin as loaded from "<base>.stats";
// the lookup-table size and the seed search's half-window split are derived
// from it rather than assumed to be the common L=18/half-window=9 case, so
// that a database built with a different -L survives intact instead of
// having its tables misread (spec.md section 7 index-integrity).
func LoadSeedIndex(ctx context.Context, base string, part int, lnwin int) (*SeedIndex, error) {
	halfWindow, err := HalfWindowFor(lnwin)
	if err != nil {
		return nil, err
	}
	lookupSize := LookupSizeFor(halfWindow)

	counts, err := LoadKmerCounts(ctx, base, part, lookupSize)
	if err != nil {
		return nil, err
	}
	tries, err := LoadBurstTries(ctx, base, part, lookupSize)
	if err != nil {
		return nil, err
	}
	if len(counts) != len(tries) {
		return nil, errors.Errorf("index integrity: kmer count table has %d entries, burst-trie table has %d", len(counts), len(tries))
	}
	for i := range tries {
		tries[i].Count = counts[i]
	}
	positions, err := LoadPositions(ctx, base, part)
	if err != nil {
		return nil, err
	}
	return &SeedIndex{
		Lnwin:      lnwin,
		HalfWindow: halfWindow,
		Lookup:     tries,
		Positions:  positions,
	}, nil
}
