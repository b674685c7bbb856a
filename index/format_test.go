package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, ctx context.Context, path string, data []byte) {
	t.Helper()
	f, err := file.Create(ctx, path)
	require.NoError(t, err)
	_, err = f.Writer(ctx).Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))
}

func encodeStats(t *testing.T, numSeq int32, lnwin int32, parts []PartInfo, sq []SQEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int64(1234)))
	tag := []byte("18S")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(tag))))
	buf.Write(tag)
	for i := 0; i < 4; i++ {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, 0.25))
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int64(5000)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, lnwin))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, numSeq))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(parts))))
	for _, p := range parts {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, p.Start))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, p.Size))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, p.NumSeq))
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(sq))))
	for _, e := range sq {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(e.ID))))
		buf.WriteString(e.ID)
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, e.Len))
	}
	return buf.Bytes()
}

func TestLoadStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "db")
	parts := []PartInfo{{Start: 0, Size: 100, NumSeq: 2}, {Start: 100, Size: 50, NumSeq: 1}}
	sq := []SQEntry{{ID: "seq1", Len: 80}, {ID: "seq2", Len: 70}}
	writeFile(t, ctx, base+".stats", encodeStats(t, 3, 18, parts, sq))

	stats, err := LoadStats(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), stats.OriginalFastaSize)
	assert.Equal(t, "18S", stats.Tag)
	assert.Equal(t, int64(5000), stats.FullRef)
	assert.Equal(t, int32(18), stats.Lnwin)
	assert.Equal(t, int32(3), stats.NumSeq)
	assert.Equal(t, parts, stats.Parts)
	assert.Equal(t, sq, stats.SQ)
}

// encodeTrie writes one mini burst-trie byte-for-byte in the BFS layout
// readTrie expects: a root node whose 4 flag bytes are either empty, an
// inner node (itself all-empty, terminating the BFS), or a bucket.
func encodeTrie(t *testing.T, rootFlags [4]trieNodeFlag, bucket Bucket) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(rootFlags[:])
	for _, flag := range rootFlags {
		switch flag {
		case flagInner:
			buf.Write([]byte{flagEmpty, flagEmpty, flagEmpty, flagEmpty})
		case flagBucket:
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(bucket))))
			for _, e := range bucket {
				require.NoError(t, binary.Write(&buf, binary.LittleEndian, e.Suffix))
				require.NoError(t, binary.Write(&buf, binary.LittleEndian, e.SeedID))
			}
		}
	}
	return buf.Bytes()
}

func TestLoadSeedIndexRoundTripNonDefaultLnwin(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "db")

	const lnwin = 10 // half-window 5: exercises a database built with -L != 18
	halfWindow, err := HalfWindowFor(lnwin)
	require.NoError(t, err)
	lookupSize := LookupSizeFor(halfWindow)
	require.Equal(t, 1024, lookupSize) // 4^5

	counts := make([]uint32, lookupSize)
	counts[7] = 42
	var kmerBuf bytes.Buffer
	require.NoError(t, binary.Write(&kmerBuf, binary.LittleEndian, counts))
	writeFile(t, ctx, base+".kmer_0.dat", kmerBuf.Bytes())

	bucket := Bucket{{Suffix: 0xAB, SeedID: 99}}
	trieBytes := encodeTrie(t, [4]trieNodeFlag{flagBucket, flagEmpty, flagEmpty, flagEmpty}, bucket)

	var trieFile bytes.Buffer
	for i := 0; i < lookupSize; i++ {
		if i == 7 {
			require.NoError(t, binary.Write(&trieFile, binary.LittleEndian, uint32(len(trieBytes))))
			require.NoError(t, binary.Write(&trieFile, binary.LittleEndian, uint32(0)))
			trieFile.Write(trieBytes)
		} else {
			require.NoError(t, binary.Write(&trieFile, binary.LittleEndian, uint32(0)))
			require.NoError(t, binary.Write(&trieFile, binary.LittleEndian, uint32(0)))
		}
	}
	writeFile(t, ctx, base+".bursttrie_0.dat", trieFile.Bytes())

	var posFile bytes.Buffer
	require.NoError(t, binary.Write(&posFile, binary.LittleEndian, uint32(100))) // total seed count
	for seedID := uint32(0); seedID < 100; seedID++ {
		if seedID == 99 {
			require.NoError(t, binary.Write(&posFile, binary.LittleEndian, uint32(1)))
			require.NoError(t, binary.Write(&posFile, binary.LittleEndian, uint32(5)))  // ref_seq
			require.NoError(t, binary.Write(&posFile, binary.LittleEndian, uint32(17))) // ref_pos
			continue
		}
		require.NoError(t, binary.Write(&posFile, binary.LittleEndian, uint32(0)))
	}
	writeFile(t, ctx, base+".pos_0.dat", posFile.Bytes())

	idx, err := LoadSeedIndex(ctx, base, 0, lnwin)
	require.NoError(t, err)
	assert.Equal(t, lnwin, idx.Lnwin)
	assert.Equal(t, halfWindow, idx.HalfWindow)
	require.Len(t, idx.Lookup, lookupSize)

	entry := idx.Lookup[7]
	assert.Equal(t, uint32(42), entry.Count)
	require.False(t, entry.TrieF.Empty())
	require.Len(t, entry.TrieF.Buckets, 1)
	assert.Equal(t, Bucket{{Suffix: 0xAB, SeedID: 99}}, entry.TrieF.Buckets[0])
	assert.True(t, entry.TrieR.Empty())

	require.Len(t, idx.Positions[99], 1)
	assert.Equal(t, PositionEntry{RefSeq: 5, RefPos: 17}, idx.Positions[99][0])
}

func TestLoadSeedIndexRejectsOddLnwin(t *testing.T) {
	ctx := context.Background()
	_, err := LoadSeedIndex(ctx, filepath.Join(t.TempDir(), "db"), 0, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index integrity")
}

func TestLoadBurstTriesRejectsFlagOutOfRange(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "db")
	const lookupSize = 4

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(4))) // sizeF, non-zero so readTrie parses it
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0))) // sizeR
	buf.Write([]byte{3, 0, 0, 0})                                          // flag 3 is out of {0,1,2}
	for i := 1; i < lookupSize; i++ {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0)))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0)))
	}
	writeFile(t, ctx, base+".bursttrie_0.dat", buf.Bytes())

	_, err := LoadBurstTries(ctx, base, 0, lookupSize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index integrity")
	assert.Contains(t, err.Error(), "out of {0,1,2}")
}

func TestHalfWindowForValidatesLnwin(t *testing.T) {
	_, err := HalfWindowFor(0)
	assert.Error(t, err)
	_, err = HalfWindowFor(-4)
	assert.Error(t, err)
	_, err = HalfWindowFor(17)
	assert.Error(t, err)

	half, err := HalfWindowFor(18)
	require.NoError(t, err)
	assert.Equal(t, 9, half)

	half, err = HalfWindowFor(26)
	require.NoError(t, err)
	assert.Equal(t, 13, half)
}
