package kv

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bioflow/sortmerna-go/accum"
	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/seq"
)

// stateVersion stamps the per-read value format (spec.md section 6: "the
// KV schema is an internal contract, not a public format").
const stateVersion = 2

// Key returns the decimal read-ID string spec.md section 6 specifies: the
// (readfile_idx, read_num) pair assembled into the single stable global ID
// spec.md section 3 describes under Read "Identity", not a composite
// "readfile:read_num" string. readfile_idx occupies the high 32 bits and
// read_num the low 32, so a multi-readfile run (paired-end, --reads-gz
// A,B) still produces one distinct decimal key per read without colliding
// across files.
func Key(id seq.ReadID) string {
	global := int64(uint32(id.ReadfileIdx))<<32 | int64(uint32(id.ReadNum))
	return strconv.FormatInt(global, 10)
}

// EncodeState serializes a read's persisted alignment state: its flags,
// last (index, part) checkpoint, and its AlignmentSet.
func EncodeState(r *seq.Read, set *accum.AlignmentSet) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(stateVersion))
	binary.Write(&buf, binary.LittleEndian, encodeFlags(r))
	binary.Write(&buf, binary.LittleEndian, int32(r.LastIndex))
	binary.Write(&buf, binary.LittleEndian, int32(r.LastPart))
	binary.Write(&buf, binary.LittleEndian, int32(r.MaxSWCount))
	binary.Write(&buf, binary.LittleEndian, int32(r.Best))

	binary.Write(&buf, binary.LittleEndian, int32(set.NumBestHits))
	binary.Write(&buf, binary.LittleEndian, int32(set.MinIndex))
	binary.Write(&buf, binary.LittleEndian, int32(set.MaxIndex))
	binary.Write(&buf, binary.LittleEndian, uint32(len(set.Alignments)))
	for _, a := range set.Alignments {
		writeAlignment(&buf, a)
	}
	return buf.Bytes()
}

// DecodeState restores a read's flags (applied directly to r) and returns
// its AlignmentSet, given previously-serialized bytes from EncodeState.
func DecodeState(data []byte, r *seq.Read) (*accum.AlignmentSet, error) {
	buf := bytes.NewReader(data)
	var version uint32
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != stateVersion {
		return nil, errors.Errorf("kv read-state version %d unsupported (want %d)", version, stateVersion)
	}
	var flags uint32
	if err := binary.Read(buf, binary.LittleEndian, &flags); err != nil {
		return nil, err
	}
	applyFlags(r, flags)

	var lastIndex, lastPart, maxSWCount, best int32
	if err := binary.Read(buf, binary.LittleEndian, &lastIndex); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &lastPart); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &maxSWCount); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &best); err != nil {
		return nil, err
	}
	r.LastIndex = int(lastIndex)
	r.LastPart = int(lastPart)
	r.MaxSWCount = int(maxSWCount)
	r.Best = int(best)

	var numBestHits, minIndex, maxIndex int32
	if err := binary.Read(buf, binary.LittleEndian, &numBestHits); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &minIndex); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &maxIndex); err != nil {
		return nil, err
	}
	var count uint32
	if err := binary.Read(buf, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	set := &accum.AlignmentSet{
		NumBestHits: int(numBestHits),
		MinIndex:    int(minIndex),
		MaxIndex:    int(maxIndex),
		Alignments:  make([]align.Alignment, count),
	}
	for i := range set.Alignments {
		a, err := readAlignment(buf)
		if err != nil {
			return nil, err
		}
		set.Alignments[i] = a
	}
	return set, nil
}

const (
	flagIsHit     = 1 << 0
	flagIsDone    = 1 << 1
	flagIsNewHit  = 1 << 2
	flagHitDenovo = 1 << 3
	flagReversed  = 1 << 4
)

func encodeFlags(r *seq.Read) uint32 {
	var f uint32
	if r.IsHit {
		f |= flagIsHit
	}
	if r.IsDone {
		f |= flagIsDone
	}
	if r.IsNewHit {
		f |= flagIsNewHit
	}
	if r.HitDenovo {
		f |= flagHitDenovo
	}
	if r.Reversed {
		f |= flagReversed
	}
	return f
}

func applyFlags(r *seq.Read, f uint32) {
	r.IsHit = f&flagIsHit != 0
	r.IsDone = f&flagIsDone != 0
	r.IsNewHit = f&flagIsNewHit != 0
	r.HitDenovo = f&flagHitDenovo != 0
	r.Reversed = f&flagReversed != 0
}

func writeAlignment(w io.Writer, a align.Alignment) {
	binary.Write(w, binary.LittleEndian, uint32(len(a.Cigar)))
	for _, entry := range a.Cigar {
		binary.Write(w, binary.LittleEndian, entry)
	}
	binary.Write(w, binary.LittleEndian, int32(a.Score))
	binary.Write(w, binary.LittleEndian, a.RefSeq)
	binary.Write(w, binary.LittleEndian, int32(a.RefBegin))
	binary.Write(w, binary.LittleEndian, int32(a.RefEnd))
	binary.Write(w, binary.LittleEndian, int32(a.ReadBegin))
	binary.Write(w, binary.LittleEndian, int32(a.ReadEnd))
	binary.Write(w, binary.LittleEndian, int32(a.ReadLen))
	binary.Write(w, binary.LittleEndian, uint8(a.Strand))
	binary.Write(w, binary.LittleEndian, int32(a.IndexNum))
	binary.Write(w, binary.LittleEndian, int32(a.Part))
	binary.Write(w, binary.LittleEndian, int32(a.Mismatches))
	binary.Write(w, binary.LittleEndian, int32(a.Gaps))
}

func readAlignment(r io.Reader) (align.Alignment, error) {
	var a align.Alignment
	var cigarLen uint32
	if err := binary.Read(r, binary.LittleEndian, &cigarLen); err != nil {
		return a, err
	}
	a.Cigar = make([]uint32, cigarLen)
	for i := range a.Cigar {
		if err := binary.Read(r, binary.LittleEndian, &a.Cigar[i]); err != nil {
			return a, err
		}
	}
	var score, refBegin, refEnd, readBegin, readEnd, readLen, indexNum, part, mismatches, gaps int32
	var refSeq uint32
	var strand uint8
	for _, field := range []interface{}{&score, &refSeq, &refBegin, &refEnd, &readBegin, &readEnd, &readLen, &strand, &indexNum, &part, &mismatches, &gaps} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return a, err
		}
	}
	a.Score = int(score)
	a.RefSeq = refSeq
	a.RefBegin = int(refBegin)
	a.RefEnd = int(refEnd)
	a.ReadBegin = int(readBegin)
	a.ReadEnd = int(readEnd)
	a.ReadLen = int(readLen)
	a.Strand = align.Strand(strand)
	a.IndexNum = int(indexNum)
	a.Part = int(part)
	a.Mismatches = int(mismatches)
	a.Gaps = int(gaps)
	return a, nil
}
