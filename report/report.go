// Package report implements the reads-classification report writers of
// spec.md section 6: BLAST tabular/pairwise, SAM, FASTA/FASTQ passthrough,
// OTU map, and the run log. All of it is an external-collaborator surface
// per spec.md section 1 ("out of scope... the writers for..."), implemented
// here only so the rewrite is a runnable CLI end to end.
package report

import (
	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/seq"
)

// RefTable resolves an alignment's (index number, reference sequence id)
// into the reference's original FASTA header and length, from the @SQ
// tables loaded per database (spec.md section 6, "<base>.stats" "@SQ
// table"). It has to live past the point a ReferenceBlock for the
// aligning part is dropped, since the best alignment a read ends up
// reporting may come from any earlier part.
type RefTable struct {
	sq map[int][]index.SQEntry
}

// NewRefTable builds a RefTable from the @SQ table of every loaded
// database's Stats.
func NewRefTable() *RefTable {
	return &RefTable{sq: map[int][]index.SQEntry{}}
}

// AddDatabase registers one database's @SQ table under indexNum.
func (t *RefTable) AddDatabase(indexNum int, sq []index.SQEntry) {
	t.sq[indexNum] = sq
}

// Header returns the reference sequence's FASTA id and length.
func (t *RefTable) Header(indexNum int, refSeq uint32) (id string, length uint32) {
	entries := t.sq[indexNum]
	if int(refSeq) >= len(entries) {
		return "", 0
	}
	e := entries[refSeq]
	return e.ID, e.Len
}

// Record pairs one read with one of its reported alignments, plus the
// E-value derived fields a writer needs (spec.md section 4.8).
type Record struct {
	Read       *seq.Read
	Alignment  align.Alignment
	RefID      string
	RefLen     uint32
	Evalue     float64
	Bitscore   int
	PercentID  float64
	PercentCov float64
}

// AlignedLength returns the number of reference/read columns the CIGAR
// spans (M+I+D), the denominator for percent identity.
func AlignedLength(cigar []uint32) int {
	n := 0
	for _, entry := range cigar {
		length, _ := align.DecodeCigarEntry(entry)
		n += length
	}
	return n
}

// NewRecord derives the percent-identity/coverage/E-value fields for one
// alignment, given the owning read and the resolved reference header.
func NewRecord(rd *seq.Read, a align.Alignment, refID string, refLen uint32, evalue float64, bitscore int) Record {
	alnLen := AlignedLength(a.Cigar)
	matches := alnLen - a.Mismatches - a.Gaps
	pid := 0.0
	if alnLen > 0 {
		pid = 100 * float64(matches) / float64(alnLen)
	}
	cov := 0.0
	if a.ReadLen > 0 {
		cov = 100 * float64(a.ReadEnd-a.ReadBegin) / float64(a.ReadLen)
	}
	return Record{
		Read:       rd,
		Alignment:  a,
		RefID:      refID,
		RefLen:     refLen,
		Evalue:     evalue,
		Bitscore:   bitscore,
		PercentID:  pid,
		PercentCov: cov,
	}
}

// cigarString renders a CIGAR the way SAM and BLAST pairwise both want it:
// run-length then op letter, e.g. "5S40M2I3M".
func cigarString(cigar []uint32) string {
	var b []byte
	for _, entry := range cigar {
		length, op := align.DecodeCigarEntry(entry)
		b = appendInt(b, length)
		b = append(b, op.Byte())
	}
	if len(b) == 0 {
		return "*"
	}
	return string(b)
}

func appendInt(b []byte, n int) []byte {
	if n == 0 {
		return append(b, '0')
	}
	start := len(b)
	for n > 0 {
		b = append(b, byte('0'+n%10))
		n /= 10
	}
	// reverse the digits just appended
	end := len(b) - 1
	for start < end {
		b[start], b[end] = b[end], b[start]
		start++
		end--
	}
	return b
}
