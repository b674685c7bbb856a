package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/seq"
)

// SamWriter emits the SAM report of spec.md section 6: a fixed header
// followed by one line per reported alignment (or, with PrintUnaligned, one
// line per unmapped read).
type SamWriter struct {
	w      *bufio.Writer
	closer io.Closer

	PrintUnaligned bool
}

// NewSamWriter writes the @HD line, optional @SQ lines (one per reference
// sequence across every loaded database, in load order) and the @PG line
// (the full command line), then returns a writer ready for per-alignment
// lines.
func NewSamWriter(wc io.WriteCloser, withSQ bool, refs *RefTable, sq map[int][]index.SQEntry, dbOrder []int, commandLine string) (*SamWriter, error) {
	bw := bufio.NewWriter(wc)
	if _, err := bw.WriteString("@HD\tVN:1.0\tSO:unsorted\n"); err != nil {
		return nil, err
	}
	if withSQ {
		for _, dbNum := range dbOrder {
			for _, e := range sq[dbNum] {
				if _, err := fmt.Fprintf(bw, "@SQ\tSN:%s\tLN:%d\n", e.ID, e.Len); err != nil {
					return nil, err
				}
			}
		}
	}
	if _, err := fmt.Fprintf(bw, "@PG\tID:sortmerna\tPN:sortmerna\tCL:%s\n", commandLine); err != nil {
		return nil, err
	}
	return &SamWriter{w: bw, closer: wc}, nil
}

// WriteAlignment emits one alignment line: FLAG (0 forward, 16 reverse),
// 1-based POS, MAPQ=255, a soft-clip-padded CIGAR, RNEXT/PNEXT/TLEN as
// unpaired placeholders, SEQ/QUAL in original read orientation (quality
// reversed when the alignment is on the reverse strand), and the AS/NM
// tags (spec.md section 6).
func (w *SamWriter) WriteAlignment(r Record) error {
	a := r.Alignment
	flag := 0
	if a.Strand == align.Reverse {
		flag = 16
	}
	cigar := softClippedCigar(a)
	seqStr := string(r.Read.Original)
	qualStr := r.Read.Qual
	if qualStr == "" {
		qualStr = "*"
	}
	if a.Strand == align.Reverse && qualStr != "*" {
		qualStr = reverseString(qualStr)
	}
	nm := a.Mismatches + a.Gaps
	_, err := fmt.Fprintf(w.w, "%s\t%d\t%s\t%d\t255\t%s\t*\t0\t0\t%s\t%s\tAS:i:%d\tNM:i:%d\n",
		r.Read.Header, flag, r.RefID, a.RefBegin+1, cigar, seqStr, qualStr, a.Score, nm)
	return err
}

// WriteUnaligned emits a FLAG=4 line for a read with no alignment, used
// only when PrintUnaligned (--print_all_reads) is set (spec.md section 8,
// scenario S3).
func (w *SamWriter) WriteUnaligned(rd *seq.Read) error {
	qualStr := rd.Qual
	if qualStr == "" {
		qualStr = "*"
	}
	_, err := fmt.Fprintf(w.w, "%s\t4\t*\t0\t0\t*\t*\t0\t0\t%s\t%s\n", rd.Header, string(rd.Original), qualStr)
	return err
}

// softClippedCigar prepends/appends S runs for the unaligned read prefix
// and suffix, per spec.md section 6 ("CIGAR with leading/trailing S
// soft-clip masks").
func softClippedCigar(a align.Alignment) string {
	var parts []uint32
	if a.ReadBegin > 0 {
		parts = append(parts, align.EncodeCigarEntry(a.ReadBegin, align.OpInsert))
	}
	parts = append(parts, a.Cigar...)
	if tail := a.ReadLen - a.ReadEnd; tail > 0 {
		parts = append(parts, align.EncodeCigarEntry(tail, align.OpInsert))
	}
	s := cigarString(parts)
	// cigarString renders soft-clip runs with 'I' (the only op.Byte maps
	// insertions to) since Op doesn't model a distinct soft-clip code;
	// patch the two clip runs to 'S' here rather than teach the whole
	// CIGAR vocabulary about a SAM-only op.
	return patchClipOps(s, a.ReadBegin > 0, a.ReadLen-a.ReadEnd > 0)
}

func patchClipOps(s string, hasLead, hasTail bool) string {
	if !hasLead && !hasTail {
		return s
	}
	runs := splitCigarRuns(s)
	if hasLead && len(runs) > 0 {
		runs[0] = replaceOp(runs[0], 'S')
	}
	if hasTail && len(runs) > 0 {
		runs[len(runs)-1] = replaceOp(runs[len(runs)-1], 'S')
	}
	return strings.Join(runs, "")
}

func splitCigarRuns(s string) []string {
	var runs []string
	start := 0
	for i, b := range s {
		if b < '0' || b > '9' {
			runs = append(runs, s[start:i+1])
			start = i + 1
		}
	}
	return runs
}

func replaceOp(run string, op byte) string {
	return run[:len(run)-1] + string(op)
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func (w *SamWriter) Flush() error { return w.w.Flush() }

func (w *SamWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.closer.Close()
}
