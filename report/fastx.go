package report

import (
	"bufio"
	"io"

	"github.com/bioflow/sortmerna-go/seq"
)

// FastxWriter passes a read through to one of the aligned/rejected/de-novo
// output streams in its original format, preserving headers and qualities
// (spec.md section 6, "FASTA/FASTQ passthrough").
type FastxWriter struct {
	aligned, other, denovo *bufio.Writer
	alignedCloser          io.Closer
	otherCloser            io.Closer
	denovoCloser           io.Closer
	fastq                  bool
}

// NewFastxWriter wraps the already-opened aligned/other/de-novo files.
// other and denovo may be nil if --other/--de_novo_otu were not requested.
func NewFastxWriter(aligned, other, denovo io.WriteCloser, fastq bool) *FastxWriter {
	w := &FastxWriter{fastq: fastq}
	if aligned != nil {
		w.aligned = bufio.NewWriter(aligned)
		w.alignedCloser = aligned
	}
	if other != nil {
		w.other = bufio.NewWriter(other)
		w.otherCloser = other
	}
	if denovo != nil {
		w.denovo = bufio.NewWriter(denovo)
		w.denovoCloser = denovo
	}
	return w
}

func (w *FastxWriter) writeRecord(dst *bufio.Writer, rd *seq.Read) error {
	if dst == nil {
		return nil
	}
	if w.fastq {
		if _, err := dst.WriteString("@" + rd.Header + "\n" + string(rd.Original) + "\n+\n" + rd.Qual + "\n"); err != nil {
			return err
		}
		return nil
	}
	_, err := dst.WriteString(">" + rd.Header + "\n" + string(rd.Original) + "\n")
	return err
}

// WriteAligned appends rd to the --aligned output.
func (w *FastxWriter) WriteAligned(rd *seq.Read) error { return w.writeRecord(w.aligned, rd) }

// WriteOther appends rd to the --other (rejected) output.
func (w *FastxWriter) WriteOther(rd *seq.Read) error { return w.writeRecord(w.other, rd) }

// WriteDenovo appends rd to the de-novo output.
func (w *FastxWriter) WriteDenovo(rd *seq.Read) error { return w.writeRecord(w.denovo, rd) }

// Route decides which output stream(s) a read (optionally with a mate, for
// paired-end runs) should go to, honoring --paired_in/--paired_out (spec.md
// section 6 and section 8 scenario S4: "both mates are written to
// --aligned... if either aligns").
func Route(w *FastxWriter, rd *seq.Read, mate *seq.Read, pairedIn, pairedOut bool) error {
	hit := rd.IsHit
	mateHit := mate != nil && mate.IsHit
	aligned := hit
	if pairedIn && mate != nil {
		aligned = hit || mateHit
	}
	if pairedOut && mate != nil {
		aligned = hit && mateHit
	}
	if aligned {
		if rd.HitDenovo && !rd.IsHit {
			return w.WriteDenovo(rd)
		}
		return w.WriteAligned(rd)
	}
	return w.WriteOther(rd)
}

func (w *FastxWriter) Flush() error {
	for _, d := range []*bufio.Writer{w.aligned, w.other, w.denovo} {
		if d == nil {
			continue
		}
		if err := d.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *FastxWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	for _, c := range []io.Closer{w.alignedCloser, w.otherCloser, w.denovoCloser} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
