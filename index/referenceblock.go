package index

import (
	"context"
	"os"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// RefSeq is one reference sequence within a ReferenceBlock: its header and
// its seed/score-alphabet encoding ({0,1,2,3}).
type RefSeq struct {
	Header string
	Seq    []byte
}

// ReferenceBlock is the immutable, per-(database,part) reference sequence
// buffer (spec.md section 3). Workers only ever read it.
type ReferenceBlock struct {
	Seqs []RefSeq

	// mmapped, when non-nil, is the raw mmap region backing Seqs[*].Seq; it
	// must be unmapped on Close. Kept separate from Seqs so callers can
	// treat ReferenceBlock uniformly regardless of load path.
	mmapped []byte
}

// Len returns the number of bases in reference sequence i.
func (b *ReferenceBlock) Len(i int) int { return len(b.Seqs[i].Seq) }

// Close releases any mmap-backed memory. It is a no-op for blocks loaded via
// LoadReferenceBlock's streaming path.
func (b *ReferenceBlock) Close() error {
	if b.mmapped == nil {
		return nil
	}
	err := unix.Munmap(b.mmapped)
	b.mmapped = nil
	return err
}

// LoadReferenceBlock reads the reference sequences for one index part from
// the original FASTA, given the part's byte offset and size as recorded in
// Stats.Parts (spec.md section 6).
//
// If mmap is true, the FASTA region is memory-mapped instead of streamed;
// per the rewrite's design note ("Memory-mapped read file vs streaming"),
// the returned sequences are still owned copies decoded into the {0,1,2,3}
// alphabet, not slices borrowed from the mapped region, so a ReferenceBlock
// is safe to use after Close on platforms where mmap'd memory would
// otherwise dangle.
func LoadReferenceBlock(ctx context.Context, fastaPath string, part PartInfo, useMmap bool) (*ReferenceBlock, error) {
	if useMmap {
		return loadReferenceBlockMmap(fastaPath, part)
	}
	return loadReferenceBlockStreaming(ctx, fastaPath, part)
}

func loadReferenceBlockStreaming(ctx context.Context, fastaPath string, part PartInfo) (*ReferenceBlock, error) {
	f, err := file.Open(ctx, fastaPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open reference fasta %s", fastaPath)
	}
	defer f.Close(ctx)

	buf := make([]byte, part.Size)
	r := f.Reader(ctx)
	if _, err := readAt(r, buf, int64(part.Start)); err != nil {
		return nil, errors.Wrapf(err, "read reference block [%d,%d)", part.Start, part.Start+part.Size)
	}
	return parseFastaBlock(buf)
}

func loadReferenceBlockMmap(fastaPath string, part PartInfo) (*ReferenceBlock, error) {
	fh, err := os.Open(fastaPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open reference fasta %s", fastaPath)
	}
	defer fh.Close()

	data, err := unix.Mmap(int(fh.Fd()), int64(part.Start), int(part.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "mmap reference fasta")
	}
	block, err := parseFastaBlock(data)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	block.mmapped = data
	return block, nil
}

// readAt reads len(buf) bytes starting at offset from an io.Reader that may
// not support io.ReaderAt (grailbio/base/file.Reader doesn't guarantee it),
// by discarding bytes up to offset first.
func readAt(r interface{ Read([]byte) (int, error) }, buf []byte, offset int64) (int, error) {
	if offset > 0 {
		discard := make([]byte, 32*1024)
		remaining := offset
		for remaining > 0 {
			n := int64(len(discard))
			if remaining < n {
				n = remaining
			}
			read, err := r.Read(discard[:n])
			remaining -= int64(read)
			if err != nil && remaining > 0 {
				return 0, err
			}
		}
	}
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				break
			}
			return total, err
		}
	}
	return total, nil
}

// parseFastaBlock decodes a raw FASTA byte range (as already sliced by the
// index builder's part boundaries) into a ReferenceBlock.
func parseFastaBlock(data []byte) (*ReferenceBlock, error) {
	block := &ReferenceBlock{}
	var cur *RefSeq
	lineStart := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[lineStart:i]
			lineStart = i + 1
			if len(line) == 0 {
				continue
			}
			if line[0] == '>' {
				block.Seqs = append(block.Seqs, RefSeq{Header: string(line[1:])})
				cur = &block.Seqs[len(block.Seqs)-1]
				continue
			}
			if cur == nil {
				return nil, errors.New("index integrity: reference block does not start with a FASTA header")
			}
			for _, b := range line {
				if b == '\r' {
					continue
				}
				cur.Seq = append(cur.Seq, asciiToSeed(b))
			}
		}
	}
	return block, nil
}

func asciiToSeed(b byte) byte {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return 0
	}
}
