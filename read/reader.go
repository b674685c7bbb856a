package read

import (
	"bufio"
	"context"
	"io"

	grailerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/bioflow/sortmerna-go/seq"
)

// gzipMagic is the two-byte gzip member header (RFC 1952 s2.3.1).
var gzipMagic = [2]byte{0x1f, 0x8b}

// ReadAll reads every record from a FASTA or FASTQ reads file, assigning
// sequential ReadNums under readfileIdx (the stable seq.ReadID this rewrite
// uses in place of the original's file-offset-based identity). Compression
// is detected from the gzip magic bytes rather than trusted to the path's
// suffix, the way encoding/fastq's fileHandle wraps its inputs.
func ReadAll(ctx context.Context, path string, readfileIdx int) ([]*seq.Read, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open reads file %s", path)
	}
	closeOnce := grailerrors.Once{}
	defer func() {
		closeOnce.Set(f.Close(ctx))
		if err := closeOnce.Err(); err != nil {
			log.Printf("close reads file %s: %v", path, err)
		}
	}()

	r := f.Reader(ctx)
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read magic bytes of %s", path)
	}
	var rr io.Reader = br
	if len(magic) == 2 && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrapf(err, "open gzip reader for %s", path)
		}
		defer gz.Close()
		rr = bufio.NewReaderSize(gz, 64*1024)
	}

	first, err := rr.(*bufio.Reader).Peek(1)
	if err != nil {
		return nil, errors.Wrapf(err, "read first byte of %s", path)
	}

	sc := bufio.NewScanner(rr)
	sc.Buffer(make([]byte, 64*1024), MaxReadLen+64*1024)

	rs, err := newRecordScanner(first[0], sc)
	if err != nil {
		return nil, errors.Wrapf(err, "detect format of %s", path)
	}

	var reads []*seq.Read
	for i := 0; ; i++ {
		header, sequence, qual, ok, err := rs.Next()
		if err != nil {
			return nil, errors.Wrapf(err, "parse record %d of %s", i, path)
		}
		if !ok {
			break
		}
		id := seq.ReadID{ReadfileIdx: readfileIdx, ReadNum: i}
		reads = append(reads, seq.NewRead(id, header, []byte(sequence), qual))
	}
	return reads, nil
}
