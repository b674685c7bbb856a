// Package runopts collects the user-settable parameters that drive a
// SortMeRNA-style classification run. It replaces the scattered file-scope
// globals of the original implementation (forward_gv, reverse_gv,
// num_alignments_gv, ...) with one struct threaded explicitly through the
// pipeline, per the rewrite's no-globals design note.
package runopts

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// BestHitsIncrement is the default growth step for an AlignmentSet's backing
// slice, and also the cap used when NumBestHits == 0 ("unlimited").
const BestHitsIncrement = 100

// Runopts mirrors the CLI surface of spec.md section 6. Only the options
// that shape the seeding/alignment core are represented here; reader/writer
// specific flags live on the read/report package option structs.
type Runopts struct {
	// Ref is one "fasta,index_base" pair per reference database.
	Ref []RefPath

	Reads   string
	ReadsGz string

	Aligned string
	Other   string

	Fastx bool
	Sam   bool
	SQ    bool
	Blast string // "", "0" (pairwise) or "1" (tabular), optionally with extra column names
	Log   bool

	NumAlignments int // --num_alignments; mutually exclusive with Best
	Best          int // --best; 0 means "report every alignment found"
	MinLis        int // --min_lis; also used as SeedHits threshold in LisBuilder
	PrintAllReads bool

	PairedIn  bool
	PairedOut bool

	Match    int
	Mismatch int
	GapOpen  int
	GapExt   int
	N        int // -N, penalty applied to ambiguous bases

	ForwardOnly bool // -F
	ReverseOnly bool // -R

	NumProcThreads int     // -a
	Evalue         float64 // -e
	MemoryMB       int     // -m

	IDThreshold       float64 // --id
	CoverageThreshold float64 // --coverage

	DeNovoOTU bool
	OTUMap    bool

	Passes [3]int // --passes i,i,i ; strides for the 3 SeederPass iterations

	Edges        int  // --edges
	EdgesPercent bool // true if --edges was given as N%

	NumSeeds   int  // --num_seeds, a.k.a. seed_hits in spec section 4.4/4.5
	FullSearch bool // --full_search

	PIDFile string // --pid
}

// RefPath is one element of --ref fasta,index[:fasta,index...].
type RefPath struct {
	Fasta     string
	IndexBase string
}

// DefaultRunopts mirrors the constants used throughout spec.md sections 4
// and 6 (L=18 seed length assumed by the index builder, strides L, L/2, 3,
// etc.)
var DefaultRunopts = Runopts{
	Match:          2,
	Mismatch:       -3,
	GapOpen:        5,
	GapExt:         2,
	N:              -1,
	NumProcThreads: 1,
	Evalue:         1,
	MemoryMB:       3072,
	MinLis:         2,
	Passes:         [3]int{18, 9, 3},
	Edges:          4,
	NumSeeds:       2,
}

// Validate rejects nonsensical flag combinations before any I/O happens, per
// spec.md section 7's usage-error taxonomy.
func (o *Runopts) Validate() error {
	if o.Best > 0 && o.NumAlignments > 0 {
		return errors.New("--best and --num_alignments are mutually exclusive")
	}
	if o.PairedIn && o.PairedOut {
		return errors.New("--paired_in and --paired_out are mutually exclusive")
	}
	if o.NumAlignments > 0 && !o.Fastx && !o.Sam && o.Blast == "" {
		return errors.New("--num_alignments requires at least one output format (--fastx, --sam, or --blast)")
	}
	if o.OTUMap && o.NumAlignments > 0 {
		return errors.New("--otu_map and --num_alignments are mutually exclusive")
	}
	if o.ForwardOnly && o.ReverseOnly {
		return errors.New("-F and -R are mutually exclusive")
	}
	if o.Reads == "" && o.ReadsGz == "" {
		return errors.New("one of --reads or --reads-gz is required")
	}
	if len(o.Ref) == 0 {
		return errors.New("--ref is required")
	}
	return nil
}

// NumBestHits returns the user-facing cap on AlignmentSet size: --best N,
// --num_alignments N, or 0 for "unlimited" when neither flag is given.
func (o *Runopts) NumBestHits() int {
	if o.Best > 0 {
		return o.Best
	}
	return o.NumAlignments
}

// EdgesFor resolves the --edges padding for a read of length readLen,
// expanding a percentage value per spec.md section 4.6.
func (o *Runopts) EdgesFor(readLen int) int {
	if o.EdgesPercent {
		return (o.Edges * readLen) / 100
	}
	return o.Edges
}

// WritePIDFile records the current process id, recovering the --pid
// behavior of the original implementation (external supervision hook; not
// part of the alignment core, kept as an ambient process-lifecycle detail).
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (r RefPath) String() string {
	return fmt.Sprintf("%s,%s", r.Fasta, r.IndexBase)
}
