// Command sortmerna classifies reads against one or more reference
// databases by approximate local alignment, per spec.md: it runs the
// burst-trie seed search, LIS-based chaining, and Smith-Waterman alignment
// cascade for every (read, reference database) pair and emits the
// requested reports (BLAST, SAM, FASTA/FASTQ passthrough, OTU map, run
// log).
//
// Flag wiring follows cmd/bio-fusion/main.go's flat flag.*Var block and
// grail.Init()/vcontext.Background() startup sequence.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/kv"
	"github.com/bioflow/sortmerna-go/pipeline"
	"github.com/bioflow/sortmerna-go/read"
	"github.com/bioflow/sortmerna-go/report"
	"github.com/bioflow/sortmerna-go/runopts"
)

func usage() {
	fmt.Fprintln(os.Stderr, `sortmerna: approximate-match read classification against reference databases

Usage:
  sortmerna --ref fasta,index[:fasta,index...] (--reads path | --reads-gz path) [flags]

See --help for the full flag list.`)
}

func main() {
	flag.Usage = usage
	opts := runopts.DefaultRunopts

	var refFlag string
	flag.StringVar(&refFlag, "ref", "", "colon-separated fasta,index_base pairs, one per reference database")
	flag.StringVar(&opts.Reads, "reads", "", "path to the FASTA/FASTQ reads file")
	flag.StringVar(&opts.ReadsGz, "reads-gz", "", "path to a gzip-compressed FASTA/FASTQ reads file")
	flag.StringVar(&opts.Aligned, "aligned", "", "base path for aligned-reads output")
	flag.StringVar(&opts.Other, "other", "", "base path for rejected-reads output")
	flag.BoolVar(&opts.Fastx, "fastx", false, "write FASTA/FASTQ passthrough reports")
	flag.BoolVar(&opts.Sam, "sam", false, "write a SAM report")
	flag.BoolVar(&opts.SQ, "SQ", false, "include @SQ header lines in the SAM report")
	flag.StringVar(&opts.Blast, "blast", "", `BLAST report format: "0" (pairwise), "1" (tabular), optionally followed by extra column names (cigar, qcov, qstrand)`)
	flag.BoolVar(&opts.Log, "log", false, "write a run-summary log report")
	flag.IntVar(&opts.NumAlignments, "num_alignments", 0, "report at most this many alignments per read")
	flag.IntVar(&opts.Best, "best", 0, "keep only the N best-scoring alignments per read (0 = unlimited)")
	flag.IntVar(&opts.MinLis, "min_lis", opts.MinLis, "minimum LIS length / candidate reference budget per read")
	flag.BoolVar(&opts.PrintAllReads, "print_all_reads", false, "emit a record for every read, including unaligned ones")
	flag.BoolVar(&opts.PairedIn, "paired_in", false, "if either mate aligns, write both to --aligned")
	flag.BoolVar(&opts.PairedOut, "paired_out", false, "only write a pair to --aligned if both mates align")
	flag.IntVar(&opts.Match, "match", opts.Match, "SW match reward")
	flag.IntVar(&opts.Mismatch, "mismatch", opts.Mismatch, "SW mismatch penalty (negative)")
	flag.IntVar(&opts.GapOpen, "gap_open", opts.GapOpen, "SW gap open penalty")
	flag.IntVar(&opts.GapExt, "gap_ext", opts.GapExt, "SW gap extend penalty")
	flag.IntVar(&opts.N, "N", opts.N, "SW penalty applied to ambiguous (N) bases")
	flag.BoolVar(&opts.ForwardOnly, "F", false, "search the forward strand only")
	flag.BoolVar(&opts.ReverseOnly, "R", false, "search the reverse-complement strand only")
	flag.IntVar(&opts.NumProcThreads, "a", opts.NumProcThreads, "number of worker threads")
	flag.Float64Var(&opts.Evalue, "e", opts.Evalue, "E-value significance threshold")
	flag.IntVar(&opts.MemoryMB, "m", opts.MemoryMB, "working-set memory budget in MiB")
	flag.Float64Var(&opts.IDThreshold, "id", 0, "minimum percent identity for the --otu_map/de-novo filters")
	flag.Float64Var(&opts.CoverageThreshold, "coverage", 0, "minimum percent query coverage for the --otu_map/de-novo filters")
	flag.BoolVar(&opts.DeNovoOTU, "de_novo_otu", false, "flag reads that align but fail the identity/coverage filter as de-novo candidates")
	flag.BoolVar(&opts.OTUMap, "otu_map", false, "write an OTU map")
	var passesFlag string
	flag.StringVar(&passesFlag, "passes", "", "comma-separated seed strides for the 3 SeederPass iterations (default 18,9,3)")
	var edgesFlag string
	flag.StringVar(&edgesFlag, "edges", "", "alignment window padding: an integer, or N% of the read length (default 4)")
	flag.IntVar(&opts.NumSeeds, "num_seeds", opts.NumSeeds, "minimum seed hits on a reference before it is tried (a.k.a. seed_hits)")
	flag.BoolVar(&opts.FullSearch, "full_search", false, "keep searching a seed window after an exact match instead of stopping at the first exact match")
	flag.StringVar(&opts.PIDFile, "pid", "", "write the process id to this file")
	var useMmap bool
	flag.BoolVar(&useMmap, "mmap", false, "load reference blocks via mmap instead of streaming")
	flag.Parse()

	opts.Ref = parseRefFlag(refFlag)
	if passesFlag != "" {
		p, err := parsePasses(passesFlag)
		if err != nil {
			log.Fatalf("--passes: %v", err)
		}
		opts.Passes = p
	}
	if edgesFlag != "" {
		n, pct, err := parseEdges(edgesFlag)
		if err != nil {
			log.Fatalf("--edges: %v", err)
		}
		opts.Edges, opts.EdgesPercent = n, pct
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := runopts.WritePIDFile(opts.PIDFile); err != nil {
		log.Fatalf("write pid file: %v", err)
	}

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if err := run(ctx, &opts, useMmap); err != nil {
		log.Fatalf("%+v", err)
	}
	log.Printf("All done")
}

func run(ctx context.Context, opts *runopts.Runopts, useMmap bool) error {
	dbs, err := loadDatabases(ctx, opts.Ref)
	if err != nil {
		return errors.Wrap(err, "load reference databases")
	}

	readsPath := opts.Reads
	if readsPath == "" {
		readsPath = opts.ReadsGz
	}
	log.Printf("reading %s", readsPath)
	reads, err := read.ReadAll(ctx, readsPath, 0)
	if err != nil {
		return errors.Wrap(err, "read input reads")
	}
	log.Printf("loaded %d reads", len(reads))
	for _, rd := range reads {
		rd.Best = opts.MinLis
	}

	writers, err := buildWriters(ctx, opts, dbs)
	if err != nil {
		return errors.Wrap(err, "open report writers")
	}

	coord := &pipeline.Coordinator{
		Opts:        opts,
		Store:       kv.NewMemStore(),
		UseMmap:     useMmap,
		CommandLine: strings.Join(os.Args, " "),
	}

	return coord.Run(ctx, dbs, reads, writers)
}

func loadDatabases(ctx context.Context, refs []runopts.RefPath) ([]pipeline.Database, error) {
	dbs := make([]pipeline.Database, len(refs))
	for i, ref := range refs {
		stats, err := index.LoadStats(ctx, ref.IndexBase)
		if err != nil {
			return nil, errors.Wrapf(err, "load stats for database %d (%s)", i, ref.IndexBase)
		}
		dbs[i] = pipeline.Database{
			Num:       i,
			FastaPath: ref.Fasta,
			IndexBase: ref.IndexBase,
			Stats:     stats,
		}
	}
	return dbs, nil
}

func buildWriters(ctx context.Context, opts *runopts.Runopts, dbs []pipeline.Database) (*pipeline.Writers, error) {
	w := &pipeline.Writers{}

	if opts.Blast != "" {
		f, err := createFile(ctx, opts.Aligned+".blast")
		if err != nil {
			return nil, err
		}
		w.Blast = report.NewBlastWriter(f, report.ParseBlastFormat(opts.Blast))
	}

	if opts.Sam {
		f, err := createFile(ctx, opts.Aligned+".sam")
		if err != nil {
			return nil, err
		}
		refs := report.NewRefTable()
		sq := map[int][]index.SQEntry{}
		order := make([]int, len(dbs))
		for i, db := range dbs {
			refs.AddDatabase(db.Num, db.Stats.SQ)
			sq[db.Num] = db.Stats.SQ
			order[i] = db.Num
		}
		sam, err := report.NewSamWriter(f, opts.SQ, refs, sq, order, strings.Join(os.Args, " "))
		if err != nil {
			return nil, errors.Wrap(err, "write sam header")
		}
		sam.PrintUnaligned = opts.PrintAllReads
		w.Sam = sam
	}

	if opts.Fastx {
		aligned, err := createFile(ctx, opts.Aligned+fastxExt(opts))
		if err != nil {
			return nil, err
		}
		var other io.WriteCloser
		if opts.Other != "" {
			other, err = createFile(ctx, opts.Other+fastxExt(opts))
			if err != nil {
				return nil, err
			}
		}
		var denovo io.WriteCloser
		if opts.DeNovoOTU {
			denovo, err = createFile(ctx, opts.Aligned+"_denovo"+fastxExt(opts))
			if err != nil {
				return nil, err
			}
		}
		w.Fastx = report.NewFastxWriter(aligned, other, denovo, isFastq(opts))
	}

	if opts.OTUMap {
		f, err := createFile(ctx, opts.Aligned+".otu.txt")
		if err != nil {
			return nil, err
		}
		w.OTU = report.NewOTUMap()
		w.OTUOut = f
	}

	if opts.Log {
		f, err := createFile(ctx, opts.Aligned+".log")
		if err != nil {
			return nil, err
		}
		names := make([]string, len(dbs))
		for i, db := range dbs {
			names[i] = db.IndexBase
		}
		w.Log = report.NewRunLog(names)
		w.LogOut = f
	}

	return w, nil
}

// fastxExt guesses the output extension from the input reads path, since
// spec.md section 6 preserves the original record format on passthrough.
func fastxExt(opts *runopts.Runopts) string {
	if isFastq(opts) {
		return ".fastq"
	}
	return ".fasta"
}

func isFastq(opts *runopts.Runopts) bool {
	path := opts.Reads
	if path == "" {
		path = opts.ReadsGz
	}
	return strings.Contains(strings.ToLower(path), "fastq") || strings.Contains(strings.ToLower(path), ".fq")
}

// createFile opens path for writing via grailbio's storage abstraction
// (local disk or a remote backend, per spec.md's ambient-stack choice) and
// adapts it to a plain io.WriteCloser for the report package.
func createFile(ctx context.Context, path string) (io.WriteCloser, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return &fileWriteCloser{f: f, w: f.Writer(ctx), ctx: ctx}, nil
}

type fileWriteCloser struct {
	f   file.File
	w   io.Writer
	ctx context.Context
}

func (w *fileWriteCloser) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *fileWriteCloser) Close() error                { return w.f.Close(w.ctx) }

// parseRefFlag splits "fasta1,index1:fasta2,index2" into RefPath entries.
func parseRefFlag(spec string) []runopts.RefPath {
	if spec == "" {
		return nil
	}
	var refs []runopts.RefPath
	for _, pair := range strings.Split(spec, ":") {
		parts := strings.SplitN(pair, ",", 2)
		if len(parts) != 2 {
			log.Fatalf("--ref: malformed pair %q, want fasta,index_base", pair)
		}
		refs = append(refs, runopts.RefPath{Fasta: parts[0], IndexBase: parts[1]})
	}
	return refs
}

// parsePasses parses "18,9,3" into the 3-stride array of spec.md section
// 4.4.
func parsePasses(spec string) ([3]int, error) {
	var out [3]int
	fields := strings.Split(spec, ",")
	if len(fields) != 3 {
		return out, errors.Errorf("want 3 comma-separated strides, got %q", spec)
	}
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return out, errors.Wrapf(err, "stride %d", i)
		}
		out[i] = n
	}
	return out, nil
}

// parseEdges parses "4" or "10%" into (value, isPercent).
func parseEdges(spec string) (int, bool, error) {
	pct := strings.HasSuffix(spec, "%")
	numeric := strings.TrimSuffix(spec, "%")
	n, err := strconv.Atoi(strings.TrimSpace(numeric))
	if err != nil {
		return 0, false, err
	}
	return n, pct, nil
}
