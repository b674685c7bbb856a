// Package pipeline implements ReadPipeline orchestration (spec.md section
// 4.9) and the concurrency runtime described in section 5: a bounded read
// queue and a worker pool running the SeederPass -> LisBuilder -> SwAligner
// -> AlignmentAccumulator cascade. Per-read state is persisted at the end of
// each index part, and the reports are produced in one sequential pass on
// the calling goroutine after the last part; there is no write queue and no
// separate writer goroutine.
//
// The outer (index_number, index_part) loop and the reader/worker-pool
// shape follow cmd/bio-fusion/main.go's processFASTQ (request/
// response channels, a WaitGroup per stage, a mutex-guarded shared counter
// struct) per SPEC_FULL.md's AMBIENT STACK section.
package pipeline

import (
	"context"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bioflow/sortmerna-go/accum"
	"github.com/bioflow/sortmerna-go/align"
	"github.com/bioflow/sortmerna-go/evalue"
	"github.com/bioflow/sortmerna-go/index"
	"github.com/bioflow/sortmerna-go/kv"
	"github.com/bioflow/sortmerna-go/report"
	"github.com/bioflow/sortmerna-go/runopts"
	"github.com/bioflow/sortmerna-go/seq"
)

// readQueueCapacity is the bounded read-queue depth of spec.md section 5
// ("default capacity = 100").
const readQueueCapacity = 100

// Database is one loaded --ref database: its FASTA/index base paths and the
// stats sidecar. The per-part E-value model is derived from the stats in
// runPart and cached in Coordinator.models.
type Database struct {
	Num       int
	FastaPath string
	IndexBase string
	Stats     *index.Stats
}

// Coordinator wires the runopts, the KV store, and the report writers
// around the seed/align/accumulate core, and drives the outer per-(index,
// part) loop of spec.md section 4.9.
type Coordinator struct {
	Opts  *runopts.Runopts
	Store kv.Store

	// UseMmap selects the reference block's mmap fast path (spec.md
	// section 9 design note); false uses the streaming loader.
	UseMmap bool

	// CommandLine is echoed into the SAM @PG line.
	CommandLine string

	counters sharedCounters

	// models caches the per-(database, part) E-value model, keyed by
	// [2]int{dbNum, part}, so writeReports can recompute bitscore/E-value
	// for a read's best alignment without reloading an already-dropped
	// index part (spec.md section 4.8).
	models map[[2]int]*evalue.Model
}

// Run drives the full classification: for every database and every part of
// that database (in the order they were given), load the SeedIndex and
// ReferenceBlock, restore per-read state from the KV store, classify every
// read against this part on the requested strand(s), then persist updated
// state before moving to the next part. After the last part, it writes the
// accumulated reports.
func (c *Coordinator) Run(ctx context.Context, dbs []Database, reads []*seq.Read, writers *Writers) error {
	refs := report.NewRefTable()
	for _, db := range dbs {
		refs.AddDatabase(db.Num, db.Stats.SQ)
	}

	for _, db := range dbs {
		for part := 0; part < len(db.Stats.Parts); part++ {
			if err := c.runPart(ctx, db, part, reads); err != nil {
				return errors.Wrapf(err, "database %d part %d", db.Num, part)
			}
		}
	}
	return c.writeReports(ctx, dbs, reads, refs, writers)
}

func (c *Coordinator) runPart(ctx context.Context, db Database, part int, reads []*seq.Read) error {
	log.Printf("loading index %d part %d", db.Num, part)
	seedIdx, err := index.LoadSeedIndex(ctx, db.IndexBase, part, int(db.Stats.Lnwin))
	if err != nil {
		return errors.Wrap(err, "load seed index")
	}
	refBlock, err := index.LoadReferenceBlock(ctx, db.FastaPath, db.Stats.Parts[part], c.UseMmap)
	if err != nil {
		return errors.Wrap(err, "load reference block")
	}
	defer refBlock.Close()

	model := evalue.NewModel(
		gumbelLambda, gumbelK,
		db.Stats.FullRef, int64(sumReadLens(reads)),
		int64(db.Stats.NumSeq), int64(len(reads)),
		db.Stats.BackgroundFreq,
	)
	if c.models == nil {
		c.models = map[[2]int]*evalue.Model{}
	}
	c.models[[2]int{db.Num, part}] = model

	sets, err := c.restoreSets(ctx, reads)
	if err != nil {
		return err
	}

	w := &worker{
		opts:       c.Opts,
		seedIdx:    seedIdx,
		refBlock:   refBlock,
		model:      model,
		aligner:    &align.Aligner{Params: align.ScoreParams{Match: c.Opts.Match, Mismatch: c.Opts.Mismatch, GapOpen: c.Opts.GapOpen, GapExt: c.Opts.GapExt, N: c.Opts.N}},
		dbNum:      db.Num,
		part:       part,
		counters:   &c.counters,
		heuristic1: true,
	}

	if err := c.runWorkerPool(ctx, reads, sets, w); err != nil {
		return err
	}

	return c.persistSets(ctx, reads, sets, db.Num, part)
}

// runWorkerPool feeds reads through a bounded channel to NumProcThreads
// workers, each running the cascade for every requested strand (spec.md
// section 5: "queue push when full blocks the reader; queue pop when empty
// blocks a worker until done-adding is observed").
func (c *Coordinator) runWorkerPool(ctx context.Context, reads []*seq.Read, sets map[*seq.Read]*accum.AlignmentSet, w *worker) error {
	n := c.Opts.NumProcThreads
	if n <= 0 {
		n = runtime.NumCPU()
	}
	readCh := make(chan *seq.Read, readQueueCapacity)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			for rd := range readCh {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				w.classify(rd, sets[rd])
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(readCh)
		for _, rd := range reads {
			select {
			case readCh <- rd:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

func (c *Coordinator) restoreSets(ctx context.Context, reads []*seq.Read) (map[*seq.Read]*accum.AlignmentSet, error) {
	sets := make(map[*seq.Read]*accum.AlignmentSet, len(reads))
	for _, rd := range reads {
		data, ok, err := c.Store.Get(ctx, kv.Key(rd.ID))
		if err != nil {
			return nil, errors.Wrap(err, "restore read state")
		}
		if !ok {
			sets[rd] = accum.NewAlignmentSet(c.Opts.NumBestHits())
			if rd.Best == 0 {
				rd.Best = c.Opts.MinLis
			}
			continue
		}
		set, err := kv.DecodeState(data, rd)
		if err != nil {
			return nil, errors.Wrap(err, "decode read state")
		}
		sets[rd] = set
	}
	return sets, nil
}

// persistSets writes every processed read's updated AlignmentSet to the KV
// store and flushes it, per spec.md section 4.9 step 3 ("offload the
// AlignmentSets for future parts by persisting to the KV store") and
// section 8 scenario S6: a read that matched nothing in this part still
// gets its checkpoint fields written ("after part 1 processing, the read's
// KV state has is_hit = false, lastPart = 0") so resuming from part 2 knows
// part 1 was already searched, not just which reads found a new hit in it.
func (c *Coordinator) persistSets(ctx context.Context, reads []*seq.Read, sets map[*seq.Read]*accum.AlignmentSet, dbNum, part int) error {
	for _, rd := range reads {
		rd.LastIndex = dbNum
		rd.LastPart = part
		data := kv.EncodeState(rd, sets[rd])
		if err := c.Store.Put(ctx, kv.Key(rd.ID), data); err != nil {
			return errors.Wrap(err, "persist read state")
		}
		rd.IsNewHit = false
	}
	return c.Store.Flush(ctx)
}

func sumReadLens(reads []*seq.Read) int {
	total := 0
	for _, rd := range reads {
		total += rd.Len()
	}
	return total
}

// gumbelLambda, gumbelK are the Gumbel-distribution parameters spec.md
// section 6 says are loaded "from the index's stats sidecar"; the on-disk
// .stats layout spec.md defines does not reserve fields for them (only
// background frequencies and full_ref), so this rewrite takes them as the
// commonly-published BLASTN nucleotide defaults until a sidecar format
// extension carries them explicitly -- left as an open question, recorded
// in DESIGN.md.
const (
	gumbelLambda = 0.625
	gumbelK      = 0.41
)
