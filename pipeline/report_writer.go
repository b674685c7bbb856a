package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/bioflow/sortmerna-go/accum"
	"github.com/bioflow/sortmerna-go/kv"
	"github.com/bioflow/sortmerna-go/report"
	"github.com/bioflow/sortmerna-go/seq"
)

// Writers bundles every optional output stream of spec.md section 6. A nil
// field means that output was not requested (e.g. --otu_map was not
// passed), and writeReports skips it.
type Writers struct {
	Blast *report.BlastWriter
	Sam   *report.SamWriter
	Fastx *report.FastxWriter
	OTU    *report.OTUMap
	OTUOut io.WriteCloser
	Log    *report.RunLog

	// LogOut is where Log is rendered once the run finishes; nil (and Log
	// left nil too) when --log was not requested.
	LogOut io.WriteCloser

	// Mates maps a read to its paired mate, for --paired_in/--paired_out
	// routing (spec.md section 6); nil for single-end runs.
	Mates map[*seq.Read]*seq.Read
}

// writeReports is the single sequential report pass, run on the calling
// goroutine after every part has been processed, of spec.md section 4.9
// step 4 ("once all (index, part) combinations are exhausted... produce
// the final reports"): for every read, resolve its best alignment's
// reference header and E-value/bitscore, then drive every requested
// report writer, and flush everything at the end.
func (c *Coordinator) writeReports(ctx context.Context, dbs []Database, reads []*seq.Read, refs *report.RefTable, writers *Writers) error {
	if writers == nil {
		return nil
	}

	for _, rd := range reads {
		set, err := c.bestSetFor(ctx, rd)
		if err != nil {
			return err
		}
		best := set.Best()

		if writers.Log != nil {
			writers.Log.ObserveRead(rd.Len(), best != nil)
		}

		if best == nil {
			if err := c.writeUnaligned(writers, rd); err != nil {
				return err
			}
			continue
		}

		refID, refLen := refs.Header(best.IndexNum, best.RefSeq)
		model := c.models[[2]int{best.IndexNum, best.Part}]
		var evalueVal float64
		var bitscore int
		if model != nil {
			evalueVal = model.Evalue(best.Score)
			bitscore = model.Bitscore(best.Score)
		}
		rec := report.NewRecord(rd, *best, refID, refLen, evalueVal, bitscore)

		if writers.Log != nil {
			writers.Log.ObserveMatch(best.IndexNum)
		}

		if writers.Blast != nil {
			if err := writers.Blast.Write(rec); err != nil {
				return errors.Wrap(err, "write blast record")
			}
		}
		if writers.Sam != nil {
			if err := writers.Sam.WriteAlignment(rec); err != nil {
				return errors.Wrap(err, "write sam record")
			}
		}
		if writers.Fastx != nil {
			var mate *seq.Read
			if writers.Mates != nil {
				mate = writers.Mates[rd]
			}
			if err := report.Route(writers.Fastx, rd, mate, c.Opts.PairedIn, c.Opts.PairedOut); err != nil {
				return errors.Wrap(err, "write fastx record")
			}
		}
		if writers.OTU != nil {
			if rd.HitDenovo {
				writers.OTU.AddDenovo(report.ReadID(rd))
			} else {
				writers.OTU.Add(refID, report.ReadID(rd))
			}
		}
	}

	if writers.Log != nil {
		writers.Log.HasOTUs = writers.OTU != nil
		if writers.LogOut != nil {
			if err := writers.Log.WriteTo(writers.LogOut, time.Now()); err != nil {
				return errors.Wrap(err, "write log report")
			}
			if err := writers.LogOut.Close(); err != nil {
				return errors.Wrap(err, "close log report")
			}
		}
	}

	if writers.OTU != nil && writers.OTUOut != nil {
		if err := writers.OTU.WriteTo(writers.OTUOut); err != nil {
			return errors.Wrap(err, "write otu map")
		}
		if err := writers.OTUOut.Close(); err != nil {
			return errors.Wrap(err, "close otu map")
		}
	}

	return c.flushWriters(writers)
}

func (c *Coordinator) writeUnaligned(writers *Writers, rd *seq.Read) error {
	if writers.Sam != nil && writers.Sam.PrintUnaligned {
		if err := writers.Sam.WriteUnaligned(rd); err != nil {
			return errors.Wrap(err, "write sam unaligned record")
		}
	}
	if writers.Fastx != nil {
		var mate *seq.Read
		if writers.Mates != nil {
			mate = writers.Mates[rd]
		}
		if err := report.Route(writers.Fastx, rd, mate, c.Opts.PairedIn, c.Opts.PairedOut); err != nil {
			return errors.Wrap(err, "write fastx unaligned record")
		}
	}
	return nil
}

// bestSetFor returns the read's accumulated AlignmentSet as it stands
// after the last part searched, read back from the KV store where every
// runPart call persists it (spec.md section 4.9 step 3).
func (c *Coordinator) bestSetFor(ctx context.Context, rd *seq.Read) (*accum.AlignmentSet, error) {
	data, ok, err := c.Store.Get(ctx, kv.Key(rd.ID))
	if err != nil {
		return nil, errors.Wrap(err, "restore read state for reporting")
	}
	if !ok {
		return accum.NewAlignmentSet(c.Opts.NumBestHits()), nil
	}
	set, err := kv.DecodeState(data, rd)
	if err != nil {
		return nil, errors.Wrap(err, "decode read state for reporting")
	}
	return set, nil
}

func (c *Coordinator) flushWriters(writers *Writers) error {
	if writers.Blast != nil {
		if err := writers.Blast.Close(); err != nil {
			return errors.Wrap(err, "close blast writer")
		}
	}
	if writers.Sam != nil {
		if err := writers.Sam.Close(); err != nil {
			return errors.Wrap(err, "close sam writer")
		}
	}
	if writers.Fastx != nil {
		if err := writers.Fastx.Close(); err != nil {
			return errors.Wrap(err, "close fastx writer")
		}
	}
	return nil
}
