package report

import (
	"fmt"
	"io"
	"time"
)

// RunLog accumulates the summary counters spec.md section 6 requires of
// the log report: total reads, E-value pass/fail split, per-database match
// percentages, read-length extrema, and (if OTU clustering ran) the total
// OTU count.
type RunLog struct {
	TotalReads    int
	PassedEvalue  int
	FailedEvalue  int
	MinReadLen    int
	MaxReadLen    int
	sumReadLen    int64
	DBNames       []string
	MatchedPerDB  []int
	TotalOTUs     int
	HasOTUs       bool
}

// NewRunLog returns an empty RunLog sized for numDBs databases.
func NewRunLog(dbNames []string) *RunLog {
	return &RunLog{DBNames: dbNames, MatchedPerDB: make([]int, len(dbNames))}
}

// ObserveRead folds one read's length and pass/fail outcome into the
// running totals.
func (l *RunLog) ObserveRead(readLen int, passedEvalue bool) {
	l.TotalReads++
	l.sumReadLen += int64(readLen)
	if l.TotalReads == 1 || readLen < l.MinReadLen {
		l.MinReadLen = readLen
	}
	if readLen > l.MaxReadLen {
		l.MaxReadLen = readLen
	}
	if passedEvalue {
		l.PassedEvalue++
	} else {
		l.FailedEvalue++
	}
}

// ObserveMatch credits dbIdx with one more classified read, for the
// per-database percentage line.
func (l *RunLog) ObserveMatch(dbIdx int) {
	if dbIdx >= 0 && dbIdx < len(l.MatchedPerDB) {
		l.MatchedPerDB[dbIdx]++
	}
}

func (l *RunLog) meanReadLen() float64 {
	if l.TotalReads == 0 {
		return 0
	}
	return float64(l.sumReadLen) / float64(l.TotalReads)
}

// WriteTo renders the log report (spec.md section 6): counts, per-database
// percentages, length stats, OTU total if applicable, and a wall-clock
// timestamp.
func (l *RunLog) WriteTo(w io.Writer, now time.Time) error {
	if _, err := fmt.Fprintf(w, "Results for run on %s\n\n", now.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, " Total reads: %d\n", l.TotalReads); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, " Passing E-value: %d\n Failing E-value: %d\n", l.PassedEvalue, l.FailedEvalue); err != nil {
		return err
	}
	for i, name := range l.DBNames {
		pct := 0.0
		if l.TotalReads > 0 {
			pct = 100 * float64(l.MatchedPerDB[i]) / float64(l.TotalReads)
		}
		if _, err := fmt.Fprintf(w, " %s: %d reads (%.2f%%)\n", name, l.MatchedPerDB[i], pct); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, " Read length: min %d, max %d, mean %.2f\n", l.MinReadLen, l.MaxReadLen, l.meanReadLen()); err != nil {
		return err
	}
	if l.HasOTUs {
		if _, err := fmt.Fprintf(w, " Total OTUs: %d\n", l.TotalOTUs); err != nil {
			return err
		}
	}
	return nil
}
