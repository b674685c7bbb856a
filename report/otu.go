package report

import (
	"io"

	"github.com/biogo/store/llrb"

	"github.com/bioflow/sortmerna-go/seq"
)

// otuKey is an llrb.Comparable keyed by reference id, following the
// key/Compare pattern of grailbio-bio's bampair.ShardInfo.
type otuKey struct {
	ref   string
	reads *[]string
}

func (k otuKey) Compare(c llrb.Comparable) int {
	o := c.(otuKey)
	switch {
	case k.ref < o.ref:
		return -1
	case k.ref > o.ref:
		return 1
	default:
		return 0
	}
}

// OTUMap accumulates the operational-taxonomic-unit mapping of spec.md
// section 6: for each reference sequence, every read whose highest-scoring
// alignment (AlignmentSet.MaxIndex, spec.md section 3) landed on it. The
// OTU map is mutated only by the pipeline's sequential report pass, so
// this type is not internally synchronized. References are kept in an
// llrb.Tree so WriteTo's in-order walk emits them sorted by id without a
// separate sort pass.
type OTUMap struct {
	byRef llrb.Tree
}

// NewOTUMap returns an empty OTUMap.
func NewOTUMap() *OTUMap {
	return &OTUMap{}
}

// Add records that readID's best alignment landed on refID.
func (m *OTUMap) Add(refID, readID string) {
	if existing := m.byRef.Get(otuKey{ref: refID}); existing != nil {
		k := existing.(otuKey)
		*k.reads = append(*k.reads, readID)
		return
	}
	reads := []string{readID}
	m.byRef.Insert(otuKey{ref: refID, reads: &reads})
}

// AddDenovo records a de-novo-flagged read under a reserved pseudo-reference
// bucket, recovering the --de_novo_otu clustering of spec.md section 9's
// supplemented features.
func (m *OTUMap) AddDenovo(readID string) {
	m.Add("denovo", readID)
}

// WriteTo writes one TAB-separated line per reference sequence that has at
// least one aligned read: "ref_id\tread_id\tread_id...\n", references
// visited in ascending id order via the tree's in-order walk.
func (m *OTUMap) WriteTo(w io.Writer) error {
	var werr error
	m.byRef.Do(func(c llrb.Comparable) (done bool) {
		k := c.(otuKey)
		line := k.ref
		for _, readID := range *k.reads {
			line += "\t" + readID
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			werr = err
			return true
		}
		return false
	})
	return werr
}

// ReadID formats a read's stable identity as the OTU map's read-id column.
func ReadID(rd *seq.Read) string {
	if rd.Header != "" {
		return rd.Header
	}
	return ReadIDFallback(rd.ID)
}

// ReadIDFallback renders a ReadID when a read carries no header (defensive;
// every real input record has one).
func ReadIDFallback(id seq.ReadID) string {
	return itoaPair(id.ReadfileIdx, id.ReadNum)
}

func itoaPair(a, b int) string {
	return itoa(a) + ":" + itoa(b)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
