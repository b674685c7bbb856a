package align

// Window is the reference slice geometry an LisBuilder Anchor resolves to
// before SW runs, per the read-geometry table of spec.md section 4.6.
type Window struct {
	// AlignRefStart, AlignQueStart are the anchor's offsets into the
	// reference and read before head/tail padding is applied.
	AlignRefStart int
	AlignQueStart int

	Head        int
	Tail        int
	AlignLength int
}

// SliceBounds returns [start, end) into the full reference sequence that
// SwAligner should be given, and the shift that must be added back to any
// SW-reported reference offset to recover global reference coordinates
// ("the SW offset is shifted by (align_ref_start − head)", spec.md section 3).
func (w Window) SliceBounds() (start, end, shift int) {
	shift = w.AlignRefStart - w.Head
	start = shift
	end = start + w.AlignLength
	return
}

// ComputeWindow resolves the read-geometry table of spec.md section 4.6
// given an LIS anchor (lcsRefStart, lcsQueStart), the reference and read
// lengths, and the user's --edges padding (already resolved from a percent
// via Runopts.EdgesFor).
func ComputeWindow(lcsRefStart, lcsQueStart, refLen, readLen, edges int) Window {
	edgeCap := edges - 1
	if edgeCap < 0 {
		edgeCap = 0
	}

	if lcsRefStart < lcsQueStart {
		queStart := lcsQueStart - lcsRefStart
		w := Window{AlignRefStart: 0, AlignQueStart: queStart}
		switch {
		case refLen < readLen:
			if queStart > readLen-refLen {
				w.AlignLength = refLen - (queStart - (readLen - refLen))
			} else {
				w.AlignLength = refLen
			}
		default:
			w.Tail = min(refLen-readLen, edgeCap)
			w.AlignLength = readLen + w.Head + w.Tail - queStart
		}
		return w
	}

	alignRefStart := lcsRefStart - lcsQueStart
	w := Window{AlignRefStart: alignRefStart, AlignQueStart: 0}
	w.Head = min(alignRefStart, edgeCap)
	if alignRefStart+readLen > refLen {
		w.AlignLength = refLen - alignRefStart - w.Head
	} else {
		w.Tail = min(refLen-alignRefStart-readLen, edgeCap)
		w.AlignLength = readLen + w.Head + w.Tail
	}
	return w
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
