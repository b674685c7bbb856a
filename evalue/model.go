// Package evalue implements EvalueModel (spec.md section 4.8): the
// Gumbel-distribution derived minimum SW score, bitscore, and E-value for
// one index part.
package evalue

import "math"

// Model holds one index part's Gumbel (lambda, K) parameters and the
// background-corrected corpus lengths used to derive significance
// thresholds.
type Model struct {
	Lambda float64
	K      float64

	// FullRef, FullRead are the background-length-corrected total
	// reference and read corpus lengths (spec.md section 4.8).
	FullRef  float64
	FullRead float64
}

// NewModel applies the background-length correction of spec.md section
// 4.8 before returning a ready-to-use Model: the expected length of a
// random alignment, L = floor(ln(K*fullRead*fullRef)/H) (H = Shannon
// entropy of the reference's background base frequencies), is subtracted
// from each sequence's contribution to the corpus length.
func NewModel(lambda, k float64, fullRef, fullRead int64, numRefSeqs, numReads int64, backgroundFreq [4]float64) *Model {
	h := shannonEntropy(backgroundFreq)
	correctedRef := float64(fullRef)
	correctedRead := float64(fullRead)
	if h > 0 {
		randomLen := math.Floor(math.Log(k*float64(fullRead)*float64(fullRef)) / h)
		correctedRef -= randomLen * float64(numRefSeqs)
		correctedRead -= randomLen * float64(numReads)
	}
	if correctedRef < 1 {
		correctedRef = 1
	}
	if correctedRead < 1 {
		correctedRead = 1
	}
	return &Model{Lambda: lambda, K: k, FullRef: correctedRef, FullRead: correctedRead}
}

func shannonEntropy(freq [4]float64) float64 {
	h := 0.0
	for _, f := range freq {
		if f > 0 {
			h -= f * math.Log(f)
		}
	}
	return h
}

// searchSpace is K * full_ref * full_read, the normalizing constant shared
// by MinScore and Evalue.
func (m *Model) searchSpace() float64 {
	return m.K * m.FullRef * m.FullRead
}

// MinScore derives the minimum SW score that would produce an E-value at
// or below threshold: S_min = ceil(ln(e_value / (K*full_ref*full_read)) / -lambda).
func (m *Model) MinScore(evalueThreshold float64) int {
	return int(math.Ceil(math.Log(evalueThreshold/m.searchSpace()) / -m.Lambda))
}

// Bitscore computes bitscore = floor((lambda*s - ln K) / ln 2) for a
// reported alignment with SW score s.
func (m *Model) Bitscore(score int) int {
	return int(math.Floor((m.Lambda*float64(score) - math.Log(m.K)) / math.Ln2))
}

// Evalue computes evalue = K * full_ref * full_read * exp(-lambda*s).
func (m *Model) Evalue(score int) float64 {
	return m.searchSpace() * math.Exp(-m.Lambda*float64(score))
}
