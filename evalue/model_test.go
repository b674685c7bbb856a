package evalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformFreq() [4]float64 { return [4]float64{0.25, 0.25, 0.25, 0.25} }

func TestMinScoreEvalueRoundTrip(t *testing.T) {
	m := NewModel(0.625, 0.41, 1_000_000, 1_000_000, 10, 100, uniformFreq())
	threshold := 0.01

	minScore := m.MinScore(threshold)
	assert.LessOrEqual(t, m.Evalue(minScore), threshold*1.01)
	assert.Greater(t, m.Evalue(minScore-1), threshold)
}

func TestBitscoreIncreasesWithScore(t *testing.T) {
	m := NewModel(0.625, 0.41, 1_000_000, 1_000_000, 10, 100, uniformFreq())
	assert.Less(t, m.Bitscore(50), m.Bitscore(100))
}

func TestEvalueDecreasesWithScore(t *testing.T) {
	m := NewModel(0.625, 0.41, 1_000_000, 1_000_000, 10, 100, uniformFreq())
	assert.Greater(t, m.Evalue(50), m.Evalue(100))
}
