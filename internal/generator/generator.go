// Package generator builds N-back stimulus sequences.
package generator

import (
	"fmt"
	"math/rand"
	"time"
)

// Symbol range for generated stimuli.
const (
	MinSymbol = 1
	MaxSymbol = 9
)

// Generator produces randomized stimulus sequences.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns total values in [MinSymbol, MaxSymbol] containing
// min(targetMatches, total-lag) positions where seq[i] == seq[i-lag].
// matchPercent is the chance (0-100) that an eligible position is spent on a
// match while matches are still owed; positions are forced once the owed
// matches would otherwise not fit.
func (g *Generator) Generate(total, targetMatches, matchPercent, lag int) ([]int, error) {
	if total < 1 {
		return nil, fmt.Errorf("total must be >= 1, got %d", total)
	}
	if lag < 1 {
		return nil, fmt.Errorf("lag must be >= 1, got %d", lag)
	}
	if targetMatches < 0 {
		return nil, fmt.Errorf("target matches must be >= 0, got %d", targetMatches)
	}
	if matchPercent < 0 || matchPercent > 100 {
		return nil, fmt.Errorf("match percent must be between 0 and 100, got %d", matchPercent)
	}

	seq := make([]int, total)
	matches := 0
	for i := 0; i < total; i++ {
		if i < lag {
			seq[i] = g.symbol()
			continue
		}
		owed := targetMatches - matches
		remaining := total - i
		if owed > 0 && (owed >= remaining || g.rnd.Intn(100) < matchPercent) {
			seq[i] = seq[i-lag]
			matches++
			continue
		}
		seq[i] = g.symbolExcept(seq[i-lag])
	}
	return seq, nil
}

func (g *Generator) symbol() int {
	return MinSymbol + g.rnd.Intn(MaxSymbol-MinSymbol+1)
}

func (g *Generator) symbolExcept(v int) int {
	n := g.rnd.Intn(MaxSymbol - MinSymbol)
	s := MinSymbol + n
	if s >= v {
		s++
	}
	return s
}

// CountMatches returns the number of positions where seq[i] == seq[i-lag].
func CountMatches(seq []int, lag int) int {
	if lag < 1 {
		return 0
	}
	count := 0
	for i := lag; i < len(seq); i++ {
		if seq[i] == seq[i-lag] {
			count++
		}
	}
	return count
}
