// Package estimation computes manufacturing-time estimates (in days) and
// provides both the estimation server handler and the client used by the
// configuration service to reach it.
package estimation

import (
	"math"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rand is the randomness the estimate draws on. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// Calculator implements the estimation formula. The result is
// intentionally random; callers should treat it as a black box.
type Calculator struct {
	rnd Rand
}

// NewCalculator uses the process-wide source when rnd is nil.
func NewCalculator(rnd Rand) *Calculator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Calculator{rnd: rnd}
}

// CharCount sums accessory name lengths with whitespace removed.
func CharCount(accessories []string) int {
	total := 0
	for _, name := range accessories {
		total += utf8.RuneCountInString(strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, name))
	}
	return total
}

// Estimate returns charCount*3 plus a uniform 1..90 day jitter, divided by
// a uniform 2.0..4.0 discount for good clients and rounded.
func (c *Calculator) Estimate(accessories []string, goodClient bool) int {
	base := float64(CharCount(accessories)*3 + c.rnd.IntN(90) + 1)
	if goodClient {
		discount := c.rnd.Float64()*2 + 2
		return int(math.Round(base / discount))
	}
	return int(math.Round(base))
}
