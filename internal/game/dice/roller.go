package dice

import "go.uber.org/zap"

// Range returns a uniform random int in [min, max] inclusive.
//
// Precondition: min <= max; src must be non-nil.
// Postcondition: min <= result <= max.
func Range(min, max int, src Source) int {
	if min == max {
		return min
	}
	return min + src.Intn(max-min+1)
}

// WeightedIndex selects an index from weights by a priority-weighted random draw:
// sum all weights, draw a uniform value in [0, total), and subtract each weight in
// iteration order until the remainder goes below zero. Ties break toward the lower
// index, so selection is deterministic given the slice order and the Source.
//
// Precondition: weights must be non-empty; src must be non-nil.
// Postcondition: 0 <= result < len(weights). Entries with weight <= 0 are never
// selected unless every entry is <= 0, in which case index 0 is returned.
func WeightedIndex(weights []int, src Source) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0
	}
	draw := src.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		draw -= w
		if draw < 0 {
			return i
		}
	}
	// Unreachable when the precondition holds; guard against weight mutation races.
	return len(weights) - 1
}

// Roller wraps a Source and logger so every draw leaves an audit trail.
// All draws are logged at debug level with their bounds and result.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that draws from src and logs each draw to logger.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn returns a random int in [0, n), logging the draw.
//
// Precondition: n > 0.
func (r *Roller) Intn(n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("random draw",
		zap.Int("bound", n),
		zap.Int("value", v),
	)
	return v
}

// Range returns a random int in [min, max] inclusive, logging the draw.
//
// Precondition: min <= max.
func (r *Roller) Range(min, max int) int {
	v := Range(min, max, r.src)
	r.logger.Debug("random range draw",
		zap.Int("min", min),
		zap.Int("max", max),
		zap.Int("value", v),
	)
	return v
}
