package cards

import "sort"

// HandRank is the poker-style category of a hand, ordered weakest to strongest.
type HandRank int

const (
	HighCard HandRank = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the human-readable rank name.
func (r HandRank) String() string {
	switch r {
	case HighCard:
		return "high card"
	case OnePair:
		return "pair"
	case TwoPair:
		return "two pair"
	case ThreeOfAKind:
		return "three of a kind"
	case Straight:
		return "straight"
	case Flush:
		return "flush"
	case FullHouse:
		return "full house"
	case FourOfAKind:
		return "four of a kind"
	case StraightFlush:
		return "straight flush"
	case RoyalFlush:
		return "royal flush"
	default:
		return "unknown"
	}
}

// baseDamage maps each rank to its fixed attack damage before modifiers.
var baseDamage = map[HandRank]int{
	HighCard:      5,
	OnePair:       10,
	TwoPair:       15,
	ThreeOfAKind:  25,
	Straight:      35,
	Flush:         45,
	FullHouse:     60,
	FourOfAKind:   80,
	StraightFlush: 100,
	RoyalFlush:    120,
}

// BaseDamage returns the fixed base damage for the rank.
//
// Postcondition: Returns > 0 for every valid rank.
func BaseDamage(r HandRank) int {
	return baseDamage[r]
}

// IsCritical reports whether the rank counts as a critical hit (damage doubled
// before effect multipliers are applied).
func IsCritical(r HandRank) bool {
	return r >= FourOfAKind
}

// EvaluateBest returns the strongest rank formed by any five cards in hand.
// Hands smaller than five cards are ranked on matched-rank categories only
// (straights and flushes need five cards).
//
// Precondition: hand must be non-empty.
// Postcondition: Returns a valid HandRank.
func EvaluateBest(hand []Card) HandRank {
	if len(hand) < 5 {
		return rankByCounts(hand)
	}
	best := HighCard
	// Hands are small (at most ~10 cards), so iterating all 5-card
	// combinations is cheap.
	combo := make([]Card, 5)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == 5 {
			if r := evaluate5(combo); r > best {
				best = r
			}
			return
		}
		for i := start; i <= len(hand)-(5-depth); i++ {
			combo[depth] = hand[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return best
}

// evaluate5 ranks exactly five cards.
func evaluate5(hand []Card) HandRank {
	flush := true
	for _, c := range hand[1:] {
		if c.Suit != hand[0].Suit {
			flush = false
			break
		}
	}

	ranks := make([]int, 5)
	for i, c := range hand {
		ranks[i] = c.Rank
	}
	sort.Ints(ranks)

	straight := isStraight(ranks)

	if flush && straight {
		if ranks[0] == 10 {
			return RoyalFlush
		}
		return StraightFlush
	}

	byCount := rankByCounts(hand)
	switch {
	case byCount == FourOfAKind || byCount == FullHouse:
		return byCount
	case flush:
		return Flush
	case straight:
		return Straight
	default:
		return byCount
	}
}

// isStraight reports whether five sorted distinct ranks form a run,
// including the ace-low wheel (A-2-3-4-5).
func isStraight(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return false
		}
	}
	if sorted[4]-sorted[0] == 4 {
		return true
	}
	// Wheel: 2,3,4,5,A
	return sorted[0] == 2 && sorted[1] == 3 && sorted[2] == 4 && sorted[3] == 5 && sorted[4] == 14
}

// rankByCounts ranks a hand using only matched-rank categories.
func rankByCounts(hand []Card) HandRank {
	counts := make(map[int]int, len(hand))
	for _, c := range hand {
		counts[c.Rank]++
	}
	var quads, trips, pairs int
	for _, n := range counts {
		switch {
		case n >= 4:
			quads++
		case n == 3:
			trips++
		case n == 2:
			pairs++
		}
	}
	switch {
	case quads > 0:
		return FourOfAKind
	case trips > 0 && pairs > 0:
		return FullHouse
	case trips > 0:
		return ThreeOfAKind
	case pairs >= 2:
		return TwoPair
	case pairs == 1:
		return OnePair
	default:
		return HighCard
	}
}
