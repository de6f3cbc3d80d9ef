package boss

// CurrentPhase determines the active phase for the given health. Health percent
// is currentHP / maxHP * 100; among all phases whose threshold is >= that
// percent, the one with the highest phase number wins. Phases form an ordered
// ladder, so a later, lower-threshold phase overrides earlier ones once health
// has dropped far enough.
//
// Precondition: phases must be non-empty and validated (ascending numbers,
// descending thresholds, first threshold 100); maxHP > 0.
// Postcondition: Returns one of the given phases.
func CurrentPhase(currentHP, maxHP int, phases []Phase) Phase {
	healthPercent := float64(currentHP) / float64(maxHP) * 100.0
	active := phases[0]
	for _, p := range phases {
		if p.Threshold >= healthPercent && p.Number > active.Number {
			active = p
		}
	}
	return active
}

// PhaseByNumber returns the phase with the given number.
//
// Postcondition: Returns (phase, true) if found, or (zero, false) otherwise.
func PhaseByNumber(number int, phases []Phase) (Phase, bool) {
	for _, p := range phases {
		if p.Number == number {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase recomputes the active phase for the given health and reports
// whether it advances past recordedNumber. Phase progression is strictly
// forward-only for the life of an encounter: the comparison is always
// "new number > recorded number", so restoring health never moves a session
// backward.
//
// Postcondition: transitioned is true iff the returned phase's number is
// strictly greater than recordedNumber; when false, the phase matching
// recordedNumber is returned unchanged.
func NextPhase(recordedNumber, currentHP, maxHP int, phases []Phase) (Phase, bool) {
	candidate := CurrentPhase(currentHP, maxHP, phases)
	if candidate.Number > recordedNumber {
		return candidate, true
	}
	if held, ok := PhaseByNumber(recordedNumber, phases); ok {
		return held, false
	}
	// Corrupt recorded number; fall back to the computed phase without
	// reporting a transition.
	return candidate, false
}
