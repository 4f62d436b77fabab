package rules

// Overlaps reports whether a and b share any time. Touching periods
// (a.To == b.From) do not overlap.
func Overlaps(a, b Period) bool {
	return !(a.To <= b.From || b.To <= a.From)
}

func HasOverlap(candidate Period, existing []Period) bool {
	for _, p := range existing {
		if Overlaps(candidate, p) {
			return true
		}
	}
	return false
}

// ValidateNoOverlap fails on the first period in existing that overlaps candidate.
func ValidateNoOverlap(candidate Period, existing []Period) error {
	for _, p := range existing {
		if Overlaps(candidate, p) {
			return newError(KindPeriodOverlap, "%s overlaps existing %s", candidate, p)
		}
	}
	return nil
}
