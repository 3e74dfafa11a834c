package capture

// keywordThreshold is the keyword count a reading needs to count as good.
// It drops while the session is READY so a card that is already framed does
// not flicker back out on one weak reading, and rises while scanning until
// the recent history looks like a card is really there.
//
// history holds the samples before the current one, oldest first. The
// current reading k is deliberately not in it: a single strong frame must
// not lower its own bar. Callers push k only after computing the threshold.
func keywordThreshold(history []int, k int, ready bool) int {
	if len(history) == 0 {
		if k == 0 {
			return 3
		}
		return 2
	}
	stable := recentlyStable(history)
	if ready {
		if stable {
			return 1
		}
		return 2
	}
	avg := average(history)
	switch {
	case avg >= 2.5 && stable:
		return 2
	case avg >= 1.5:
		return 2
	default:
		return 3
	}
}

// recentlyStable reports whether at least two of the last three samples saw
// two or more keywords.
func recentlyStable(history []int) bool {
	start := max(len(history)-3, 0)
	n := 0
	for _, v := range history[start:] {
		if v >= 2 {
			n++
		}
	}
	return n >= 2
}

func average(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, v := range xs {
		sum += v
	}
	return float64(sum) / float64(len(xs))
}
