package scheduler

import (
	"math"
	"sort"
)

// allocate splits budget seconds across topics proportionally to weights.
// Every funded topic receives at least floor seconds and at most capShare of
// the budget; the result sums exactly to budget. Weights must be sorted by
// priority: trailing topics that cannot receive the floor get zero.
//
// The split is a water fill: a single rate is found such that clamping
// rate*weight into [floor, ceiling] for every topic uses the whole budget, so
// heavier topics never get less than lighter ones and equal weights are
// treated alike. When too few topics are funded for the ceiling to absorb the
// budget, the ceiling is lifted and the split stays proportional.
func allocate(weights []float64, budget, floor int, capShare float64) []int {
	out := make([]int, len(weights))
	if len(weights) == 0 || budget <= 0 {
		return out
	}

	funded := len(weights)
	if floor > 0 && funded > budget/floor {
		funded = budget / floor
	}
	if funded == 0 {
		out[0] = budget
		return out
	}

	w := weights[:funded]
	total := float64(budget)
	lo := float64(floor)
	hi := capShare * total
	if fill(w, math.Inf(1), lo, hi) < total {
		hi = total
	}

	amounts := make([]float64, funded)
	if maxWeight(w) <= 0 {
		for i := range amounts {
			amounts[i] = total / float64(funded)
		}
	} else {
		rate := solveRate(w, total, lo, hi)
		for i, wi := range w {
			amounts[i] = snap(clamp(rate*wi, lo, hi))
		}
	}

	return roundLargestRemainder(amounts, budget, out)
}

// solveRate bisects for the rate at which the clamped fill equals total.
func solveRate(w []float64, total, lo, hi float64) float64 {
	low, high := 0.0, hi/minPositive(w)
	for i := 0; i < 200 && high-low > 1e-12*high; i++ {
		mid := (low + high) / 2
		if fill(w, mid, lo, hi) < total {
			low = mid
		} else {
			high = mid
		}
	}
	return high
}

func fill(w []float64, rate, lo, hi float64) float64 {
	var sum float64
	for _, wi := range w {
		if wi <= 0 {
			sum += lo
			continue
		}
		sum += clamp(rate*wi, lo, hi)
	}
	return sum
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// snap drops bisection noise so equal shares round identically.
func snap(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func maxWeight(w []float64) float64 {
	m := 0.0
	for _, wi := range w {
		m = math.Max(m, wi)
	}
	return m
}

func minPositive(w []float64) float64 {
	m := math.Inf(1)
	for _, wi := range w {
		if wi > 0 {
			m = math.Min(m, wi)
		}
	}
	return m
}

func roundLargestRemainder(amounts []float64, budget int, out []int) []int {
	type frac struct {
		idx  int
		part float64
	}

	fracs := make([]frac, len(amounts))
	sum := 0
	for i, a := range amounts {
		whole := math.Floor(a)
		out[i] = int(whole)
		sum += out[i]
		fracs[i] = frac{idx: i, part: a - whole}
	}

	sort.SliceStable(fracs, func(a, b int) bool { return fracs[a].part > fracs[b].part })
	for i := 0; sum < budget; i = (i + 1) % len(fracs) {
		out[fracs[i].idx]++
		sum++
	}
	for i := len(fracs) - 1; sum > budget; i = (i - 1 + len(fracs)) % len(fracs) {
		if out[fracs[i].idx] > 0 {
			out[fracs[i].idx]--
			sum--
		}
	}
	return out
}
