package transcript

import (
	"math"
	"sort"
)

// Align attributes every recognized span to a speaker turn.
//
// A span takes the speaker of the interval with the largest overlap on
// [start, end). When nothing overlaps, the interval whose midpoint is closest
// to the span's midpoint wins. Ties go to the earliest-starting interval.
// Without intervals every segment has no speaker.
//
// Both sequences are walked once with a shared cursor, so the cost is linear
// for the usual case of increasing spans. Spans with end <= start are dropped.
func Align(spans []Span, intervals []Interval) []Segment {
	turns := sortedIntervals(intervals)
	ahead := nearestAhead(turns)
	out := make([]Segment, 0, len(spans))

	lo := 0
	passed := -1 // among turns[:lo], the one with the latest midpoint
	prevStart := math.Inf(-1)
	for _, sp := range spans {
		if !(sp.End > sp.Start) {
			continue
		}
		seg := Segment{Text: sp.Text, Start: sp.Start, End: sp.End}
		if len(turns) == 0 {
			out = append(out, seg)
			continue
		}

		// spans out of order: restart the sweep instead of skipping turns
		if sp.Start < prevStart {
			lo, passed = 0, -1
		}
		prevStart = sp.Start

		for lo < len(turns) && turns[lo].End <= sp.Start {
			if passed < 0 || midpoint(turns[lo]) > midpoint(turns[passed]) {
				passed = lo
			}
			lo++
		}

		best := -1
		bestOverlap := 0.0
		j := lo
		for ; j < len(turns) && turns[j].Start < sp.End; j++ {
			ov := math.Min(sp.End, turns[j].End) - math.Max(sp.Start, turns[j].Start)
			if ov > bestOverlap {
				bestOverlap = ov
				best = j
			}
		}

		if best < 0 {
			after := -1
			if j < len(turns) {
				after = ahead[j]
			}
			best = nearestTurn(turns, sp, passed, lo, j, after)
		}
		out = append(out, seg.WithSpeaker(turns[best].Speaker))
	}
	return out
}

func midpoint(iv Interval) float64 {
	return (iv.Start + iv.End) / 2
}

// nearestAhead[k] is the index in turns[k:] with the smallest midpoint,
// the lowest index winning ties. A turn that starts after a span can still
// be the closest one even when an earlier-starting turn runs longer.
func nearestAhead(turns []Interval) []int {
	ahead := make([]int, len(turns))
	for k := len(turns) - 1; k >= 0; k-- {
		ahead[k] = k
		if k+1 < len(turns) && midpoint(turns[ahead[k+1]]) < midpoint(turns[k]) {
			ahead[k] = ahead[k+1]
		}
	}
	return ahead
}

// nearestTurn picks the turn closest by midpoint. Every turn is covered by
// one candidate: passed stands for turns that ended before the span, the
// window [lo, hi) is checked directly, and after stands for turns starting
// at or past the span's end. Equal distances go to the earlier turn.
func nearestTurn(turns []Interval, sp Span, passed, lo, hi, after int) int {
	mid := (sp.Start + sp.End) / 2
	best := -1
	bestDist := math.Inf(1)
	consider := func(k int) {
		if k < 0 {
			return
		}
		d := math.Abs(midpoint(turns[k]) - mid)
		if d < bestDist || (d == bestDist && k < best) {
			bestDist = d
			best = k
		}
	}
	consider(passed)
	for k := lo; k < hi; k++ {
		consider(k)
	}
	consider(after)
	return best
}

// sortedIntervals returns a start-ordered copy without inverted intervals
func sortedIntervals(in []Interval) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.End < iv.Start {
			continue
		}
		out = append(out, iv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
