package transcript

// DefaultMergeThreshold is the gap in seconds below which consecutive
// segments of the same speaker are joined
const DefaultMergeThreshold = 8.0

// Merge joins adjacent segments of the same speaker whose gap
// (next.Start - current.End) is at most threshold seconds.
//
// The pass is greedy left to right: each segment is compared against the
// accumulated block, never against the original neighbour. A negative
// threshold behaves like zero.
func Merge(segs []Segment, threshold float64) []Segment {
	if len(segs) == 0 {
		return nil
	}
	if threshold < 0 {
		threshold = 0
	}

	out := make([]Segment, 0, len(segs))
	acc := segs[0]
	for _, next := range segs[1:] {
		if acc.sameSpeaker(next) && next.Start-acc.End <= threshold {
			if next.End > acc.End {
				acc.End = next.End
			}
			acc.Text = joinText(acc.Text, next.Text)
			continue
		}
		out = append(out, acc)
		acc = next
	}
	return append(out, acc)
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
