package engine

import (
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Hotwords maps a phrase to a positive integer bias weight
type Hotwords map[string]int

// ParseHotwordLines reads newline separated "phrase weight" entries.
// The last whitespace separated token is the weight, so phrases may contain
// spaces. Fractional weights are truncated; entries with a missing, invalid
// or non-positive weight are dropped with a warning.
func ParseHotwordLines(s string) Hotwords {
	out := make(Hotwords)
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			log.Printf("[engine] ignoring hotword without weight: %q", strings.TrimSpace(line))
			continue
		}
		w, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			log.Printf("[engine] ignoring hotword with invalid weight: %q", strings.TrimSpace(line))
			continue
		}
		out.add(strings.Join(fields[:len(fields)-1], " "), w)
	}
	return out
}

// NormalizeHotwords applies the ParseHotwordLines rules to a decoded JSON object
func NormalizeHotwords(in map[string]float64) Hotwords {
	out := make(Hotwords)
	for phrase, w := range in {
		out.add(strings.Join(strings.Fields(phrase), " "), w)
	}
	return out
}

func (h Hotwords) add(phrase string, w float64) {
	if phrase == "" {
		log.Printf("[engine] ignoring hotword with empty phrase")
		return
	}
	if math.IsNaN(w) || math.IsInf(w, 0) {
		log.Printf("[engine] ignoring hotword %q: weight is not finite", phrase)
		return
	}
	weight := int(math.Trunc(w))
	if weight <= 0 {
		log.Printf("[engine] ignoring hotword %q: weight %v must be positive", phrase, w)
		return
	}
	h[phrase] = weight
}

// Phrases returns the hotword phrases sorted alphabetically
func (h Hotwords) Phrases() []string {
	phrases := make([]string, 0, len(h))
	for p := range h {
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)
	return phrases
}

// EngineString renders "phrase weight" lines in phrase order, the format
// recognition engines take for hotword biasing
func (h Hotwords) EngineString() string {
	var sb strings.Builder
	for i, p := range h.Phrases() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p)
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(h[p]))
	}
	return sb.String()
}
