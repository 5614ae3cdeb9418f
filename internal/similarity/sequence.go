package similarity

import "strings"

// ShingleSize is the n-gram length Sequence compares.
const ShingleSize = 3

// Sequence returns the Jaccard similarity of the ShingleSize-gram sets of
// two token sequences. Sequences shorter than ShingleSize form one shingle.
// Two empty sequences score 1.
func Sequence(a, b []string) float64 {
	sa, sb := shingles(a), shingles(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	small, large := sa, sb
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for s := range small {
		if large[s] {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

func shingles(seq []string) map[string]bool {
	out := make(map[string]bool)
	if len(seq) == 0 {
		return out
	}
	if len(seq) < ShingleSize {
		out[strings.Join(seq, " ")] = true
		return out
	}
	for i := 0; i+ShingleSize <= len(seq); i++ {
		out[strings.Join(seq[i:i+ShingleSize], " ")] = true
	}
	return out
}
