package dedup

import "strings"

// Similarity measures how alike two merchant names are on a 0..1 scale. It is
// a cheap character-overlap ratio: the share of the longer name's length
// covered by distinct characters of the shorter name that also occur in the
// longer one. Containment of one name in the other floors the score at 0.8.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	longerSet := make(map[rune]struct{}, len(longer))
	for _, r := range longer {
		longerSet[r] = struct{}{}
	}

	seen := make(map[rune]struct{}, len(shorter))
	matched := 0
	for _, r := range shorter {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if _, ok := longerSet[r]; ok {
			matched++
		}
	}

	sim := float64(matched) / float64(len(longer))
	if strings.Contains(string(longer), string(shorter)) && sim < 0.8 {
		sim = 0.8
	}
	return sim
}
