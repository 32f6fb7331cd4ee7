package matching

// Scorer provides string comparison algorithms
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Levenshtein returns 1 - distance/maxLen, or 0.0 when both strings are empty
func (s *Scorer) Levenshtein(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 0.0
	}
	distance := s.LevenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the byte-level edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// SimilarText returns the number of matching characters found by repeatedly
// taking the longest common substring and recursing on both sides of it
func (s *Scorer) SimilarText(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	posA, posB, longest := longestCommonSubstring(a, b)
	if longest == 0 {
		return 0
	}

	return longest +
		s.SimilarText(a[:posA], b[:posB]) +
		s.SimilarText(a[posA+longest:], b[posB+longest:])
}

// SimilarTextRatio returns 2*SimilarText / (len(a)+len(b)) in [0,1]
func (s *Scorer) SimilarTextRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0.0
	}
	return float64(2*s.SimilarText(a, b)) / float64(total)
}

// longestCommonSubstring returns the first longest common substring, scanning a then b
func longestCommonSubstring(a, b string) (posA, posB, longest int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > longest {
				posA, posB, longest = i, j, k
			}
		}
	}
	return posA, posB, longest
}
