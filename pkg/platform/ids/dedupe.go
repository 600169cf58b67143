// Package ids provides identifier-slice utilities shared across services.
package ids

// Dedupe removes duplicates and non-positive identifiers from a slice.
// Order of first occurrence is preserved.
//
// Example:
//
//	Dedupe([]int64{3, 3, 5, 0, 9})
//	// Returns: []int64{3, 5, 9}
func Dedupe(values []int64) []int64 {
	if len(values) == 0 {
		return values
	}

	seen := make(map[int64]struct{}, len(values))
	result := make([]int64, 0, len(values))

	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}

// DedupeCapped is like Dedupe but keeps at most limit identifiers. A limit of
// zero or less means unbounded. The second return reports whether anything
// was dropped to satisfy the limit.
func DedupeCapped(values []int64, limit int) ([]int64, bool) {
	deduped := Dedupe(values)
	if limit <= 0 || len(deduped) <= limit {
		return deduped, false
	}
	return deduped[:limit], true
}
