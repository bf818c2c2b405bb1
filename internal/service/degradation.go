package service

import "strings"

const degradationClear = "clear"

// ParseDegradationAssignments turns the macro engine's comma separated
// assignment list ("smudge, glare, smudge") into per-category counts.
// "clear" marks an unaffected box and is not a category.
func ParseDegradationAssignments(assignments string) map[string]int64 {
	counts := map[string]int64{}
	for _, part := range strings.Split(assignments, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name == "" || strings.EqualFold(name, degradationClear) {
			continue
		}
		counts[name]++
	}
	return counts
}

func resolveDegradationCounts(counts map[string]int64, assignments *string) map[string]int64 {
	if counts != nil {
		return counts
	}
	if assignments == nil {
		return nil
	}
	return ParseDegradationAssignments(*assignments)
}
