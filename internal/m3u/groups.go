package m3u

import "sort"

// ExtractGroups returns the distinct group labels of channels, sorted
// lexicographically. Matching is exact and case-sensitive.
func ExtractGroups(channels []Channel) []string {
	seen := make(map[string]struct{}, 32)
	groups := make([]string, 0, 32)

	for _, ch := range channels {
		if _, ok := seen[ch.Group]; ok {
			continue
		}

		seen[ch.Group] = struct{}{}
		groups = append(groups, ch.Group)
	}

	sort.Strings(groups)

	return groups
}

// CountByGroup returns the number of channels in each group.
func CountByGroup(channels []Channel) map[string]int {
	counts := make(map[string]int, 32)

	for _, ch := range channels {
		counts[ch.Group]++
	}

	return counts
}
