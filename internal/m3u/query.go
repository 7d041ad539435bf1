package m3u

import "strings"

const (
	// AllGroups selects channels regardless of their group.
	AllGroups = "All"
	// DefaultPageSize is the page length used when no limit is given.
	DefaultPageSize = 50
)

// Query narrows a channel list.
type Query struct {
	// Group keeps only channels of this group. Empty or AllGroups keeps all.
	Group string
	// Search keeps channels whose name contains it, ignoring case.
	Search string
}

// Filter returns the channels matching q, preserving their order.
func Filter(channels []Channel, q Query) []Channel {
	group := q.Group
	if group == AllGroups {
		group = ""
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))

	if group == "" && term == "" {
		return channels
	}

	filtered := make([]Channel, 0)

	for _, ch := range channels {
		if group != "" && ch.Group != group {
			continue
		}

		if term != "" && !strings.Contains(strings.ToLower(ch.Name), term) {
			continue
		}

		filtered = append(filtered, ch)
	}

	return filtered
}

// Page returns the window [offset, offset+limit) of channels. A non-positive
// limit uses DefaultPageSize; out of range offsets yield an empty slice.
func Page(channels []Channel, offset, limit int) []Channel {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if offset < 0 {
		offset = 0
	}

	if offset >= len(channels) {
		return []Channel{}
	}

	end := len(channels)
	if limit < end-offset {
		end = offset + limit
	}

	return channels[offset:end]
}
