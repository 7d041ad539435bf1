package m3u

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractGroups(t *testing.T) {
	tests := []struct {
		name     string
		channels []Channel
		expected []string
	}{
		{
			name:     "empty",
			channels: nil,
			expected: []string{},
		},
		{
			name:     "deduplicated and sorted",
			channels: []Channel{{Group: "B"}, {Group: "A"}, {Group: "A"}},
			expected: []string{"A", "B"},
		},
		{
			name:     "case-sensitive",
			channels: []Channel{{Group: "news"}, {Group: "News"}, {Group: "NEWS"}},
			expected: []string{"NEWS", "News", "news"},
		},
		{
			name:     "no trimming",
			channels: []Channel{{Group: "Sports "}, {Group: "Sports"}},
			expected: []string{"Sports", "Sports "},
		},
		{
			name:     "code point order",
			channels: []Channel{{Group: "Émissions"}, {Group: "Zoo"}, {Group: "Apple"}, {Group: "apple"}},
			expected: []string{"Apple", "Zoo", "apple", "Émissions"},
		},
		{
			name:     "default group kept",
			channels: []Channel{{Group: DefaultGroup}, {Group: "Kids"}},
			expected: []string{"Kids", DefaultGroup},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ExtractGroups(tt.channels))
		})
	}
}

func TestExtractGroups_IndependentOfChannelOrder(t *testing.T) {
	forward := []Channel{{Group: "Sports"}, {Group: "News"}, {Group: "Movies"}}
	backward := []Channel{{Group: "Movies"}, {Group: "News"}, {Group: "Sports"}}

	require.Equal(t, ExtractGroups(forward), ExtractGroups(backward))
}

func TestCountByGroup(t *testing.T) {
	counts := CountByGroup([]Channel{{Group: "News"}, {Group: "Sports"}, {Group: "News"}})

	require.Equal(t, map[string]int{"News": 2, "Sports": 1}, counts)
}
