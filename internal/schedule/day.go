package schedule

import (
	"sort"

	"confagenda/internal/model"
)

// ResolveActiveDay picks the agenda day to show for today.
//
// An exact date match wins. Otherwise the latest day whose date is before
// today is used, so the last day stays up after the conference. Before the
// conference the earliest day is shown. An empty mapping yields "".
func ResolveActiveDay(today model.Date, dates map[string]model.Date) string {
	labels := SortedDays(dates)
	if len(labels) == 0 {
		return ""
	}

	for _, label := range labels {
		if dates[label].Equal(today) {
			return label
		}
	}

	chosen := ""
	for _, label := range labels {
		if dates[label].After(today) {
			break
		}
		chosen = label
	}
	if chosen != "" {
		return chosen
	}
	return labels[0]
}

// SortedDays returns the labels ordered by date, then label.
func SortedDays(dates map[string]model.Date) []string {
	labels := make([]string, 0, len(dates))
	for label := range dates {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if c := dates[labels[i]].Compare(dates[labels[j]]); c != 0 {
			return c < 0
		}
		return labels[i] < labels[j]
	})
	return labels
}
