// Package report renders accuracy results for people: aligned console
// tables and XLSX workbooks.
package report

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/review-cli/internal/model"
)

var (
	printer = message.NewPrinter(language.English)
	title   = cases.Title(language.English)
)

// Label turns a snake_case identifier such as "event_detection" into
// "Event Detection".
func Label[T ~string](v T) string {
	return title.String(strings.ReplaceAll(string(v), "_", " "))
}

// Percent formats a ratio as a percentage with one decimal, or "n/a".
func Percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return printer.Sprintf("%.1f%%", *v*100)
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// sortedTypes returns the event types of m ordered by AI count, most
// frequent first.
func sortedTypes(m map[model.EventType]model.TypeBreakdown) []model.EventType {
	types := make([]model.EventType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		a, b := m[types[i]], m[types[j]]
		if a.AICount != b.AICount {
			return a.AICount > b.AICount
		}
		return types[i] < types[j]
	})
	return types
}
