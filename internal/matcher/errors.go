package matcher

import (
	"errors"
	"fmt"
)

// MatchingError reports annotation input that cannot be matched at all,
// such as an event in a half that does not exist. Empty AI or ground truth
// sets are valid input and never produce one.
type MatchingError struct {
	Kind   string
	ID     int64
	Reason string
}

func (e *MatchingError) Error() string {
	if e.Kind == "" {
		return "matching: " + e.Reason
	}
	return fmt.Sprintf("matching: %s %d: %s", e.Kind, e.ID, e.Reason)
}

func recordError(kind string, id int64, format string, args ...any) *MatchingError {
	return &MatchingError{Kind: kind, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// IsMatchingError reports whether err is or wraps a *MatchingError.
func IsMatchingError(err error) bool {
	var me *MatchingError
	return errors.As(err, &me)
}

func fmtPartition(k partitionKey, ai, corrected, limit int) string {
	return fmt.Sprintf("half %d category %s has %d AI and %d corrected events, above the limit of %d",
		k.half, k.category, ai, corrected, limit)
}
