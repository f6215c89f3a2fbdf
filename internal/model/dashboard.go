package model

import "time"

// CategorySummary is one category's accuracy across matches, weighted by
// the number of predictions each match contributed.
type CategorySummary struct {
	Accuracy           *float64 `json:"accuracy"`
	TotalPredictions   int      `json:"total_predictions"`
	CorrectPredictions int      `json:"correct_predictions"`
	CorrectionsCount   int      `json:"corrections_count"`
	MatchesCount       int      `json:"matches_count"`
}

// TrendPoint is one category's accuracy within one period.
type TrendPoint struct {
	PeriodStart      time.Time      `json:"period_start"`
	PeriodEnd        time.Time      `json:"period_end"`
	Category         MetricCategory `json:"category"`
	Accuracy         *float64       `json:"accuracy"`
	MatchesCount     int            `json:"matches_count"`
	TotalCorrections int            `json:"total_corrections"`
}

// DashboardTotals are aggregate counts over the latest snapshot of every
// match.
type DashboardTotals struct {
	Matches          int `json:"matches"`
	AIEvents         int `json:"ai_events"`
	CorrectedEvents  int `json:"corrected_events"`
	AITracks         int `json:"ai_tracks"`
	CorrectedTracks  int `json:"corrected_tracks"`
	AIBalls          int `json:"ai_ball_positions"`
	TotalCorrections int `json:"total_corrections"`
}

// MatchSummary is a dashboard row for one match.
type MatchSummary struct {
	MatchID         int64     `json:"match_id"`
	ComputedAt      time.Time `json:"computed_at"`
	Overall         *float64  `json:"overall_accuracy"`
	EventDetection  *float64  `json:"event_detection_accuracy"`
	CorrectionCount int       `json:"corrections_count"`
}

// SkippedMatch names a match left out of the dashboard and why.
type SkippedMatch struct {
	MatchID int64  `json:"match_id"`
	Reason  string `json:"reason"`
}

// Dashboard is the cross-match accuracy overview.
type Dashboard struct {
	GeneratedAt       time.Time                          `json:"generated_at"`
	Overall           *float64                           `json:"overall_accuracy"`
	Categories        map[MetricCategory]CategorySummary `json:"categories"`
	Trend             []TrendPoint                       `json:"trend"`
	EventTypeAccuracy map[EventType]TypeBreakdown        `json:"event_type_accuracy"`
	Totals            DashboardTotals                    `json:"totals"`
	RecentMatches     []MatchSummary                     `json:"recent_matches"`
	Skipped           []SkippedMatch                     `json:"skipped,omitempty"`
}
