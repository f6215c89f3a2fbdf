package model

import (
	"time"

	"github.com/google/uuid"
)

// MetricCategory is the aspect of AI output a metric measures.
type MetricCategory string

// Metric categories.
const (
	MetricDetection           MetricCategory = "detection"
	MetricTracking            MetricCategory = "tracking"
	MetricTeamAssignment      MetricCategory = "team_assignment"
	MetricJerseyRecognition   MetricCategory = "jersey_recognition"
	MetricEventDetection      MetricCategory = "event_detection"
	MetricEventClassification MetricCategory = "event_classification"
	MetricOverall             MetricCategory = "overall"
)

// MetricCategories lists every category in reporting order.
func MetricCategories() []MetricCategory {
	return []MetricCategory{
		MetricDetection,
		MetricTracking,
		MetricTeamAssignment,
		MetricJerseyRecognition,
		MetricEventDetection,
		MetricEventClassification,
		MetricOverall,
	}
}

// AccuracyMetric is one derived metric. Ratio fields are nil when their
// denominator is zero, which is distinct from a ratio of exactly zero.
type AccuracyMetric struct {
	Category           MetricCategory `json:"category"`
	MatchID            int64          `json:"match_id"`
	WindowStart        time.Time      `json:"window_start"`
	WindowEnd          time.Time      `json:"window_end"`
	Accuracy           *float64       `json:"accuracy"`
	Precision          *float64       `json:"precision"`
	Recall             *float64       `json:"recall"`
	F1                 *float64       `json:"f1_score"`
	TotalPredictions   int            `json:"total_predictions"`
	CorrectPredictions int            `json:"correct_predictions"`
	TruePositives      int            `json:"true_positives"`
	FalsePositives     int            `json:"false_positives"`
	FalseNegatives     int            `json:"false_negatives"`
	CorrectionsCount   int            `json:"corrections_count"`
	Breakdown          map[string]any `json:"breakdown,omitempty"`
}

// KindCounts summarises the matching outcome for one record kind.
type KindCounts struct {
	AICount        int      `json:"ai_count"`
	CorrectedCount int      `json:"corrected_count"`
	TruePositives  int      `json:"true_positives"`
	FalsePositives int      `json:"false_positives"`
	FalseNegatives int      `json:"false_negatives"`
	Accuracy       *float64 `json:"accuracy"`
	Precision      *float64 `json:"precision"`
	Recall         *float64 `json:"recall"`
	F1             *float64 `json:"f1_score"`
}

// TypeBreakdown is the per-event-type accuracy of AI events.
type TypeBreakdown struct {
	AICount  int      `json:"ai_count"`
	Correct  int      `json:"correct"`
	Accuracy *float64 `json:"accuracy"`
}

// TypeCorrection records a matched pair whose event type was changed.
type TypeCorrection struct {
	AIEventID        int64     `json:"ai_event_id"`
	CorrectedEventID int64     `json:"corrected_event_id"`
	From             EventType `json:"from"`
	To               EventType `json:"to"`
}

// Comparison is the per-match AI versus ground truth report.
type Comparison struct {
	MatchID            int64                       `json:"match_id"`
	Events             KindCounts                  `json:"events"`
	EventTypeBreakdown map[EventType]TypeBreakdown `json:"event_type_breakdown"`
	TypeCorrections    []TypeCorrection            `json:"type_corrections"`
	Tracks             KindCounts                  `json:"tracks"`
	TeamAccuracy       *float64                    `json:"team_accuracy"`
	JerseyAccuracy     *float64                    `json:"jersey_accuracy"`
	Balls              KindCounts                  `json:"ball_positions"`
	BallMeanError      *float64                    `json:"ball_mean_error"`
	BallErrorUnit      string                      `json:"ball_error_unit,omitempty"`
	Calibrated         bool                        `json:"calibrated"`
}

// AccuracySnapshot is an immutable set of metrics computed for a match at
// one point in time. Newer snapshots supersede older ones.
type AccuracySnapshot struct {
	ID         uuid.UUID        `json:"id"`
	MatchID    int64            `json:"match_id"`
	ComputedAt time.Time        `json:"computed_at"`
	Metrics    []AccuracyMetric `json:"metrics"`
	Comparison Comparison       `json:"comparison"`
}

// Metric returns the metric for c, or nil.
func (s *AccuracySnapshot) Metric(c MetricCategory) *AccuracyMetric {
	for i := range s.Metrics {
		if s.Metrics[i].Category == c {
			return &s.Metrics[i]
		}
	}
	return nil
}
