package geometry

// ReprojectionStats summarises how far each stated pitch point lies from
// where the fitted transform sends its pixel point, in pitch units.
type ReprojectionStats struct {
	Mean       float64   `json:"mean"`
	Max        float64   `json:"max"`
	WorstIndex int       `json:"worst_index"`
	PerPoint   []float64 `json:"per_point"`
}

// Reprojection projects every pixel point through h and measures the
// residual against the stated pitch point.
func Reprojection(h *Homography, pairs []Correspondence) (ReprojectionStats, error) {
	stats := ReprojectionStats{
		WorstIndex: -1,
		PerPoint:   make([]float64, len(pairs)),
	}
	if len(pairs) == 0 {
		return stats, nil
	}

	var total float64
	for i, p := range pairs {
		projected, err := h.Apply(p.Pixel)
		if err != nil {
			return ReprojectionStats{}, PointError(i, p.Label, "cannot be reprojected: %v", err)
		}
		d := Distance(projected, p.Pitch)
		stats.PerPoint[i] = d
		total += d
		if stats.WorstIndex < 0 || d > stats.Max {
			stats.Max = d
			stats.WorstIndex = i
		}
	}
	stats.Mean = total / float64(len(pairs))
	return stats, nil
}
