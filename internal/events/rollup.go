package events

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RollupRow aggregates the alerts of one class over the query window.
// Confidence quantiles describe how strong the corroborating detections were,
// which is the first thing to look at when tuning per-class thresholds.
type RollupRow struct {
	ClassName     string  `json:"class_name"`
	Count         int     `json:"count"`
	MaxConfidence float64 `json:"max_confidence"`
	AvgConfidence float64 `json:"avg_confidence"`
	P50Confidence float64 `json:"p50_confidence"`
	P85Confidence float64 `json:"p85_confidence"`
	P98Confidence float64 `json:"p98_confidence"`
}

// Rollup aggregates events from the last N days per class, ordered by count
// descending then class name.
func (s *Store) Rollup(days int) ([]RollupRow, error) {
	if days <= 0 {
		days = 1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(TimestampFormat)

	s.mu.Lock()
	rows, err := s.db.Query(
		`SELECT class_name, confidence FROM events WHERE timestamp >= ? ORDER BY class_name`, cutoff)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	confidences := make(map[string][]float64)
	for rows.Next() {
		var class string
		var conf float64
		if err := rows.Scan(&class, &conf); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		confidences[class] = append(confidences[class], conf)
	}
	rows.Close()
	s.mu.Unlock()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RollupRow, 0, len(confidences))
	for class, conf := range confidences {
		sort.Float64s(conf)
		row := RollupRow{
			ClassName:     class,
			Count:         len(conf),
			MaxConfidence: conf[len(conf)-1],
			AvgConfidence: stat.Mean(conf, nil),
			P50Confidence: stat.Quantile(0.50, stat.Empirical, conf, nil),
			P85Confidence: stat.Quantile(0.85, stat.Empirical, conf, nil),
			P98Confidence: stat.Quantile(0.98, stat.Empirical, conf, nil),
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ClassName < out[j].ClassName
	})
	return out, nil
}
