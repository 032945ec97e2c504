// Package events defines the payloads published for downstream consumers.
package events

import "time"

// RunRecorded is emitted whenever a run row is written, whether logged
// manually or upserted by the provider sync.
type RunRecorded struct {
	RunID            string    `json:"run_id"`
	UserID           string    `json:"user_id"`
	DistanceKm       float64   `json:"distance_km"`
	DurationMin      float64   `json:"duration_min"`
	XP               int       `json:"xp"`
	Date             string    `json:"date"`
	Source           string    `json:"source"`
	SourceActivityID string    `json:"source_activity_id,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}
