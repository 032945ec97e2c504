// Package domain defines the core types and contracts for the run-league service.
package domain

import (
	"context"
	"errors"
	"time"
)

// Run sources. Provider runs carry the provider's activity id as dedup key.
const (
	SourceManual = "manual"
	SourceStrava = "strava"
)

// ErrCredentialNotFound is returned when a user has no provider connection.
var ErrCredentialNotFound = errors.New("provider credential not found")

// Run is one completed run as stored in Postgres. XP is derived from the
// distance when the row is written and never recomputed afterwards, except
// on re-sync of the same provider activity where the whole row is replaced.
type Run struct {
	ID               string
	UserID           string
	DistanceKm       float64
	DurationMin      float64
	Date             time.Time // calendar day, midnight UTC
	XP               int
	Source           string
	SourceActivityID *string
	ElevationGain    *float64
	CreatedAt        time.Time
}

// RunTotals is the per-user aggregate the leaderboard is built from.
type RunTotals struct {
	UserID      string
	DistanceKm  float64
	DurationMin float64
	XP          int
	Runs        int
}

// DisplayInfo carries the profile fields the leaderboard renders.
type DisplayInfo struct {
	Nickname  string
	AvatarURL string
}

// Credential is a user's OAuth connection to the activity provider.
// It is mutated in place on refresh and never deleted by this service.
type Credential struct {
	UserID       string
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialPatch is the subset written back after a token refresh.
type CredentialPatch struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RunRepository captures run persistence operations.
type RunRepository interface {
	// FetchByDateRange returns all runs whose date falls in [from, to],
	// inclusive on both ends, compared as calendar dates.
	FetchByDateRange(ctx context.Context, from, to time.Time) ([]Run, error)
	// UpsertBatch writes provider runs using source_activity_id as the
	// conflict target, overwriting existing rows with current values.
	UpsertBatch(ctx context.Context, runs []Run) error
	// Insert stores a single manual run. Manual rows may duplicate freely.
	Insert(ctx context.Context, run Run) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Run, error)
}

// ProfileRepository resolves display names and avatars for a set of users.
type ProfileRepository interface {
	DisplayInfo(ctx context.Context, userIDs []string) (map[string]DisplayInfo, error)
}

// CredentialRepository stores provider OAuth credentials.
type CredentialRepository interface {
	// Get returns ErrCredentialNotFound when the user never connected.
	Get(ctx context.Context, userID string) (*Credential, error)
	Update(ctx context.Context, userID string, patch CredentialPatch) error
	Create(ctx context.Context, cred Credential) error
	// ListUserIDs returns every user with a stored connection.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// DateOf truncates t to its calendar day in loc, normalized to midnight UTC
// so run dates compare as plain dates regardless of the wall clock.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
