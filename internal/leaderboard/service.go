// Package leaderboard computes ranked, tiered standings over rolling
// time windows.
package leaderboard

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/Erneeh/runleague/internal/domain"
	"github.com/Erneeh/runleague/internal/observability"
)

// Entry is one user's standing within a period. Entries are derived on
// every query and never persisted.
type Entry struct {
	UserID           string      `json:"user_id"`
	DisplayName      string      `json:"display_name"`
	AvatarURL        string      `json:"avatar_url,omitempty"`
	Rank             int         `json:"rank"`
	Tier             domain.Tier `json:"tier"`
	TotalXP          int         `json:"total_xp"`
	TotalDistanceKm  float64     `json:"total_distance_km"`
	TotalDurationMin float64     `json:"total_duration_min"`
	Runs             int         `json:"runs"`
}

// Service aggregates runs into leaderboard entries. It holds no mutable
// state between calls and is safe for concurrent use.
type Service struct {
	runs     domain.RunRepository
	profiles domain.ProfileRepository
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the time source, used by tests to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the logger used to report degraded reads.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs a Service evaluating windows in loc.
func NewService(runs domain.RunRepository, profiles domain.ProfileRepository, loc *time.Location, opts ...Option) *Service {
	s := &Service{
		runs:     runs,
		profiles: profiles,
		loc:      loc,
		now:      time.Now,
		logger:   log.New(log.Writer(), "[leaderboard] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute builds the leaderboard for the given period. An unreachable
// run store degrades to an empty board rather than failing the request;
// the failure is logged. An empty window yields an empty slice.
func (s *Service) Compute(ctx context.Context, period domain.Period) []Entry {
	start := time.Now()
	from, to := domain.Window(period, s.now(), s.loc)

	runs, err := s.runs.FetchByDateRange(ctx, from, to)
	if err != nil {
		s.logger.Printf("fetch failed for period=%s window=[%s, %s]: %v",
			period, from.Format(time.DateOnly), to.Format(time.DateOnly), err)
		degradedCounter.WithLabelValues(string(period)).Inc()
		return []Entry{}
	}

	totals := accumulate(runs)
	if len(totals) == 0 {
		return []Entry{}
	}

	entries := s.resolve(ctx, totals)

	// Total XP descending; user id ascending breaks ties deterministically.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalXP != entries[j].TotalXP {
			return entries[i].TotalXP > entries[j].TotalXP
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Tier = domain.TierForRank(i+1, len(entries))
	}

	computeDuration.WithLabelValues(string(period)).Observe(time.Since(start).Seconds())
	observability.RecordLeaderboardComputed(s.now())
	return entries
}

// accumulate sums per-user totals. Plain summation keeps the result
// independent of row order.
func accumulate(runs []domain.Run) map[string]*domain.RunTotals {
	totals := make(map[string]*domain.RunTotals)
	for _, run := range runs {
		current, ok := totals[run.UserID]
		if !ok {
			current = &domain.RunTotals{UserID: run.UserID}
			totals[run.UserID] = current
		}
		current.XP += run.XP
		current.DistanceKm += run.DistanceKm
		current.DurationMin += run.DurationMin
		current.Runs++
	}
	return totals
}

func (s *Service) resolve(ctx context.Context, totals map[string]*domain.RunTotals) []Entry {
	userIDs := make([]string, 0, len(totals))
	for id := range totals {
		userIDs = append(userIDs, id)
	}

	profiles, err := s.profiles.DisplayInfo(ctx, userIDs)
	if err != nil {
		s.logger.Printf("profile lookup failed for %d users, using fallback names: %v", len(userIDs), err)
		profiles = nil
	}

	entries := make([]Entry, 0, len(totals))
	for id, t := range totals {
		entry := Entry{
			UserID:           id,
			DisplayName:      fallbackName(id),
			TotalXP:          t.XP,
			TotalDistanceKm:  t.DistanceKm,
			TotalDurationMin: t.DurationMin,
			Runs:             t.Runs,
		}
		if info, ok := profiles[id]; ok {
			if info.Nickname != "" {
				entry.DisplayName = info.Nickname
			}
			entry.AvatarURL = info.AvatarURL
		}
		entries = append(entries, entry)
	}
	return entries
}

// fallbackName is a stable display placeholder for users without a
// profile nickname. It is not an obfuscation of the id.
func fallbackName(userID string) string {
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}
