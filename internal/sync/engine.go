// Package sync ingests a user's external provider activities into the
// run store, refreshing credentials as needed and deduplicating against
// previously synced rows.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Erneeh/runleague/internal/domain"
	"github.com/Erneeh/runleague/internal/observability"
	"github.com/Erneeh/runleague/internal/strava"
)

// refreshMargin is the safety window before token expiry; a token
// expiring inside the margin is refreshed before use.
const refreshMargin = 60 * time.Second

// ErrRefreshFailed marks an aborted sync caused by a failed token
// refresh. The stored credential is left at its last-known-good state.
var ErrRefreshFailed = errors.New("provider token refresh failed")

// ProviderClient is the slice of the provider API the engine consumes.
type ProviderClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenResponse, error)
	FetchActivities(ctx context.Context, accessToken string) ([]strava.Activity, error)
}

// Engine synchronizes provider activities for one user at a time.
// Syncs for the same user are serialized in-process; two concurrent
// refreshes would otherwise race and the provider invalidates the
// losing refresh token.
type Engine struct {
	creds    domain.CredentialRepository
	runs     domain.RunRepository
	provider ProviderClient
	loc      *time.Location
	now      func() time.Time
	locks    userLocks
	logger   *log.Logger
}

// Option configures optional Engine behaviour.
type Option func(*Engine)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the engine's logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine constructs an Engine. Activity timestamps are truncated to
// calendar dates in loc.
func NewEngine(creds domain.CredentialRepository, runs domain.RunRepository, provider ProviderClient, loc *time.Location, opts ...Option) *Engine {
	e := &Engine{
		creds:    creds,
		runs:     runs,
		provider: provider,
		loc:      loc,
		now:      time.Now,
		logger:   log.New(log.Writer(), "[sync] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncUser fetches the user's recent provider activities, filters to
// runs, and upserts them keyed by the provider activity id. Repeated
// syncs with unchanged provider data leave the store unchanged. A user
// without a stored connection is a no-op.
func (e *Engine) SyncUser(ctx context.Context, userID string) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	cred, err := e.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil
		}
		return fmt.Errorf("loading credential for user %s: %w", userID, err)
	}

	accessToken := cred.AccessToken
	if e.needsRefresh(cred) {
		accessToken, err = e.refresh(ctx, userID, cred)
		if err != nil {
			return err
		}
	}

	activities, err := e.provider.FetchActivities(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("fetching activities for user %s: %w", userID, err)
	}

	rows := e.convert(userID, activities)
	if len(rows) == 0 {
		return nil
	}

	if err := e.runs.UpsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("upserting %d runs for user %s: %w", len(rows), userID, err)
	}

	runsSyncedCounter.Add(float64(len(rows)))
	observability.RecordSyncCompleted(e.now())
	return nil
}

func (e *Engine) needsRefresh(cred *domain.Credential) bool {
	return !cred.ExpiresAt.After(e.now().Add(refreshMargin))
}

// refresh exchanges the refresh token and persists the new pair before
// any fetch runs. A failed refresh leaves the stored credential
// untouched; a failed persist aborts so fetch never runs on state the
// store does not hold.
func (e *Engine) refresh(ctx context.Context, userID string, cred *domain.Credential) (string, error) {
	token, err := e.provider.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w for user %s: %v", ErrRefreshFailed, userID, err)
	}

	patch := domain.CredentialPatch{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Unix(token.ExpiresAt, 0).UTC(),
	}
	if err := e.creds.Update(ctx, userID, patch); err != nil {
		return "", fmt.Errorf("persisting refreshed credential for user %s: %w", userID, err)
	}

	refreshCounter.Inc()
	return token.AccessToken, nil
}

// convert filters to runs and maps provider units onto stored ones:
// meters to kilometers, seconds to minutes, timestamp to calendar date.
func (e *Engine) convert(userID string, activities []strava.Activity) []domain.Run {
	rows := make([]domain.Run, 0, len(activities))
	for _, a := range activities {
		if a.Type != "Run" {
			continue
		}

		distanceKm := a.Distance / 1000
		sourceID := strconv.FormatInt(a.ID, 10)
		elevation := a.TotalElevationGain

		rows = append(rows, domain.Run{
			UserID:           userID,
			DistanceKm:       distanceKm,
			DurationMin:      float64(a.MovingTime) / 60,
			Date:             domain.DateOf(a.StartDateLocal, e.loc),
			XP:               domain.CalculateXP(distanceKm),
			Source:           domain.SourceStrava,
			SourceActivityID: &sourceID,
			ElevationGain:    &elevation,
		})
	}
	return rows
}

// SyncAll runs SyncUser for every connected user, bounding each with
// perUserTimeout. Individual failures are logged and do not stop the
// pass; the first error is reported after the pass completes.
func (e *Engine) SyncAll(ctx context.Context, perUserTimeout time.Duration) error {
	userIDs, err := e.creds.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing connected users: %w", err)
	}

	var firstErr error
	for _, userID := range userIDs {
		userCtx, cancel := context.WithTimeout(ctx, perUserTimeout)
		err := e.SyncUser(userCtx, userID)
		cancel()

		if err != nil {
			e.logger.Printf("sync failed for user %s: %v", userID, err)
			syncFailureCounter.Inc()
			if firstErr == nil {
				firstErr = err
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}
