//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Erneeh/runleague/internal/domain"
)

func setupPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("runleague"),
		postgrescontainer.WithUsername("runleague"),
		postgrescontainer.WithPassword("runleague"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestUpsertBatchDeduplicatesBySourceActivityID(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewRunRepository(pool, "run_events")

	userID := uuid.NewString()
	sourceID := "strava-101"
	date := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	elevation := 12.5

	original := domain.Run{
		UserID:           userID,
		DistanceKm:       5.2,
		DurationMin:      30,
		Date:             date,
		XP:               52,
		Source:           domain.SourceStrava,
		SourceActivityID: &sourceID,
		ElevationGain:    &elevation,
	}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Run{original}))

	// Re-sync with corrected values under the same activity id.
	corrected := original
	corrected.DistanceKm = 6.0
	corrected.XP = 60
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Run{corrected}))

	runs, err := repo.FetchByDateRange(ctx, date, date)
	require.NoError(t, err)
	require.Len(t, runs, 1, "same source activity id must never produce two rows")
	require.Equal(t, 6.0, runs[0].DistanceKm)
	require.Equal(t, 60, runs[0].XP)
	require.NotNil(t, runs[0].SourceActivityID)
	require.Equal(t, sourceID, *runs[0].SourceActivityID)
}

func TestManualRunsMayDuplicate(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewRunRepository(pool, "run_events")

	userID := uuid.NewString()
	date := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

	run := domain.Run{UserID: userID, DistanceKm: 5, DurationMin: 30, Date: date, XP: 50, Source: domain.SourceManual}
	require.NoError(t, repo.Insert(ctx, run))
	require.NoError(t, repo.Insert(ctx, run))

	runs, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestFetchByDateRangeIsInclusive(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewRunRepository(pool, "run_events")

	userID := uuid.NewString()
	monday := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)

	for _, date := range []time.Time{
		monday.AddDate(0, 0, -1), // outside, before
		monday,                   // boundary
		monday.AddDate(0, 0, 3),  // inside
		sunday,                   // boundary
		sunday.AddDate(0, 0, 1),  // outside, after
	} {
		run := domain.Run{UserID: userID, DistanceKm: 5, DurationMin: 30, Date: date, XP: 50, Source: domain.SourceManual}
		require.NoError(t, repo.Insert(ctx, run))
	}

	runs, err := repo.FetchByDateRange(ctx, monday, sunday)
	require.NoError(t, err)
	require.Len(t, runs, 3, "both boundary days included, adjacent days excluded")
}

func TestUpsertBatchWritesOutboxEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewRunRepository(pool, "run_events")

	sourceID := "strava-202"
	run := domain.Run{
		UserID:           uuid.NewString(),
		DistanceKm:       5,
		DurationMin:      30,
		Date:             time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		XP:               50,
		Source:           domain.SourceStrava,
		SourceActivityID: &sourceID,
	}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Run{run}))

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'run.recorded' AND published_at IS NULL`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestCredentialRoundtrip(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewCredentialRepository(pool)

	userID := uuid.NewString()

	_, err := repo.Get(ctx, userID)
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)

	expires := time.Now().Add(6 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(ctx, domain.Credential{
		UserID:       userID,
		AthleteID:    4242,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
	}))

	cred, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(4242), cred.AthleteID)
	require.Equal(t, "access", cred.AccessToken)

	newExpires := expires.Add(6 * time.Hour)
	require.NoError(t, repo.Update(ctx, userID, domain.CredentialPatch{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    newExpires,
	}))

	cred, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "access-2", cred.AccessToken)
	require.Equal(t, "refresh-2", cred.RefreshToken)
	require.True(t, cred.ExpiresAt.Equal(newExpires))

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, userID)
}

func TestProfileDisplayInfo(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	repo := NewProfileRepository(pool)

	withNickname := uuid.NewString()
	withoutNickname := uuid.NewString()
	missing := uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO profiles (user_id, nickname, avatar_url) VALUES ($1, 'Speedy', 'https://cdn/a.png')`, withNickname)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO profiles (user_id) VALUES ($1)`, withoutNickname)
	require.NoError(t, err)

	info, err := repo.DisplayInfo(ctx, []string{withNickname, withoutNickname, missing})
	require.NoError(t, err)
	require.Len(t, info, 2)
	require.Equal(t, "Speedy", info[withNickname].Nickname)
	require.Empty(t, info[withoutNickname].Nickname)
	_, ok := info[missing]
	require.False(t, ok)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
