// Package postgres provides pgx-backed persistence for runs, profiles
// and provider credentials.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Erneeh/runleague/internal/domain"
	"github.com/Erneeh/runleague/internal/events"
	"github.com/Erneeh/runleague/internal/observability"
)

// RunRepository stores runs and records outbox events in the same
// transaction as the rows they describe.
type RunRepository struct {
	pool  *pgxpool.Pool
	topic string
}

// NewRunRepository constructs a RunRepository publishing run events to topic.
func NewRunRepository(pool *pgxpool.Pool, topic string) *RunRepository {
	return &RunRepository{pool: pool, topic: topic}
}

// FetchByDateRange returns every run dated within [from, to], compared
// as calendar dates, inclusive on both ends.
func (r *RunRepository) FetchByDateRange(ctx context.Context, from, to time.Time) ([]domain.Run, error) {
	const query = `SELECT run_id, user_id, distance_km, duration_min, run_date, xp, source, source_activity_id, elevation_gain, created_at
        FROM runs WHERE run_date BETWEEN $1::date AND $2::date`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

// UpsertBatch writes provider runs in one transaction, using the partial
// unique index on source_activity_id as the conflict target. Existing
// rows keep their id; distance, duration, date, elevation and the
// recomputed XP are overwritten.
func (r *RunRepository) UpsertBatch(ctx context.Context, runs []domain.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO runs (run_id, user_id, distance_km, duration_min, run_date, xp, source, source_activity_id, elevation_gain)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (source_activity_id) WHERE source_activity_id IS NOT NULL
        DO UPDATE SET
            distance_km = EXCLUDED.distance_km,
            duration_min = EXCLUDED.duration_min,
            run_date = EXCLUDED.run_date,
            xp = EXCLUDED.xp,
            elevation_gain = EXCLUDED.elevation_gain
        RETURNING run_id`

	for _, run := range runs {
		if run.ID == "" {
			run.ID = uuid.NewString()
		}

		var storedID string
		err := tx.QueryRow(ctx, stmt,
			run.ID,
			run.UserID,
			run.DistanceKm,
			run.DurationMin,
			run.Date,
			run.XP,
			run.Source,
			run.SourceActivityID,
			run.ElevationGain,
		).Scan(&storedID)
		if err != nil {
			return err
		}

		run.ID = storedID
		if err := insertRunOutbox(ctx, tx, r.topic, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordRunPersisted(time.Now().UTC())
	return nil
}

// Insert stores one manual run and its outbox event.
func (r *RunRepository) Insert(ctx context.Context, run domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO runs (run_id, user_id, distance_km, duration_min, run_date, xp, source, source_activity_id, elevation_gain)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		run.ID,
		run.UserID,
		run.DistanceKm,
		run.DurationMin,
		run.Date,
		run.XP,
		run.Source,
		run.SourceActivityID,
		run.ElevationGain,
	)
	if err != nil {
		return err
	}

	if err := insertRunOutbox(ctx, tx, r.topic, run); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordRunPersisted(time.Now().UTC())
	return nil
}

// ListByUser returns the user's most recent runs, newest date first.
func (r *RunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Run, error) {
	const query = `SELECT run_id, user_id, distance_km, duration_min, run_date, xp, source, source_activity_id, elevation_gain, created_at
        FROM runs WHERE user_id = $1
        ORDER BY run_date DESC, created_at DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows pgx.Rows) ([]domain.Run, error) {
	var out []domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.ID,
			&run.UserID,
			&run.DistanceKm,
			&run.DurationMin,
			&run.Date,
			&run.XP,
			&run.Source,
			&run.SourceActivityID,
			&run.ElevationGain,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func insertRunOutbox(ctx context.Context, tx pgx.Tx, topic string, run domain.Run) error {
	payload := events.RunRecorded{
		RunID:       run.ID,
		UserID:      run.UserID,
		DistanceKm:  run.DistanceKm,
		DurationMin: run.DurationMin,
		XP:          run.XP,
		Date:        run.Date.Format(time.DateOnly),
		Source:      run.Source,
		RecordedAt:  time.Now().UTC(),
	}
	if run.SourceActivityID != nil {
		payload.SourceActivityID = *run.SourceActivityID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.Exec(ctx, stmt, "run", run.ID, "run.recorded", topic, run.UserID, body)
	return err
}
