package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Erneeh/runleague/internal/domain"
)

// CredentialRepository stores provider OAuth connections.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository constructs a CredentialRepository.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Get returns domain.ErrCredentialNotFound when the user never connected.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*domain.Credential, error) {
	const query = `SELECT user_id, athlete_id, access_token, refresh_token, expires_at
        FROM strava_connections WHERE user_id = $1`

	var cred domain.Credential
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&cred.UserID,
		&cred.AthleteID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// Update persists a refreshed token pair in place.
func (r *CredentialRepository) Update(ctx context.Context, userID string, patch domain.CredentialPatch) error {
	const stmt = `UPDATE strava_connections
        SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
        WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, stmt, userID, patch.AccessToken, patch.RefreshToken, patch.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// Create stores a new connection; reconnecting overwrites the old one.
func (r *CredentialRepository) Create(ctx context.Context, cred domain.Credential) error {
	const stmt = `INSERT INTO strava_connections (user_id, athlete_id, access_token, refresh_token, expires_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id) DO UPDATE SET
            athlete_id = EXCLUDED.athlete_id,
            access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            expires_at = EXCLUDED.expires_at,
            updated_at = now()`

	_, err := r.pool.Exec(ctx, stmt, cred.UserID, cred.AthleteID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	return err
}

// ListUserIDs returns every user with a stored connection.
func (r *CredentialRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM strava_connections ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
