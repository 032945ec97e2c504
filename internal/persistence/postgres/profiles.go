package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Erneeh/runleague/internal/domain"
)

// ProfileRepository resolves display names and avatars.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// DisplayInfo returns profile fields for the given users. Users without
// a profile row are simply absent from the result.
func (r *ProfileRepository) DisplayInfo(ctx context.Context, userIDs []string) (map[string]domain.DisplayInfo, error) {
	if len(userIDs) == 0 {
		return map[string]domain.DisplayInfo{}, nil
	}

	const query = `SELECT user_id, COALESCE(nickname, ''), COALESCE(avatar_url, '')
        FROM profiles WHERE user_id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.DisplayInfo, len(userIDs))
	for rows.Next() {
		var id string
		var info domain.DisplayInfo
		if err := rows.Scan(&id, &info.Nickname, &info.AvatarURL); err != nil {
			return nil, err
		}
		out[id] = info
	}
	return out, rows.Err()
}
