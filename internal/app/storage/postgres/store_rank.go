package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/rank"
)

// --- RankStore -------------------------------------------------------------------

func (s *Store) GetRank(ctx context.Context, userID string) (rank.Rank, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, rank_number, history FROM bitgpt_ranks WHERE user_id = $1
	`, userID)

	var (
		r          rank.Rank
		historyRaw []byte
	)
	if err := row.Scan(&r.UserID, &r.RankNumber, &historyRaw); err != nil {
		if err == sql.ErrNoRows {
			return rank.Rank{}, false, nil
		}
		return rank.Rank{}, false, err
	}
	if len(historyRaw) > 0 {
		_ = json.Unmarshal(historyRaw, &r.History)
	}
	return r, true, nil
}

func (s *Store) UpsertRank(ctx context.Context, r rank.Rank) (rank.Rank, error) {
	historyJSON, err := json.Marshal(r.History)
	if err != nil {
		return rank.Rank{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_ranks (user_id, rank_number, history)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET rank_number = EXCLUDED.rank_number, history = EXCLUDED.history
	`, r.UserID, r.RankNumber, historyJSON)
	if err != nil {
		return rank.Rank{}, err
	}
	return r, nil
}
