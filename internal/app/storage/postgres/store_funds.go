package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/funds"
)

// --- FundsStore -------------------------------------------------------------------

func (s *Store) UpsertEligibility(ctx context.Context, r funds.EligibilityRecord) (funds.EligibilityRecord, error) {
	if r.EvaluatedAt.IsZero() {
		r.EvaluatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_fund_eligibility (user_id, fund, eligible, tier, evaluated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, fund) DO UPDATE SET
			eligible = EXCLUDED.eligible,
			tier = EXCLUDED.tier,
			evaluated_at = EXCLUDED.evaluated_at
	`, r.UserID, r.Fund, r.Eligible, r.Tier, r.EvaluatedAt)
	if err != nil {
		return funds.EligibilityRecord{}, err
	}
	return r, nil
}

func (s *Store) GetEligibility(ctx context.Context, userID string, fund funds.FundName) (funds.EligibilityRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, fund, eligible, tier, evaluated_at
		FROM bitgpt_fund_eligibility
		WHERE user_id = $1 AND fund = $2
	`, userID, fund)

	var r funds.EligibilityRecord
	if err := row.Scan(&r.UserID, &r.Fund, &r.Eligible, &r.Tier, &r.EvaluatedAt); err != nil {
		if err == sql.ErrNoRows {
			return funds.EligibilityRecord{}, false, nil
		}
		return funds.EligibilityRecord{}, false, err
	}
	r.EvaluatedAt = r.EvaluatedAt.UTC()
	return r, true, nil
}

func (s *Store) GetDreamMatrixProgress(ctx context.Context, userID string) (funds.DreamMatrixProgress, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, events_paid_out FROM bitgpt_dream_matrix_progress WHERE user_id = $1
	`, userID)

	var p funds.DreamMatrixProgress
	if err := row.Scan(&p.UserID, &p.EventsPaidOut); err != nil {
		if err == sql.ErrNoRows {
			return funds.DreamMatrixProgress{}, false, nil
		}
		return funds.DreamMatrixProgress{}, false, err
	}
	return p, true, nil
}

func (s *Store) UpsertDreamMatrixProgress(ctx context.Context, p funds.DreamMatrixProgress) (funds.DreamMatrixProgress, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_dream_matrix_progress (user_id, events_paid_out)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET events_paid_out = EXCLUDED.events_paid_out
	`, p.UserID, p.EventsPaidOut)
	if err != nil {
		return funds.DreamMatrixProgress{}, err
	}
	return p, nil
}

func (s *Store) ListEligible(ctx context.Context, fund funds.FundName) ([]funds.EligibilityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, fund, eligible, tier, evaluated_at
		FROM bitgpt_fund_eligibility
		WHERE fund = $1 AND eligible = true
	`, fund)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []funds.EligibilityRecord
	for rows.Next() {
		var r funds.EligibilityRecord
		if err := rows.Scan(&r.UserID, &r.Fund, &r.Eligible, &r.Tier, &r.EvaluatedAt); err != nil {
			return nil, err
		}
		r.EvaluatedAt = r.EvaluatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreditNewcomerPool(ctx context.Context, referrerID, currency string, amount float64) (funds.NewcomerPool, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO bitgpt_newcomer_pool (referrer_id, currency, balance, last_distributed_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (referrer_id, currency) DO UPDATE SET balance = bitgpt_newcomer_pool.balance + EXCLUDED.balance
		RETURNING referrer_id, currency, balance, last_distributed_at
	`, referrerID, currency, amount)

	var p funds.NewcomerPool
	var lastAt sql.NullTime
	if err := row.Scan(&p.ReferrerID, &p.Currency, &p.Balance, &lastAt); err != nil {
		return funds.NewcomerPool{}, err
	}
	if lastAt.Valid {
		p.LastDistributedAt = lastAt.Time.UTC()
	}
	return p, nil
}

func (s *Store) ListNewcomerPools(ctx context.Context) ([]funds.NewcomerPool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT referrer_id, currency, balance, last_distributed_at
		FROM bitgpt_newcomer_pool
		WHERE balance > 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []funds.NewcomerPool
	for rows.Next() {
		var p funds.NewcomerPool
		var lastAt sql.NullTime
		if err := rows.Scan(&p.ReferrerID, &p.Currency, &p.Balance, &lastAt); err != nil {
			return nil, err
		}
		if lastAt.Valid {
			p.LastDistributedAt = lastAt.Time.UTC()
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ClearNewcomerPool(ctx context.Context, referrerID, currency string, distributedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_newcomer_pool (referrer_id, currency, balance, last_distributed_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (referrer_id, currency) DO UPDATE SET balance = 0, last_distributed_at = EXCLUDED.last_distributed_at
	`, referrerID, currency, distributedAt)
	return err
}
