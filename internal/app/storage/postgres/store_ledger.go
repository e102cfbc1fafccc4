package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// --- LedgerStore ---------------------------------------------------------------

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bitgpt_ledger_entries (
			ts, user_id, program, kind, amount, currency, reason_code,
			correlation_id, source_event_id, target_slot
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`, e.TS, e.UserID, e.Program, e.Kind, e.Amount, e.Currency, e.ReasonCode,
		e.CorrelationID, e.SourceEventID, e.TargetSlot).Scan(&e.Seq)
	if err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListEntriesByCorrelation(ctx context.Context, correlationID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, user_id, program, kind, amount, currency, reason_code, correlation_id, source_event_id, target_slot
		FROM bitgpt_ledger_entries
		WHERE correlation_id = $1
		ORDER BY seq
	`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListEntriesByUser(ctx context.Context, userID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, user_id, program, kind, amount, currency, reason_code, correlation_id, source_event_id, target_slot
		FROM bitgpt_ledger_entries
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var result []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Seq, &e.TS, &e.UserID, &e.Program, &e.Kind, &e.Amount, &e.Currency, &e.ReasonCode, &e.CorrelationID, &e.SourceEventID, &e.TargetSlot); err != nil {
			return nil, err
		}
		e.TS = e.TS.UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) GetReserveBalance(ctx context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, program, target_slot, amount
		FROM bitgpt_reserve_balances
		WHERE user_id = $1 AND program = $2 AND target_slot = $3
	`, userID, p, targetSlot)

	var rb ledger.ReserveBalance
	if err := row.Scan(&rb.UserID, &rb.Program, &rb.TargetSlot, &rb.Amount); err != nil {
		if err == sql.ErrNoRows {
			return ledger.ReserveBalance{UserID: userID, Program: p, TargetSlot: targetSlot}, nil
		}
		return ledger.ReserveBalance{}, err
	}
	return rb, nil
}

func (s *Store) CreditReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error) {
	var rb ledger.ReserveBalance
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bitgpt_reserve_balances (user_id, program, target_slot, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, program, target_slot)
		DO UPDATE SET amount = bitgpt_reserve_balances.amount + EXCLUDED.amount
		RETURNING user_id, program, target_slot, amount
	`, userID, p, targetSlot, amount).Scan(&rb.UserID, &rb.Program, &rb.TargetSlot, &rb.Amount)
	if err != nil {
		return ledger.ReserveBalance{}, err
	}
	return rb, nil
}

func (s *Store) DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error) {
	var rb ledger.ReserveBalance
	err := s.db.QueryRowContext(ctx, `
		UPDATE bitgpt_reserve_balances
		SET amount = amount - $4
		WHERE user_id = $1 AND program = $2 AND target_slot = $3
		RETURNING user_id, program, target_slot, amount
	`, userID, p, targetSlot, amount).Scan(&rb.UserID, &rb.Program, &rb.TargetSlot, &rb.Amount)
	if err != nil {
		return ledger.ReserveBalance{}, err
	}
	return rb, nil
}

func (s *Store) GetFundPool(ctx context.Context, name, currency string) (ledger.FundPool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, currency, balance FROM bitgpt_fund_pools WHERE name = $1 AND currency = $2
	`, name, currency)

	var fp ledger.FundPool
	if err := row.Scan(&fp.Name, &fp.Currency, &fp.Balance); err != nil {
		if err == sql.ErrNoRows {
			return ledger.FundPool{Name: name, Currency: currency}, nil
		}
		return ledger.FundPool{}, err
	}
	return fp, nil
}

func (s *Store) CreditFundPool(ctx context.Context, name, currency string, amount float64) (ledger.FundPool, error) {
	var fp ledger.FundPool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bitgpt_fund_pools (name, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, currency)
		DO UPDATE SET balance = bitgpt_fund_pools.balance + EXCLUDED.balance
		RETURNING name, currency, balance
	`, name, currency, amount).Scan(&fp.Name, &fp.Currency, &fp.Balance)
	if err != nil {
		return ledger.FundPool{}, err
	}
	return fp, nil
}

func (s *Store) DebitFundPool(ctx context.Context, name, currency string, amount float64) (ledger.FundPool, error) {
	var fp ledger.FundPool
	err := s.db.QueryRowContext(ctx, `
		UPDATE bitgpt_fund_pools
		SET balance = balance - $3
		WHERE name = $1 AND currency = $2
		RETURNING name, currency, balance
	`, name, currency, amount).Scan(&fp.Name, &fp.Currency, &fp.Balance)
	if err != nil {
		return ledger.FundPool{}, err
	}
	return fp, nil
}
