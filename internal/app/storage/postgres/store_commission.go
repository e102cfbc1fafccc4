package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/commission"
)

// --- CommissionStore -----------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, e commission.Event) (commission.Event, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_commission_events (
			event_id, payer_user_id, payee_user_id, program, source_slot_no, level, amount, category
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.EventID, e.PayerUserID, e.PayeeUserID, e.Program, e.SourceSlotNo, e.Level, e.Amount, e.Category)
	if err != nil {
		return commission.Event{}, err
	}
	return e, nil
}

func (s *Store) ListByPayee(ctx context.Context, payeeUserID string, limit int) ([]commission.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, payer_user_id, payee_user_id, program, source_slot_no, level, amount, category
		FROM bitgpt_commission_events
		WHERE payee_user_id = $1
		ORDER BY event_id
		LIMIT $2
	`, payeeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []commission.Event
	for rows.Next() {
		var e commission.Event
		if err := rows.Scan(&e.EventID, &e.PayerUserID, &e.PayeeUserID, &e.Program, &e.SourceSlotNo, &e.Level, &e.Amount, &e.Category); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
