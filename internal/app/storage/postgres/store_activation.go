package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/activation"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// --- ActivationStore -----------------------------------------------------------

func (s *Store) CreateActivation(ctx context.Context, a activation.SlotActivation) (activation.SlotActivation, error) {
	if a.TxHash == "" {
		a.TxHash = uuid.NewString()
	}
	if a.ActivatedAt.IsZero() {
		a.ActivatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_slot_activations (user_id, program, slot_no, activation_type, amount_paid, tx_hash, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.UserID, a.Program, a.SlotNo, a.ActivationTp, a.AmountPaid, a.TxHash, a.ActivatedAt)
	if err != nil {
		return activation.SlotActivation{}, err
	}
	return a, nil
}

func (s *Store) GetActivation(ctx context.Context, userID string, p program.Program, slotNo int) (activation.SlotActivation, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, program, slot_no, activation_type, amount_paid, tx_hash, activated_at
		FROM bitgpt_slot_activations
		WHERE user_id = $1 AND program = $2 AND slot_no = $3
	`, userID, p, slotNo)

	a, err := scanActivation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return activation.SlotActivation{}, false, nil
		}
		return activation.SlotActivation{}, false, err
	}
	return a, true, nil
}

func (s *Store) ListActivations(ctx context.Context, userID string, p program.Program) ([]activation.SlotActivation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, program, slot_no, activation_type, amount_paid, tx_hash, activated_at
		FROM bitgpt_slot_activations
		WHERE user_id = $1 AND program = $2
		ORDER BY slot_no
	`, userID, p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []activation.SlotActivation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) HighestActiveSlot(ctx context.Context, userID string, p program.Program) (int, error) {
	var highest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(slot_no) FROM bitgpt_slot_activations WHERE user_id = $1 AND program = $2
	`, userID, p).Scan(&highest)
	if err != nil {
		return 0, err
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64), nil
}

func scanActivation(scanner rowScanner) (activation.SlotActivation, error) {
	var a activation.SlotActivation
	if err := scanner.Scan(&a.UserID, &a.Program, &a.SlotNo, &a.ActivationTp, &a.AmountPaid, &a.TxHash, &a.ActivatedAt); err != nil {
		return activation.SlotActivation{}, err
	}
	a.ActivatedAt = a.ActivatedAt.UTC()
	return a, nil
}
