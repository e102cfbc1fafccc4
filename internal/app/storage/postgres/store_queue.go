package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/queue"
)

// --- QueueStore ------------------------------------------------------------------

func (s *Store) Enqueue(ctx context.Context, item queue.Item) (queue.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ArmedAt.IsZero() {
		item.ArmedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_queue_items (
			id, user_id, program, current_slot, target_slot, cost, available,
			status, retry_count, trigger_kind, armed_at, processed_at, failed_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, item.ID, item.UserID, item.Program, item.CurrentSlot, item.TargetSlot, item.Cost, item.Available,
		item.Status, item.RetryCount, item.TriggerKind, item.ArmedAt, toNullTime(item.ProcessedAt), toNullString(item.FailedReason))
	if err != nil {
		return queue.Item{}, err
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (queue.Item, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, program, current_slot, target_slot, cost, available,
		       status, retry_count, trigger_kind, armed_at, processed_at, failed_reason
		FROM bitgpt_queue_items
		WHERE id = $1
	`, itemID)

	item, err := scanQueueItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return queue.Item{}, false, nil
		}
		return queue.Item{}, false, err
	}
	return item, true, nil
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]queue.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, program, current_slot, target_slot, cost, available,
		       status, retry_count, trigger_kind, armed_at, processed_at, failed_reason
		FROM bitgpt_queue_items
		WHERE status = $1
		ORDER BY armed_at
		LIMIT $2
	`, queue.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (s *Store) ListByUserProgram(ctx context.Context, userID string, p program.Program) ([]queue.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, program, current_slot, target_slot, cost, available,
		       status, retry_count, trigger_kind, armed_at, processed_at, failed_reason
		FROM bitgpt_queue_items
		WHERE user_id = $1 AND program = $2
		ORDER BY target_slot
	`, userID, p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (s *Store) UpdateItem(ctx context.Context, item queue.Item) (queue.Item, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bitgpt_queue_items
		SET current_slot = $2, target_slot = $3, cost = $4, available = $5, status = $6,
		    retry_count = $7, trigger_kind = $8, processed_at = $9, failed_reason = $10
		WHERE id = $1
	`, item.ID, item.CurrentSlot, item.TargetSlot, item.Cost, item.Available, item.Status,
		item.RetryCount, item.TriggerKind, toNullTime(item.ProcessedAt), toNullString(item.FailedReason))
	if err != nil {
		return queue.Item{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return queue.Item{}, sql.ErrNoRows
	}
	return item, nil
}

func scanQueueItem(scanner rowScanner) (queue.Item, error) {
	var (
		item         queue.Item
		processedAt  sql.NullTime
		failedReason sql.NullString
	)
	if err := scanner.Scan(&item.ID, &item.UserID, &item.Program, &item.CurrentSlot, &item.TargetSlot, &item.Cost, &item.Available,
		&item.Status, &item.RetryCount, &item.TriggerKind, &item.ArmedAt, &processedAt, &failedReason); err != nil {
		return queue.Item{}, err
	}
	item.ArmedAt = item.ArmedAt.UTC()
	if processedAt.Valid {
		item.ProcessedAt = processedAt.Time.UTC()
	}
	if failedReason.Valid {
		item.FailedReason = failedReason.String
	}
	return item, nil
}

func scanQueueItems(rows *sql.Rows) ([]queue.Item, error) {
	var result []queue.Item
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
