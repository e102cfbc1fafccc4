package postgres

import (
	"context"
	"database/sql"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/globalphase"
)

// --- GlobalPhaseStore --------------------------------------------------------------

func (s *Store) GetPhaseState(ctx context.Context, userID string) (globalphase.State, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_phase, current_slot_no, members_in_phase
		FROM bitgpt_global_phase_states
		WHERE user_id = $1
	`, userID)

	var st globalphase.State
	if err := row.Scan(&st.UserID, &st.CurrentPhase, &st.CurrentSlotNo, &st.MembersInPhase); err != nil {
		if err == sql.ErrNoRows {
			return globalphase.State{}, false, nil
		}
		return globalphase.State{}, false, err
	}
	return st, true, nil
}

func (s *Store) UpsertPhaseState(ctx context.Context, st globalphase.State) (globalphase.State, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_global_phase_states (user_id, current_phase, current_slot_no, members_in_phase)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			current_slot_no = EXCLUDED.current_slot_no,
			members_in_phase = EXCLUDED.members_in_phase
	`, st.UserID, st.CurrentPhase, st.CurrentSlotNo, st.MembersInPhase)
	if err != nil {
		return globalphase.State{}, err
	}
	return st, nil
}
