// Package globalphase holds the GlobalPhaseState entity (§3): the Global
// program's two-phase placement progress for one user.
package globalphase

import "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"

// State tracks a user's current position in the Global program's
// phase-1/phase-2 placement cycle.
type State struct {
	UserID         string     `json:"user_id"`
	CurrentPhase   tree.Phase `json:"current_phase"`
	CurrentSlotNo  int        `json:"current_slot_no"`
	MembersInPhase int        `json:"members_in_phase"`
}

// PhaseComplete reports whether the current phase has reached capacity and
// should advance (§4.3, §4.6-analogous global progression).
func (s State) PhaseComplete() bool {
	return s.MembersInPhase >= tree.PhaseCapacity(s.CurrentPhase)
}
