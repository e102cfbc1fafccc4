// Package globalphase implements the Global program's phase-completion
// tick (§4.3, §6 /progress/global/{user_id}): an idempotent check of
// whether a user's current phase tree has filled, advancing phase 1 to
// phase 2, and — once phase 2 also fills — spending the accumulated
// level-30% reserve (§4.3 "flows into the owner's reserve for the next
// phase/slot progression") to auto-activate the next slot, the same way
// services/autoupgrade spends Binary/Matrix reserve. Its shape (idempotent
// threshold check, then advance) is grounded on services/recycle's
// MaybeRecycle; its reserve-spend step is grounded on services/autoupgrade's
// process.
package globalphase

import (
	"context"
	"fmt"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/globalphase"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
	placementsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// Activator is the one placement capability the service needs: running the
// reserve-funded activation of the Global program's next slot (§4.3).
// This package imports services/placement for its Outcome type, the same
// way services/autoupgrade and services/recycle do; placement itself never
// imports this package, so no cycle results.
type Activator interface {
	ActivateAuto(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency, correlationID, sourceEventID string) (placementsvc.Outcome, error)
}

// ReserveLedger is the reserve-balance slice of services/ledger.Writer this
// package needs: reading the accumulated level-30% credits and debiting
// them once they fund a slot's activation price.
type ReserveLedger interface {
	GetReserveBalance(ctx context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error)
	DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.ReserveBalance, error)
}

// Service evaluates and advances one user's Global phase progress.
type Service struct {
	phases    storage.GlobalPhaseStore
	reserve   ReserveLedger
	cat       *catalog.Catalog
	activator Activator
	log       *logger.Logger
	now       func() time.Time
}

// New builds a Service.
func New(phases storage.GlobalPhaseStore, reserve ReserveLedger, cat *catalog.Catalog, activator Activator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("global-phase")
	}
	return &Service{phases: phases, reserve: reserve, cat: cat, activator: activator, log: log, now: time.Now}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordPlacement increments userID's phase-membership count by one. It
// implements placement.GlobalPhaseTracker, the hook services/placement
// calls immediately after every Global-program placement lands under
// userID's current-phase tree (§4.3 place_global).
func (s *Service) RecordPlacement(ctx context.Context, userID string) error {
	state, ok, err := s.phases.GetPhaseState(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		state = globalphase.State{UserID: userID, CurrentPhase: tree.PhaseOne, CurrentSlotNo: 1}
	}
	state.MembersInPhase++
	_, err = s.phases.UpsertPhaseState(ctx, state)
	return err
}

// Tick implements the /progress/global/{user_id} operation (§6): an
// idempotent check of whether the current phase has filled. A call against
// a phase that has not yet filled is a no-op and returns advanced=false.
//
//   - Phase 1 filling (4 members) advances to phase 2 at the same slot,
//     resetting the member count (§4.3's two-phase cycle).
//   - Phase 2 filling (8 members) attempts to auto-activate the next slot
//     from the accumulated reserve; if the reserve does not yet cover that
//     slot's price, the phase is left complete-but-unadvanced and a later
//     Tick (once more reserve has accrued) will finish the progression.
//     If there is no further slot in the catalog, progression stops and
//     Tick keeps returning advanced=false for that user from then on.
func (s *Service) Tick(ctx context.Context, userID string) (globalphase.State, bool, error) {
	state, ok, err := s.phases.GetPhaseState(ctx, userID)
	if err != nil {
		return globalphase.State{}, false, err
	}
	if !ok {
		state = globalphase.State{UserID: userID, CurrentPhase: tree.PhaseOne, CurrentSlotNo: 1}
	}
	if !state.PhaseComplete() {
		return state, false, nil
	}

	if state.CurrentPhase == tree.PhaseOne {
		state.CurrentPhase = tree.PhaseTwo
		state.MembersInPhase = 0
		saved, err := s.phases.UpsertPhaseState(ctx, state)
		if err != nil {
			return globalphase.State{}, false, err
		}
		s.log.WithField("user_id", userID).WithField("slot_no", state.CurrentSlotNo).
			Info("global phase 1 complete, advanced to phase 2")
		return saved, true, nil
	}

	nextSlot := state.CurrentSlotNo + 1
	price, err := s.cat.Price(program.Global, nextSlot)
	if err != nil {
		// No further slot in the catalog; phase 2 stays complete with
		// nothing left to progress into.
		return state, false, nil
	}

	balance, err := s.reserve.GetReserveBalance(ctx, userID, program.Global, nextSlot)
	if err != nil {
		return globalphase.State{}, false, err
	}
	const epsilon = 1e-8
	if balance.Amount+epsilon < price {
		return state, false, nil
	}

	correlationID := fmt.Sprintf("global-%s-%d-phase_progression-%d", userID, nextSlot, s.now().UnixNano())
	if _, _, err := s.reserve.DebitReserve(ctx, userID, program.Global, nextSlot, price, "USD",
		ledger.ReasonReserveDebitAutoActivate, correlationID, correlationID); err != nil {
		return globalphase.State{}, false, err
	}
	if _, err := s.activator.ActivateAuto(ctx, userID, program.Global, nextSlot, price, "USD", correlationID, correlationID); err != nil {
		return globalphase.State{}, false, err
	}

	state.CurrentSlotNo = nextSlot
	state.CurrentPhase = tree.PhaseOne
	state.MembersInPhase = 0
	saved, err := s.phases.UpsertPhaseState(ctx, state)
	if err != nil {
		return globalphase.State{}, false, err
	}
	s.log.WithField("user_id", userID).WithField("slot_no", nextSlot).
		Info("global phase 2 complete, auto-activated next slot")
	return saved, true, nil
}
