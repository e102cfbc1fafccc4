package globalphase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	domainglobalphase "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/globalphase"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
	placementsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage/memory"
)

// stubReserve is a minimal ReserveLedger double whose balance can be set
// directly by a test, without routing through a full ledger.Writer.
type stubReserve struct {
	balance ledger.ReserveBalance
	debited float64
}

func (s *stubReserve) GetReserveBalance(ctx context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error) {
	return s.balance, nil
}

func (s *stubReserve) DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.ReserveBalance, error) {
	s.debited += amount
	s.balance.Amount -= amount
	return ledger.Entry{}, s.balance, nil
}

// stubActivator is a minimal Activator double recording every call made to
// it, without exercising the full placement orchestrator.
type stubActivator struct {
	calls []activatorCall
}

type activatorCall struct {
	userID     string
	program    program.Program
	targetSlot int
	amount     float64
}

func (s *stubActivator) ActivateAuto(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency, correlationID, sourceEventID string) (placementsvc.Outcome, error) {
	s.calls = append(s.calls, activatorCall{userID, p, targetSlot, amount})
	return placementsvc.Outcome{}, nil
}

func newTestService(reserve ReserveLedger, activator Activator) (*Service, *memory.Store) {
	store := memory.New()
	svc := New(store, reserve, catalog.New(), activator, nil)
	svc.WithClock(func() time.Time { return time.Unix(1700000000, 0) })
	return svc, store
}

func TestRecordPlacementIncrementsMembersInPhase(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(&stubReserve{}, &stubActivator{})

	require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))

	state, ok, err := store.GetPhaseState(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, state.MembersInPhase)
	require.Equal(t, tree.PhaseOne, state.CurrentPhase)
	require.Equal(t, 1, state.CurrentSlotNo)
}

func TestTickIsNoopWhenPhaseIncomplete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&stubReserve{}, &stubActivator{})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}

	state, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, advanced)
	require.Equal(t, tree.PhaseOne, state.CurrentPhase)
	require.Equal(t, 3, state.MembersInPhase)
}

func TestTickAdvancesPhaseOneToPhaseTwo(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(&stubReserve{}, &stubActivator{})

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}

	state, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, advanced)
	require.Equal(t, tree.PhaseTwo, state.CurrentPhase)
	require.Equal(t, 0, state.MembersInPhase)
	require.Equal(t, 1, state.CurrentSlotNo)

	persisted, ok, err := store.GetPhaseState(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state, persisted)

	// Calling again against the freshly-reset phase 2 (0/8 members) is a
	// no-op: idempotency (Tick must not advance twice off one completion).
	state, advanced, err = svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, advanced)
	require.Equal(t, tree.PhaseTwo, state.CurrentPhase)
}

func TestTickAutoActivatesNextSlotWhenReserveCoversPrice(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New()
	nextSlotPrice, err := cat.Price(program.Global, 2)
	require.NoError(t, err)

	reserve := &stubReserve{balance: ledger.ReserveBalance{Amount: nextSlotPrice}}
	activator := &stubActivator{}
	store := memory.New()
	svc := New(store, reserve, cat, activator, nil)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}
	_, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, advanced)

	for i := 0; i < 8; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}

	state, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, advanced)
	require.Equal(t, tree.PhaseOne, state.CurrentPhase)
	require.Equal(t, 2, state.CurrentSlotNo)
	require.Equal(t, 0, state.MembersInPhase)

	require.Len(t, activator.calls, 1)
	require.Equal(t, "owner-1", activator.calls[0].userID)
	require.Equal(t, program.Global, activator.calls[0].program)
	require.Equal(t, 2, activator.calls[0].targetSlot)
	require.InDelta(t, nextSlotPrice, activator.calls[0].amount, 1e-9)
	require.InDelta(t, nextSlotPrice, reserve.debited, 1e-9)
}

func TestTickNoopsWhenReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New()
	reserve := &stubReserve{balance: ledger.ReserveBalance{Amount: 1}}
	activator := &stubActivator{}
	store := memory.New()
	svc := New(store, reserve, cat, activator, nil)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}
	_, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, advanced)

	for i := 0; i < 8; i++ {
		require.NoError(t, svc.RecordPlacement(ctx, "owner-1"))
	}

	state, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, advanced)
	require.Equal(t, tree.PhaseTwo, state.CurrentPhase)
	require.Empty(t, activator.calls)
}

// TestTickNoopsWhenNoFurtherCatalogSlot seeds a user already on the last
// catalog slot with phase 2 complete: with no slot 17 to price, Tick must
// leave the state untouched rather than error.
func TestTickNoopsWhenNoFurtherCatalogSlot(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New()
	lastSlot := 1
	for {
		if _, err := cat.Price(program.Global, lastSlot+1); err != nil {
			break
		}
		lastSlot++
	}

	reserve := &stubReserve{balance: ledger.ReserveBalance{Amount: 1e12}}
	activator := &stubActivator{}
	store := memory.New()
	svc := New(store, reserve, cat, activator, nil)

	_, err := store.UpsertPhaseState(ctx, domainglobalphase.State{
		UserID:         "owner-1",
		CurrentPhase:   tree.PhaseTwo,
		CurrentSlotNo:  lastSlot,
		MembersInPhase: 8,
	})
	require.NoError(t, err)

	state, advanced, err := svc.Tick(ctx, "owner-1")
	require.NoError(t, err)
	require.False(t, advanced)
	require.Equal(t, lastSlot, state.CurrentSlotNo)
	require.Empty(t, activator.calls)
}
