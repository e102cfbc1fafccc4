package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayon178/bitgpt-backend-sub002/internal/apperr"
	domainledger "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage/memory"
)

func newTestWriter() *Writer {
	store := memory.New()
	w := New(store, store, store)
	return w.WithClock(func() time.Time { return time.Unix(1700000000, 0) })
}

func TestCreditReserveThenDebitReserve(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter()

	_, bal, err := w.CreditReserve(ctx, "alice", program.Binary, 2, 10, "USD",
		domainledger.ReasonReserveRouteToNextSlot, "corr-1", "evt-1")
	require.NoError(t, err)
	require.InDelta(t, 10, bal.Amount, 1e-9)

	fetched, err := w.GetReserveBalance(ctx, "alice", program.Binary, 2)
	require.NoError(t, err)
	require.InDelta(t, 10, fetched.Amount, 1e-9)

	_, bal, err = w.DebitReserve(ctx, "alice", program.Binary, 2, 4, "USD",
		domainledger.ReasonReserveDebitAutoActivate, "corr-2", "evt-2")
	require.NoError(t, err)
	require.InDelta(t, 6, bal.Amount, 1e-9)
}

func TestDebitReserveRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter()

	_, _, err := w.CreditReserve(ctx, "alice", program.Binary, 2, 5, "USD",
		domainledger.ReasonReserveRouteToNextSlot, "corr-1", "evt-1")
	require.NoError(t, err)

	_, _, err = w.DebitReserve(ctx, "alice", program.Binary, 2, 5.01, "USD",
		domainledger.ReasonReserveDebitAutoActivate, "corr-2", "evt-2")
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeInsufficientFunds))
}

func TestCreditFundThenDebitFundPool(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter()

	_, pool, err := w.CreditFund(ctx, "spark", program.Binary, 20, "USD",
		domainledger.ReasonSparkFund, "corr-1", "evt-1")
	require.NoError(t, err)
	require.InDelta(t, 20, pool.Balance, 1e-9)

	pool, err = w.DebitFundPool(ctx, "spark", "USD", 8)
	require.NoError(t, err)
	require.InDelta(t, 12, pool.Balance, 1e-9)
}

func TestAlreadyReplayedDetectsDuplicateCorrelationID(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter()

	_, ok, err := w.AlreadyReplayed(ctx, "corr-unused")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = w.CreditWallet(ctx, "alice", program.Binary, 5, "USD",
		domainledger.ReasonPartnerIncentive, "corr-seen", "evt-1")
	require.NoError(t, err)

	entries, ok, err := w.AlreadyReplayed(ctx, "corr-seen")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestCreditNewcomerUplineFundAccumulatesPerReferrer(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter()

	_, pool, err := w.CreditNewcomerUplineFund(ctx, "referrer-1", program.Matrix, 10, "USD", "corr-1", "evt-1")
	require.NoError(t, err)
	require.InDelta(t, 10, pool.Balance, 1e-9)

	_, pool, err = w.CreditNewcomerUplineFund(ctx, "referrer-1", program.Matrix, 5, "USD", "corr-2", "evt-2")
	require.NoError(t, err)
	require.InDelta(t, 15, pool.Balance, 1e-9)
}
