// Package ledger is the write side of the append-only value-movement
// record (§4.2): every credit or debit the cascade engine performs goes
// through one of these methods, so the ledger entry and the projection it
// updates (reserve balance, fund pool balance) never drift apart.
package ledger

import (
	"context"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/apperr"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/commission"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/funds"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
)

// Writer is the only path by which the engine mutates the ledger and its
// projections. Each credit and debit method appends exactly one
// ledger.Entry, except DebitFundPool and RecordCommission, which append
// none; GetReserveBalance, GetFundPool and AlreadyReplayed only read.
type Writer struct {
	ledger      storage.LedgerStore
	commissions storage.CommissionStore
	funds       storage.FundsStore
	now         func() time.Time
}

// New builds a Writer backed by the given stores.
func New(ledgerStore storage.LedgerStore, commissionStore storage.CommissionStore, fundsStore storage.FundsStore) *Writer {
	return &Writer{ledger: ledgerStore, commissions: commissionStore, funds: fundsStore, now: time.Now}
}

// WithClock overrides the wall clock, for deterministic tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) entry(userID string, p program.Program, kind ledger.Kind, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string, targetSlot int) ledger.Entry {
	return ledger.Entry{
		TS:            w.now(),
		UserID:        userID,
		Program:       p,
		Kind:          kind,
		Amount:        amount,
		Currency:      currency,
		ReasonCode:    reason,
		CorrelationID: correlationID,
		SourceEventID: sourceEventID,
		TargetSlot:    targetSlot,
	}
}

// CreditWallet appends a wallet_credit entry. Used for every payee that is
// an individual user's claimable balance (level distribution, partner
// incentive, newcomer instant, mentorship, the binary slot-1 full-upline
// payout).
func (w *Writer) CreditWallet(ctx context.Context, userID string, p program.Program, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, error) {
	e := w.entry(userID, p, ledger.KindWalletCredit, amount, currency, reason, correlationID, sourceEventID, 0)
	return w.ledger.AppendEntry(ctx, e)
}

// CreditReserve appends a reserve_credit entry and returns the updated
// reserve-balance projection (§3 Reserve balance). I3 (non-negative
// reserve) is preserved automatically by credits; DebitReserve enforces it.
func (w *Writer) CreditReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.ReserveBalance, error) {
	e := w.entry(userID, p, ledger.KindReserveCredit, amount, currency, reason, correlationID, sourceEventID, targetSlot)
	entry, err := w.ledger.AppendEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, ledger.ReserveBalance{}, err
	}
	bal, err := w.ledger.CreditReserve(ctx, userID, p, targetSlot, amount)
	if err != nil {
		return ledger.Entry{}, ledger.ReserveBalance{}, err
	}
	return entry, bal, nil
}

// GetReserveBalance is a read-through to a user's accumulated reserve for
// one (program, target slot) pair, used by services/globalphase to decide
// whether a phase-2 completion has accrued enough to fund the next slot.
func (w *Writer) GetReserveBalance(ctx context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error) {
	return w.ledger.GetReserveBalance(ctx, userID, p, targetSlot)
}

// DebitReserve appends a reserve_debit entry after checking invariant I3:
// the debit must not drive the balance negative. Used by the auto-upgrade
// manager when it funds an auto-activation from accumulated reserve.
func (w *Writer) DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.ReserveBalance, error) {
	current, err := w.ledger.GetReserveBalance(ctx, userID, p, targetSlot)
	if err != nil {
		return ledger.Entry{}, ledger.ReserveBalance{}, err
	}
	const epsilon = 1e-8
	if current.Amount-amount < -epsilon {
		return ledger.Entry{}, ledger.ReserveBalance{}, apperr.InsufficientFunds(amount, current.Amount)
	}
	e := w.entry(userID, p, ledger.KindReserveDebit, amount, currency, reason, correlationID, sourceEventID, targetSlot)
	entry, err := w.ledger.AppendEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, ledger.ReserveBalance{}, err
	}
	bal, err := w.ledger.DebitReserve(ctx, userID, p, targetSlot, amount)
	if err != nil {
		return ledger.Entry{}, ledger.ReserveBalance{}, err
	}
	return entry, bal, nil
}

// CreditFund appends a fund_credit entry against a named pool (Spark,
// Royal Captain, President, Leadership Stipend, Jackpot, Shareholders,
// Triple-Entry, Newcomer upline fund, ...) and returns the updated pool.
func (w *Writer) CreditFund(ctx context.Context, poolName string, p program.Program, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.FundPool, error) {
	e := w.entry(poolName, p, ledger.KindFundCredit, amount, currency, reason, correlationID, sourceEventID, 0)
	entry, err := w.ledger.AppendEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, ledger.FundPool{}, err
	}
	pool, err := w.ledger.CreditFundPool(ctx, poolName, currency, amount)
	if err != nil {
		return ledger.Entry{}, ledger.FundPool{}, err
	}
	return entry, pool, nil
}

// GetFundPool is a read-through to the named pool's current balance, used
// by services/funds to decide whether a scheduled distribution has
// anything to pay out.
func (w *Writer) GetFundPool(ctx context.Context, poolName, currency string) (ledger.FundPool, error) {
	return w.ledger.GetFundPool(ctx, poolName, currency)
}

// DebitFundPool debits a named pool for a scheduled payout (NGS tick,
// leadership stipend daily payout, Spark distribution). It does not append
// a ledger entry itself; callers append the corresponding wallet_credit(s)
// and are responsible for keeping the two in the same transaction boundary.
func (w *Writer) DebitFundPool(ctx context.Context, poolName, currency string, amount float64) (ledger.FundPool, error) {
	return w.ledger.DebitFundPool(ctx, poolName, currency, amount)
}

// RecordMissedProfit appends a missed_profit entry for a level whose
// intended recipient was ineligible, and routes the share into the
// Leadership Stipend fund (§4.4 "diverts that share to Leadership Stipend
// as missed profit").
func (w *Writer) RecordMissedProfit(ctx context.Context, userID string, p program.Program, amount float64, currency, correlationID, sourceEventID string) (ledger.Entry, ledger.FundPool, error) {
	e := w.entry(userID, p, ledger.KindMissedProfit, amount, currency, ledger.ReasonLeadershipStipendMissed, correlationID, sourceEventID, 0)
	entry, err := w.ledger.AppendEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, ledger.FundPool{}, err
	}
	pool, err := w.ledger.CreditFundPool(ctx, "leadership_stipend", currency, amount)
	if err != nil {
		return ledger.Entry{}, ledger.FundPool{}, err
	}
	return entry, pool, nil
}

// CreditNewcomerUplineFund appends a fund_credit entry and accumulates the
// referrer's Newcomer Growth Support pool (§4.7 "upline-fund half
// distributed equally among the upline's current direct referrals every 30
// days") — unlike CreditFund's named pools, this one is keyed per referrer
// so the scheduler knows whose directs to split it across.
func (w *Writer) CreditNewcomerUplineFund(ctx context.Context, referrerID string, p program.Program, amount float64, currency, correlationID, sourceEventID string) (ledger.Entry, funds.NewcomerPool, error) {
	e := w.entry(referrerID, p, ledger.KindFundCredit, amount, currency, ledger.ReasonNewcomerUplineFund, correlationID, sourceEventID, 0)
	entry, err := w.ledger.AppendEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, funds.NewcomerPool{}, err
	}
	pool, err := w.funds.CreditNewcomerPool(ctx, referrerID, currency, amount)
	if err != nil {
		return ledger.Entry{}, funds.NewcomerPool{}, err
	}
	return entry, pool, nil
}

// RecordCommission appends a commission.Event alongside a ledger write,
// giving an auditable "who got paid for what slot at what level" record
// independent of the ledger's reason-code stream.
func (w *Writer) RecordCommission(ctx context.Context, e commission.Event) (commission.Event, error) {
	return w.commissions.AppendEvent(ctx, e)
}

// AlreadyReplayed implements the idempotency check of I7/P4: if any ledger
// entries already exist for this correlation_id, the event was already
// processed and must not be re-applied.
func (w *Writer) AlreadyReplayed(ctx context.Context, correlationID string) ([]ledger.Entry, bool, error) {
	entries, err := w.ledger.ListEntriesByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, false, err
	}
	return entries, len(entries) > 0, nil
}

