// Package ledger holds the append-only value-movement record (§3, §4.2)
// and the two projections derived from it: reserve balances and fund pool
// balances. Balances are never mutated directly by callers — they are
// always derived from, or updated alongside, a LedgerEntry append.
package ledger

import (
	"strconv"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// Kind is the closed set of ledger movement kinds named by §3.
type Kind string

const (
	KindWalletCredit  Kind = "wallet_credit"
	KindWalletDebit   Kind = "wallet_debit"
	KindReserveCredit Kind = "reserve_credit"
	KindReserveDebit  Kind = "reserve_debit"
	KindFundCredit    Kind = "fund_credit"
	KindMissedProfit  Kind = "missed_profit"
)

// ReasonCode is the closed vocabulary named by §6.
type ReasonCode string

const (
	ReasonJoiningCommission         ReasonCode = "joining_commission"
	ReasonPartnerIncentive          ReasonCode = "partner_incentive"
	ReasonLevelDistribution         ReasonCode = "level_distribution"
	ReasonReserveRouteToNextSlot    ReasonCode = "reserve_route_to_next_slot"
	ReasonReserveDebitAutoActivate  ReasonCode = "reserve_debit_auto_activation"
	ReasonSlotActivationFullUpline  ReasonCode = "slot_activation_full_upline"
	ReasonSparkFund                 ReasonCode = "spark_fund"
	ReasonRoyalCaptainFund          ReasonCode = "royal_captain_fund"
	ReasonPresidentFund             ReasonCode = "president_fund"
	ReasonLeadershipStipendFund     ReasonCode = "leadership_stipend_fund"
	ReasonLeadershipStipendMissed   ReasonCode = "leadership_stipend_missed_profit"
	ReasonJackpotFund               ReasonCode = "jackpot_fund"
	ReasonNewcomerInstant           ReasonCode = "newcomer_instant"
	ReasonNewcomerUplineFund        ReasonCode = "newcomer_upline_fund"
	ReasonMentorship                ReasonCode = "mentorship"
	ReasonShareholders              ReasonCode = "shareholders"
	ReasonTripleEntryFund           ReasonCode = "triple_entry_fund"
	ReasonMotherFallback            ReasonCode = "mother_fallback"
	ReasonAutoUpgradeChain          ReasonCode = "auto_upgrade_chain"
	ReasonRecycleReentry            ReasonCode = "recycle_reentry"
)

// Entry is one append-only ledger record (§3).
type Entry struct {
	Seq           int64           `json:"seq"`
	TS            time.Time       `json:"ts"`
	UserID        string          `json:"user_id"`
	Program       program.Program `json:"program"`
	Kind          Kind            `json:"kind"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	ReasonCode    ReasonCode      `json:"reason_code"`
	CorrelationID string          `json:"correlation_id"`
	SourceEventID string          `json:"source_event_id"`
	TargetSlot    int             `json:"target_slot,omitempty"`
}

// ReserveBalance is the projection of reserve_credit/reserve_debit entries
// for a single (user, program, target slot) key (§3).
type ReserveBalance struct {
	UserID     string          `json:"user_id"`
	Program    program.Program `json:"program"`
	TargetSlot int             `json:"target_slot"`
	Amount     float64         `json:"amount"`
}

// Key returns the composite key this balance is keyed on.
func (r ReserveBalance) Key() string {
	return string(r.Program) + "|" + r.UserID + "|" + strconv.Itoa(r.TargetSlot)
}

// FundPool is the projection of fund_credit entries for one named pool
// (Spark, Royal Captain, President, Leadership Stipend, Triple-Entry,
// Newcomer, Shareholders, ...), scoped by currency.
type FundPool struct {
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}
