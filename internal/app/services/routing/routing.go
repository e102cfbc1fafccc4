// Package routing is the pure decision tree of §4.4: given an activation
// event's already-resolved placement facts (who is at what BFS position
// under which ancestor, who has which slot active), it returns the vector
// of ledger intents the event produces. It performs no I/O and takes no
// context.Context — every fact it needs is supplied by the caller
// (services/placement), which is the only place store lookups happen.
// This mirrors the design note in §9: the per-event decision tree is
// pulled into a pure function returning ledger intents, trivially
// unit-testable in isolation from storage.
package routing

import (
	"fmt"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/commission"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// IntentKind classifies a recipient in the returned vector.
type IntentKind string

const (
	IntentWallet       IntentKind = "wallet"
	IntentReserve      IntentKind = "reserve"
	IntentFund         IntentKind = "fund"
	IntentMissedProfit IntentKind = "missed_profit"
)

// Intent is one ledger movement the routing decision produces. Amount is
// always a positive share of the event's total amount_in.
type Intent struct {
	Kind        IntentKind
	PayeeUserID string // set for IntentWallet and IntentReserve
	TargetSlot  int    // set for IntentReserve
	FundName    string // set for IntentFund and IntentMissedProfit (pool name)
	Amount      float64
	ReasonCode  ledger.ReasonCode
	Category    commission.Category
	Level       int // 1-based level, set for level-distribution intents
}

// LevelRecipient describes one level's resolved upline for the level
// distribution bucket: who they are, and whether they are eligible to
// receive it (has the required activation at that level and, where the
// rules require it, enough partners). Ineligible levels divert to
// Leadership Stipend as missed profit (§4.4).
type LevelRecipient struct {
	UserID   string
	Eligible bool
}

// BinaryEvent carries the facts §4.4's Binary decision tree needs,
// already resolved by the tree/activation services.
type BinaryEvent struct {
	SlotNo                    int
	Amount                    float64
	AncestorID                string // ancestor(user, binary, N, depth=N)
	BFSPositionUnderAncestor  int    // bfs_index_under(A, slot=N)
	AncestorHasNextSlotActive bool
	LevelRecipients           []LevelRecipient // 1..16, index 0 = level 1
}

// RouteBinary implements §4.4 "Binary, slot 1" and "Binary, slot N ≥ 2".
func RouteBinary(cat *catalog.Catalog, directUplineID string, ev BinaryEvent) ([]Intent, error) {
	if ev.SlotNo == 1 {
		return []Intent{{
			Kind:        IntentWallet,
			PayeeUserID: directUplineID,
			Amount:      ev.Amount,
			ReasonCode:  ledger.ReasonSlotActivationFullUpline,
		}}, nil
	}

	if (ev.BFSPositionUnderAncestor == 0 || ev.BFSPositionUnderAncestor == 1) && !ev.AncestorHasNextSlotActive {
		return []Intent{{
			Kind:        IntentReserve,
			PayeeUserID: ev.AncestorID,
			TargetSlot:  ev.SlotNo + 1,
			Amount:      ev.Amount,
			ReasonCode:  ledger.ReasonReserveRouteToNextSlot,
		}}, nil
	}

	pct, err := cat.FundPercentages(program.Binary)
	if err != nil {
		return nil, err
	}
	levelShares, err := cat.LevelShares(program.Binary)
	if err != nil {
		return nil, err
	}
	if len(levelShares) != len(ev.LevelRecipients) {
		return nil, fmt.Errorf("routing: expected %d binary level recipients, got %d", len(levelShares), len(ev.LevelRecipients))
	}

	var intents []Intent
	intents = append(intents,
		fundIntent(catalog.BucketSpark, ev.Amount*pct[catalog.BucketSpark]/100, ledger.ReasonSparkFund),
		fundIntent(catalog.BucketRoyalCaptain, ev.Amount*pct[catalog.BucketRoyalCaptain]/100, ledger.ReasonRoyalCaptainFund),
		fundIntent(catalog.BucketPresident, ev.Amount*pct[catalog.BucketPresident]/100, ledger.ReasonPresidentFund),
		fundIntent(catalog.BucketLeadershipStipend, ev.Amount*pct[catalog.BucketLeadershipStipend]/100, ledger.ReasonLeadershipStipendFund),
		fundIntent(catalog.BucketJackpot, ev.Amount*pct[catalog.BucketJackpot]/100, ledger.ReasonJackpotFund),
		walletIntent(directUplineID, ev.Amount*pct[catalog.BucketPartnerIncentive]/100, ledger.ReasonPartnerIncentive, commission.CategoryPartnerIncentive, 0),
		fundIntent(catalog.BucketShareholders, ev.Amount*pct[catalog.BucketShareholders]/100, ledger.ReasonShareholders),
	)
	intents = append(intents, levelIntents(ev.Amount, levelShares, ev.LevelRecipients)...)
	return intents, nil
}

// MatrixEvent carries the facts §4.4's Matrix decision tree needs.
type MatrixEvent struct {
	Amount                float64
	SuperUplineID         string // ancestor(user, matrix, slot, depth=2)
	IsMiddlePositionUnderSuper bool
	SuperHasNextSlotActive     bool
	DirectReferrerID           string // pays Partner Incentive
	ReferrersReferrerID        string // pays Mentorship (referral chain, not placement)
	LevelRecipients            []LevelRecipient // 1..3
}

// RouteMatrix implements §4.4 "Matrix, any slot" (and, unchanged, "Matrix
// recycle placement", which runs the same routing against the new
// placement context).
func RouteMatrix(cat *catalog.Catalog, nextMatrixSlot int, ev MatrixEvent) ([]Intent, error) {
	if ev.IsMiddlePositionUnderSuper && !ev.SuperHasNextSlotActive {
		return []Intent{{
			Kind:        IntentReserve,
			PayeeUserID: ev.SuperUplineID,
			TargetSlot:  nextMatrixSlot,
			Amount:      ev.Amount,
			ReasonCode:  ledger.ReasonReserveRouteToNextSlot,
		}}, nil
	}

	pct, err := cat.FundPercentages(program.Matrix)
	if err != nil {
		return nil, err
	}
	levelShares, err := cat.LevelShares(program.Matrix)
	if err != nil {
		return nil, err
	}
	if len(levelShares) != len(ev.LevelRecipients) {
		return nil, fmt.Errorf("routing: expected %d matrix level recipients, got %d", len(levelShares), len(ev.LevelRecipients))
	}

	newcomerTotal := ev.Amount * pct[catalog.BucketNewcomer] / 100
	newcomerHalf := newcomerTotal / 2

	var intents []Intent
	intents = append(intents,
		fundIntent(catalog.BucketSpark, ev.Amount*pct[catalog.BucketSpark]/100, ledger.ReasonSparkFund),
		fundIntent(catalog.BucketRoyalCaptain, ev.Amount*pct[catalog.BucketRoyalCaptain]/100, ledger.ReasonRoyalCaptainFund),
		fundIntent(catalog.BucketPresident, ev.Amount*pct[catalog.BucketPresident]/100, ledger.ReasonPresidentFund),
		Intent{
			Kind:        IntentFund,
			PayeeUserID: ev.DirectReferrerID,
			Amount:      newcomerHalf,
			ReasonCode:  ledger.ReasonNewcomerUplineFund,
		},
		fundIntent(catalog.BucketShareholders, ev.Amount*pct[catalog.BucketShareholders]/100, ledger.ReasonShareholders),
	)
	// The other newcomer half is claimable directly by the joining user;
	// the caller supplies that payee since routing.MatrixEvent does not
	// carry the joining user's id (routing has no notion of "self").
	intents = append(intents, Intent{
		Kind:       IntentWallet,
		Amount:     newcomerHalf,
		ReasonCode: ledger.ReasonNewcomerInstant,
		Category:   commission.CategoryNewcomer,
	})
	if ev.ReferrersReferrerID != "" {
		intents = append(intents, walletIntent(ev.ReferrersReferrerID, ev.Amount*pct[catalog.BucketMentorship]/100, ledger.ReasonMentorship, commission.CategoryMentorship, 0))
	} else {
		intents = append(intents, Intent{Kind: IntentMissedProfit, FundName: "leadership_stipend", Amount: ev.Amount * pct[catalog.BucketMentorship] / 100, ReasonCode: ledger.ReasonLeadershipStipendMissed})
	}
	intents = append(intents, walletIntent(ev.DirectReferrerID, ev.Amount*pct[catalog.BucketPartnerIncentive]/100, ledger.ReasonPartnerIncentive, commission.CategoryPartnerIncentive, 0))
	intents = append(intents, levelIntents(ev.Amount, levelShares, ev.LevelRecipients)...)
	return intents, nil
}

// GlobalEvent carries the facts §4.4's Global decision tree needs.
type GlobalEvent struct {
	Amount            float64
	OwnerID           string // reserve payee for the Level bucket
	NextPhaseSlot     int
	TripleEntryPayees []string // users eligible for the Triple-Entry fund at this point in time
}

// RouteGlobal implements §4.4 "Global, any slot" — always normal
// distribution; Level flows to the owner's own reserve rather than a
// wallet, and Triple-Entry is a fund credit (per-user Triple-Entry payouts
// are computed periodically by services/funds, not per event).
func RouteGlobal(cat *catalog.Catalog, ev GlobalEvent) ([]Intent, error) {
	pct, err := cat.FundPercentages(program.Global)
	if err != nil {
		return nil, err
	}
	return []Intent{
		{
			Kind:        IntentReserve,
			PayeeUserID: ev.OwnerID,
			TargetSlot:  ev.NextPhaseSlot,
			Amount:      ev.Amount * pct[catalog.BucketGlobalReserveLevel] / 100,
			ReasonCode:  ledger.ReasonReserveRouteToNextSlot,
		},
		fundIntent(catalog.BucketPartnerIncentive, ev.Amount*pct[catalog.BucketPartnerIncentive]/100, ledger.ReasonPartnerIncentive),
		fundIntent(catalog.BucketProfit, ev.Amount*pct[catalog.BucketProfit]/100, ledger.ReasonLevelDistribution),
		fundIntent(catalog.BucketRoyalCaptain, ev.Amount*pct[catalog.BucketRoyalCaptain]/100, ledger.ReasonRoyalCaptainFund),
		fundIntent(catalog.BucketPresident, ev.Amount*pct[catalog.BucketPresident]/100, ledger.ReasonPresidentFund),
		fundIntent(catalog.BucketTripleEntry, ev.Amount*pct[catalog.BucketTripleEntry]/100, ledger.ReasonTripleEntryFund),
		fundIntent(catalog.BucketShareholders, ev.Amount*pct[catalog.BucketShareholders]/100, ledger.ReasonShareholders),
	}, nil
}

func levelIntents(total float64, shares []float64, recipients []LevelRecipient) []Intent {
	out := make([]Intent, 0, len(shares))
	for i, share := range shares {
		amount := total * share / 100
		r := recipients[i]
		if r.Eligible && r.UserID != "" {
			out = append(out, Intent{
				Kind:        IntentWallet,
				PayeeUserID: r.UserID,
				Amount:      amount,
				ReasonCode:  ledger.ReasonLevelDistribution,
				Category:    commission.CategoryLevelDistribution,
				Level:       i + 1,
			})
			continue
		}
		out = append(out, Intent{
			Kind:       IntentMissedProfit,
			FundName:   "leadership_stipend",
			Amount:     amount,
			ReasonCode: ledger.ReasonLeadershipStipendMissed,
			Level:      i + 1,
		})
	}
	return out
}

func walletIntent(payee string, amount float64, reason ledger.ReasonCode, category commission.Category, level int) Intent {
	return Intent{Kind: IntentWallet, PayeeUserID: payee, Amount: amount, ReasonCode: reason, Category: category, Level: level}
}

func fundIntent(bucket catalog.FundBucket, amount float64, reason ledger.ReasonCode) Intent {
	return Intent{Kind: IntentFund, FundName: string(bucket), Amount: amount, ReasonCode: reason}
}
