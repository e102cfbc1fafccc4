// Package funds implements §4.7's special-fund eligibility predicates and
// the handful of payouts those predicates feed: Royal Captain, President
// Reward and Dream Matrix are eligibility-and-tier bookkeeping only (their
// pools accumulate via the routing engine's fund_credit intents; crediting
// individual qualifying members from those pools is a manual/reconciliation
// step this engine does not automate, since §4.7 names no per-member payout
// formula for them). Leadership Stipend and Spark do have a complete,
// mechanical formula, so this package also executes their payouts: Spark
// drains instantly per Matrix activation through that event's own upline
// chain, and Leadership Stipend pays out on the daily scheduler tick. The
// Newcomer Growth Support upline-fund half, accumulated per referrer by
// services/ledger, is split across that referrer's current direct
// referrals by the 30-day scheduler tick.
//
// Service implements placement.FundsEvaluator; Scheduler implements
// system.Service and drives the two genuinely periodic payouts with a
// *cron.Cron, the way the reference services package drives its own
// background workers.
package funds

import (
	"context"
	"fmt"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	domainfunds "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/funds"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	ledgersvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/ledger"
	treesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// royalCaptainTiers and presidentTiers resolve the one thing §4.7 leaves
// open: it names the baseline predicate for each fund ("≥5 direct partners
// holding both", "≥10 direct partners") and says awards are "progressive
// tiers" without giving the cut points. Tiers here are evenly spaced bands
// above the baseline.
var royalCaptainTiers = []int{5, 10, 15, 20, 25}
var presidentTiers = []int{10, 15, 20, 25, 30}

// Deps wires everything the fund package reads or writes through.
type Deps struct {
	Store       storage.FundsStore
	Users       storage.UserStore
	Activations storage.ActivationStore
	Phases      storage.GlobalPhaseStore
	Tree        *treesvc.Service
	Ledger      *ledgersvc.Writer
	Catalog     *catalog.Catalog
	Log         *logger.Logger
}

// Service recomputes fund eligibility and executes the mechanical payouts.
type Service struct {
	store       storage.FundsStore
	users       storage.UserStore
	activations storage.ActivationStore
	phases      storage.GlobalPhaseStore
	tree        *treesvc.Service
	ledger      *ledgersvc.Writer
	cat         *catalog.Catalog
	log         *logger.Logger
	now         func() time.Time
}

// New builds a funds Service.
func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault("funds")
	}
	return &Service{
		store: d.Store, users: d.Users, activations: d.Activations, phases: d.Phases,
		tree: d.Tree, ledger: d.Ledger, cat: d.Catalog, log: log, now: time.Now,
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// OnActivation implements placement.FundsEvaluator: every activation
// recomputes the snapshot-based eligibility predicates, and a Matrix
// activation additionally drains the Spark pool through its own upline.
func (s *Service) OnActivation(ctx context.Context, userID string, p program.Program, slotNo, generation int) error {
	if err := s.recomputeRoyalCaptain(ctx, userID); err != nil {
		return err
	}
	if err := s.recomputePresident(ctx, userID); err != nil {
		return err
	}
	if err := s.recomputeLeadershipStipend(ctx, userID); err != nil {
		return err
	}
	if err := s.recomputeDreamMatrix(ctx, userID); err != nil {
		return err
	}
	if p == program.Matrix {
		if err := s.distributeSpark(ctx, userID, slotNo, generation); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) upsertEligibility(ctx context.Context, userID string, fund domainfunds.FundName, eligible bool, tier int) error {
	_, err := s.store.UpsertEligibility(ctx, domainfunds.EligibilityRecord{
		UserID: userID, Fund: fund, Eligible: eligible, Tier: tier, EvaluatedAt: s.now(),
	})
	return err
}

func tierFor(count int, thresholds []int) int {
	tier := 0
	for i, t := range thresholds {
		if count >= t {
			tier = i + 1
		}
	}
	return tier
}

// recomputeRoyalCaptain implements §4.7's predicate: Matrix AND Global AND
// ≥5 direct partners who themselves hold both programs.
func (s *Service) recomputeRoyalCaptain(ctx context.Context, userID string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.ProgramFlags.Matrix || !u.ProgramFlags.Global {
		return s.upsertEligibility(ctx, userID, domainfunds.FundRoyalCaptain, false, 0)
	}
	graph, err := s.users.GetPartnerGraph(ctx, userID)
	if err != nil {
		return err
	}
	qualified := 0
	for _, directID := range graph.Directs {
		d, err := s.users.GetUser(ctx, directID)
		if err != nil {
			return err
		}
		if d.ProgramFlags.Matrix && d.ProgramFlags.Global {
			qualified++
		}
	}
	if qualified < 5 {
		return s.upsertEligibility(ctx, userID, domainfunds.FundRoyalCaptain, false, 0)
	}
	return s.upsertEligibility(ctx, userID, domainfunds.FundRoyalCaptain, true, tierFor(qualified, royalCaptainTiers))
}

// recomputePresident implements §4.7's predicate: ≥10 direct partners AND
// ≥80 in the user's global team. Team size is read from the Global phase
// projection (members placed in the user's current phase tree) since that
// is the one existing cumulative-count the engine already tracks.
func (s *Service) recomputePresident(ctx context.Context, userID string) error {
	graph, err := s.users.GetPartnerGraph(ctx, userID)
	if err != nil {
		return err
	}
	teamSize := 0
	if state, ok, err := s.phases.GetPhaseState(ctx, userID); err != nil {
		return err
	} else if ok {
		teamSize = state.MembersInPhase
	}
	directCount := len(graph.Directs)
	if directCount < 10 || teamSize < 80 {
		return s.upsertEligibility(ctx, userID, domainfunds.FundPresident, false, 0)
	}
	return s.upsertEligibility(ctx, userID, domainfunds.FundPresident, true, tierFor(directCount, presidentTiers))
}

// recomputeLeadershipStipend implements §4.7: eligible once any slot ≥10 is
// activated in any program; tier records the highest such slot number.
func (s *Service) recomputeLeadershipStipend(ctx context.Context, userID string) error {
	highest := 0
	for _, p := range []program.Program{program.Binary, program.Matrix, program.Global} {
		slot, err := s.activations.HighestActiveSlot(ctx, userID, p)
		if err != nil {
			return err
		}
		if slot >= 10 && slot > highest {
			highest = slot
		}
	}
	if highest == 0 {
		return s.upsertEligibility(ctx, userID, domainfunds.FundLeadershipStipend, false, 0)
	}
	return s.upsertEligibility(ctx, userID, domainfunds.FundLeadershipStipend, true, highest)
}

// recomputeDreamMatrix implements §4.7's predicate (≥3 direct partners)
// and, while eligible, advances the progressive payout schedule one
// qualifying event at a time. The payout itself is tracked as progress
// only: §6's closed ledger reason-code vocabulary has no Dream Matrix
// entry, so crediting members from this schedule is left to the same
// manual reconciliation step as Royal Captain and President.
func (s *Service) recomputeDreamMatrix(ctx context.Context, userID string) error {
	graph, err := s.users.GetPartnerGraph(ctx, userID)
	if err != nil {
		return err
	}
	directCount := len(graph.Directs)
	eligible := directCount >= 3
	if err := s.upsertEligibility(ctx, userID, domainfunds.FundDreamMatrix, eligible, directCount); err != nil {
		return err
	}
	if !eligible {
		return nil
	}
	progress, _, err := s.store.GetDreamMatrixProgress(ctx, userID)
	if err != nil {
		return err
	}
	progress.UserID = userID
	if progress.EventsPaidOut >= len(domainfunds.DreamMatrixSchedule) {
		return nil
	}
	progress.EventsPaidOut++
	_, err = s.store.UpsertDreamMatrixProgress(ctx, progress)
	return err
}

// distributeSpark implements §4.7's Spark fund: 20% of whatever has
// accumulated in the pool goes to the Triple-Entry sub-pool, and the
// remaining 80% is split across Matrix levels 1-14 by the catalog's
// pattern. Both Binary and Matrix contribute to the pool (§4.1), but only
// a Matrix activation has a Matrix upline chain to distribute through, so
// the pool is drained on every Matrix event rather than on a separate
// schedule — this keeps Spark symmetric with how every other per-event
// bucket in §4.4 is handled, instead of requiring its own cron job.
func (s *Service) distributeSpark(ctx context.Context, userID string, slotNo, generation int) error {
	const currency = "USDT"
	pool, err := s.ledger.GetFundPool(ctx, "spark", currency)
	if err != nil {
		return err
	}
	if pool.Balance <= 0 {
		return nil
	}
	amount := pool.Balance
	if _, err := s.ledger.DebitFundPool(ctx, "spark", currency, amount); err != nil {
		return err
	}

	correlationID := fmt.Sprintf("matrix-%s-%d-spark_distribution-%d", userID, slotNo, s.now().UnixNano())

	tripleEntryShare := amount * 0.20
	if _, _, err := s.ledger.CreditFund(ctx, "triple_entry", program.Matrix, tripleEntryShare, currency, ledger.ReasonTripleEntryFund, correlationID, correlationID); err != nil {
		return err
	}

	levelPool := amount * 0.80
	for i, share := range s.cat.SparkLevelShares() {
		levelAmount := levelPool * share / 100
		ancestorID, ok, err := s.tree.Ancestor(ctx, program.Matrix, slotNo, generation, userID, i+1)
		if err != nil {
			return err
		}
		if !ok || ancestorID == "" {
			if _, _, err := s.ledger.RecordMissedProfit(ctx, userID, program.Matrix, levelAmount, currency, correlationID, correlationID); err != nil {
				return err
			}
			continue
		}
		if _, err := s.ledger.CreditWallet(ctx, ancestorID, program.Matrix, levelAmount, currency, ledger.ReasonLevelDistribution, correlationID, correlationID); err != nil {
			return err
		}
	}
	return nil
}

// LeadershipStipendPayout implements §4.7's daily return: every eligible
// user is credited 2x the price of their highest activated slot ≥10 from
// the leadership_stipend pool, capped at the pool's balance at the moment
// of payment; nothing is paid from an empty pool. Driven by Scheduler's
// daily cron tick.
func (s *Service) LeadershipStipendPayout(ctx context.Context) error {
	records, err := s.store.ListEligible(ctx, domainfunds.FundLeadershipStipend)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := s.payLeadershipStipend(ctx, r.UserID); err != nil {
			s.log.WithError(err).WithField("user_id", r.UserID).Warn("leadership stipend payout failed")
		}
	}
	return nil
}

func (s *Service) payLeadershipStipend(ctx context.Context, userID string) error {
	bestSlot := 0
	var bestProgram program.Program
	var bestPrice float64
	for _, p := range []program.Program{program.Binary, program.Matrix, program.Global} {
		slot, err := s.activations.HighestActiveSlot(ctx, userID, p)
		if err != nil {
			return err
		}
		if slot < 10 {
			continue
		}
		price, err := s.cat.Price(p, slot)
		if err != nil {
			continue
		}
		if price > bestPrice {
			bestSlot, bestProgram, bestPrice = slot, p, price
		}
	}
	if bestProgram == "" {
		return nil
	}
	amount := 2 * bestPrice
	currency := defaultCurrency(bestProgram)
	pool, err := s.ledger.GetFundPool(ctx, "leadership_stipend", currency)
	if err != nil {
		return err
	}
	if pool.Balance < amount {
		amount = pool.Balance
	}
	if amount <= 0 {
		return nil
	}
	if _, err := s.ledger.DebitFundPool(ctx, "leadership_stipend", currency, amount); err != nil {
		return err
	}
	correlationID := fmt.Sprintf("%s-%s-%d-leadership_stipend-%d", bestProgram, userID, bestSlot, s.now().UnixNano())
	_, err = s.ledger.CreditWallet(ctx, userID, bestProgram, amount, currency, ledger.ReasonLeadershipStipendFund, correlationID, correlationID)
	return err
}

// NewcomerGrowthSupportTick implements §4.7's 30-day scheduler: every
// referrer's accumulated upline-fund pool is split equally among their
// current direct referrals and cleared. Driven by Scheduler's cron tick.
func (s *Service) NewcomerGrowthSupportTick(ctx context.Context) error {
	pools, err := s.store.ListNewcomerPools(ctx)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		if err := s.distributeNewcomerPool(ctx, pool); err != nil {
			s.log.WithError(err).WithField("referrer_id", pool.ReferrerID).Warn("newcomer growth support distribution failed")
		}
	}
	return nil
}

func (s *Service) distributeNewcomerPool(ctx context.Context, pool domainfunds.NewcomerPool) error {
	if pool.Balance <= 0 {
		return nil
	}
	graph, err := s.users.GetPartnerGraph(ctx, pool.ReferrerID)
	if err != nil {
		return err
	}
	if len(graph.Directs) == 0 {
		return nil
	}
	share := pool.Balance / float64(len(graph.Directs))
	correlationID := fmt.Sprintf("matrix-%s-0-newcomer_growth_support-%d", pool.ReferrerID, s.now().UnixNano())
	for _, directID := range graph.Directs {
		if _, err := s.ledger.CreditWallet(ctx, directID, program.Matrix, share, pool.Currency, ledger.ReasonNewcomerUplineFund, correlationID, correlationID); err != nil {
			return err
		}
	}
	return s.store.ClearNewcomerPool(ctx, pool.ReferrerID, pool.Currency, s.now())
}

func defaultCurrency(p program.Program) string {
	switch p {
	case program.Binary:
		return "BNB"
	case program.Matrix:
		return "USDT"
	default:
		return "USD"
	}
}
