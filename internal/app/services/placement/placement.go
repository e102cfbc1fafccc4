// Package placement is the orchestrator that turns one join/upgrade
// request into the full cascade described by §2's data flow: catalog
// validation, tree placement (with sweepover), routing-engine intent
// derivation, ledger writes, auto-upgrade arming, rank recomputation, and
// (via the Recycler/AutoUpgradeArmer/FundsEvaluator hooks) matrix recycle
// and fund eligibility. It is the one place store lookups and the pure
// routing.Route* functions meet.
package placement

import (
	"context"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/apperr"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/activation"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/commission"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/user"
	catalogsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/catalog"
	ledgersvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/ledger"
	ranksvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/rank"
	routingsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/routing"
	treesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/internal/metrics"
)

// AutoUpgradeArmer is the hook the auto-upgrade manager registers itself
// under (§4.5 triggers). Defined here, implemented there, so placement
// never imports services/autoupgrade.
type AutoUpgradeArmer interface {
	ArmFromReserveCredit(ctx context.Context, userID string, p program.Program, targetSlot int) error
	ArmFromPartnerCount(ctx context.Context, userID string, p program.Program, currentSlot, directCount int) error
}

// Recycler is the hook the matrix recycle controller registers itself
// under (§4.6). Placement calls it after every matrix placement; the
// controller decides whether the 39-member threshold was just crossed.
type Recycler interface {
	MaybeRecycle(ctx context.Context, ownerID string, slotNo int) error
}

// FundsEvaluator is the hook services/funds registers itself under
// (§4.7): eligibility is recomputed at the moment an activation completes.
type FundsEvaluator interface {
	OnActivation(ctx context.Context, userID string, p program.Program, slotNo, generation int) error
}

// GlobalPhaseTracker is the hook services/globalphase registers itself
// under (§4.3): phase membership is incremented the instant a Global
// placement lands, independently of the idempotent /progress/global tick
// that later evaluates whether the phase has filled.
type GlobalPhaseTracker interface {
	RecordPlacement(ctx context.Context, userID string) error
}

// Service orchestrates join and upgrade requests end to end.
type Service struct {
	users       storage.UserStore
	activations storage.ActivationStore
	tree        *treesvc.Service
	catalog     *catalogsvc.Service
	ledger      *ledgersvc.Writer
	rank        *ranksvc.Service

	armer       Recycler
	auto        AutoUpgradeArmer
	funds       FundsEvaluator
	globalPhase GlobalPhaseTracker

	maxChainDepth int
	now           func() time.Time
}

// Deps bundles the storage/service dependencies Service needs.
type Deps struct {
	Users       storage.UserStore
	Activations storage.ActivationStore
	Tree        *treesvc.Service
	Catalog     *catalogsvc.Service
	Ledger      *ledgersvc.Writer
	Rank        *ranksvc.Service

	MaxChainDepth int
}

// New builds a placement Service. SetRecycler, SetAutoUpgradeArmer, and
// SetFundsEvaluator may be called afterward to wire the optional hooks;
// each is a no-op if never set.
func New(d Deps) *Service {
	maxChain := d.MaxChainDepth
	if maxChain <= 0 {
		maxChain = 32
	}
	return &Service{
		users: d.Users, activations: d.Activations, tree: d.Tree,
		catalog: d.Catalog, ledger: d.Ledger, rank: d.Rank,
		maxChainDepth: maxChain, now: time.Now,
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetRecycler wires the matrix recycle controller.
func (s *Service) SetRecycler(r Recycler) { s.armer = r }

// SetAutoUpgradeArmer wires the auto-upgrade manager.
func (s *Service) SetAutoUpgradeArmer(a AutoUpgradeArmer) { s.auto = a }

// SetFundsEvaluator wires the funds-eligibility evaluator.
func (s *Service) SetFundsEvaluator(f FundsEvaluator) { s.funds = f }

// SetGlobalPhaseTracker wires the Global program's phase-membership tracker.
func (s *Service) SetGlobalPhaseTracker(t GlobalPhaseTracker) { s.globalPhase = t }

// JoinRequest is the external /join/{program} request (§6).
type JoinRequest struct {
	UserID        string
	ReferrerID    string
	Program       program.Program
	TxHash        string
	Currency      string
	Amount        float64
	CorrelationID string
}

// UpgradeRequest is the external /upgrade/{program} request (§6).
type UpgradeRequest struct {
	UserID        string
	Program       program.Program
	TargetSlot    int
	TxHash        string
	Currency      string
	Amount        float64
	CorrelationID string
}

// Outcome is what one activation event produced, for the HTTP layer and
// for chained auto-upgrade processing to inspect.
type Outcome struct {
	Activation activation.SlotActivation
	Entries    []ledger.Entry
	Intents    []routingsvc.Intent
	Replayed   bool
}

// Join handles the first activation of userID in Program (§4.3/§4.4 slot
// 1, §6 /join).
func (s *Service) Join(ctx context.Context, req JoinRequest) (Outcome, error) {
	if !req.Program.Valid() {
		return Outcome{}, apperr.Validation("program", "unknown program")
	}
	if err := s.catalog.ValidateJoinAmount(req.Program, req.Amount); err != nil {
		return Outcome{}, apperr.Wrap(apperr.CodeValidation, err.Error(), 400, err)
	}

	if _, err := s.ensureUser(ctx, req.UserID, req.ReferrerID); err != nil {
		return Outcome{}, err
	}

	return s.activate(ctx, activateParams{
		UserID: req.UserID, ReferrerID: req.ReferrerID, Program: req.Program,
		SlotNo: 1, ActivationType: activation.TypeInitial, Amount: req.Amount,
		TxHash: req.TxHash, Currency: req.Currency, CorrelationID: req.CorrelationID,
		SourceEventID: req.CorrelationID, FirstActivationInProgram: true,
	})
}

// Upgrade handles a slot N≥2 activation (§4.3/§4.4, §6 /upgrade).
func (s *Service) Upgrade(ctx context.Context, req UpgradeRequest) (Outcome, error) {
	if !req.Program.Valid() {
		return Outcome{}, apperr.Validation("program", "unknown program")
	}
	if err := s.catalog.ValidateUpgradeAmount(req.Program, req.TargetSlot, req.Amount); err != nil {
		return Outcome{}, apperr.Wrap(apperr.CodeValidation, err.Error(), 400, err)
	}

	u, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.CodeNotFound, "user not found", 404, err)
	}

	return s.activate(ctx, activateParams{
		UserID: req.UserID, ReferrerID: u.ReferrerID, Program: req.Program,
		SlotNo: req.TargetSlot, ActivationType: activation.TypeUpgrade, Amount: req.Amount,
		TxHash: req.TxHash, Currency: req.Currency, CorrelationID: req.CorrelationID,
		SourceEventID: req.CorrelationID,
	})
}

// ActivateAuto runs an auto-activation funded entirely from reserve
// (§4.5 "on processing, ... run Routing Engine for the activation amount").
// Called by services/autoupgrade once a queue item is ready.
func (s *Service) ActivateAuto(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency, correlationID, sourceEventID string) (Outcome, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.CodeNotFound, "user not found", 404, err)
	}
	return s.activate(ctx, activateParams{
		UserID: userID, ReferrerID: u.ReferrerID, Program: p, SlotNo: targetSlot,
		ActivationType: activation.TypeAuto, Amount: amount, Currency: currency,
		CorrelationID: correlationID, SourceEventID: sourceEventID,
	})
}

// ReenterMatrix re-places an already-active matrix owner into their
// upline's current-generation tree and runs the routing engine against
// the slot's price (§4.6 step 3: "this re-entry is itself a matrix
// placement event that runs through Routing Engine"). It does not create
// a new SlotActivation — the owner is already active at slotNo; recycle is
// a re-placement, not a second activation (§3 I2 only requires a new
// generation, not a new activation record). Called by services/recycle.
func (s *Service) ReenterMatrix(ctx context.Context, ownerID string, slotNo int, correlationID string) (Outcome, error) {
	if existing, replayed, err := s.ledger.AlreadyReplayed(ctx, correlationID); err != nil {
		return Outcome{}, err
	} else if replayed {
		return Outcome{Entries: existing, Replayed: true}, nil
	}

	owner, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return Outcome{}, err
	}
	price, err := s.catalog.Catalog.Price(program.Matrix, slotNo)
	if err != nil {
		return Outcome{}, err
	}

	newOwnerID, generation, err := s.placeInTree(ctx, program.Matrix, slotNo, owner.ReferrerID, ownerID)
	if err != nil {
		return Outcome{}, err
	}
	intents, err := s.route(ctx, program.Matrix, slotNo, generation, newOwnerID, ownerID, owner.ReferrerID, price)
	if err != nil {
		return Outcome{}, err
	}
	entries, err := s.applyIntents(ctx, activateParams{
		UserID: ownerID, Program: program.Matrix, SlotNo: slotNo, Amount: price,
		Currency: "USDT", CorrelationID: correlationID, SourceEventID: correlationID,
	}, intents)
	if err != nil {
		return Outcome{}, err
	}

	if s.auto != nil {
		for _, in := range intents {
			if in.Kind == routingsvc.IntentReserve {
				if err := s.auto.ArmFromReserveCredit(ctx, in.PayeeUserID, program.Matrix, in.TargetSlot); err != nil {
					return Outcome{}, err
				}
			}
		}
	}
	if s.armer != nil {
		if err := s.armer.MaybeRecycle(ctx, newOwnerID, slotNo); err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{Entries: entries, Intents: intents}, nil
}

type activateParams struct {
	UserID, ReferrerID      string
	Program                 program.Program
	SlotNo                  int
	ActivationType          activation.Type
	Amount                  float64
	TxHash, Currency        string
	CorrelationID           string
	SourceEventID           string
	FirstActivationInProgram bool
}

// activate is the single code path every activation type funnels through:
// idempotency check, sequence check, placement, routing, ledger writes,
// and the three cascade hooks (auto-upgrade arming, recycle, funds). It
// records the full cascade's latency under the ledger-write histogram.
func (s *Service) activate(ctx context.Context, p activateParams) (Outcome, error) {
	start := time.Now()
	outcome, err := s.runActivation(ctx, p)
	outcomeLabel := "ok"
	switch {
	case err != nil:
		outcomeLabel = "error"
	case outcome.Replayed:
		outcomeLabel = "replayed"
	}
	metrics.RecordLedgerWrite(string(p.Program), outcomeLabel, time.Since(start))
	return outcome, err
}

func (s *Service) runActivation(ctx context.Context, p activateParams) (Outcome, error) {
	if existing, replayed, err := s.ledger.AlreadyReplayed(ctx, p.CorrelationID); err != nil {
		return Outcome{}, err
	} else if replayed {
		return Outcome{Entries: existing, Replayed: true}, nil
	}

	if p.SlotNo > 1 {
		highest, err := s.activations.HighestActiveSlot(ctx, p.UserID, p.Program)
		if err != nil {
			return Outcome{}, err
		}
		if highest != p.SlotNo-1 {
			return Outcome{}, apperr.OutOfSequence(string(p.Program), p.SlotNo, highest+1)
		}
	}
	if _, already, err := s.activations.GetActivation(ctx, p.UserID, p.Program, p.SlotNo); err != nil {
		return Outcome{}, err
	} else if already {
		return Outcome{}, apperr.AlreadyActive(string(p.Program), p.SlotNo)
	}

	ownerID, generation, err := s.placeInTree(ctx, p.Program, p.SlotNo, p.ReferrerID, p.UserID)
	if err != nil {
		return Outcome{}, err
	}

	intents, err := s.route(ctx, p.Program, p.SlotNo, generation, ownerID, p.UserID, p.ReferrerID, p.Amount)
	if err != nil {
		return Outcome{}, err
	}

	entries, err := s.applyIntents(ctx, p, intents)
	if err != nil {
		return Outcome{}, err
	}

	act, err := s.activations.CreateActivation(ctx, activation.SlotActivation{
		UserID: p.UserID, Program: p.Program, SlotNo: p.SlotNo,
		ActivationTp: p.ActivationType, AmountPaid: p.Amount, TxHash: p.TxHash,
		ActivatedAt: s.now(),
	})
	if err != nil {
		return Outcome{}, err
	}

	if p.FirstActivationInProgram {
		if _, err := s.users.SetProgramFlag(ctx, p.UserID, p.Program); err != nil {
			return Outcome{}, err
		}
		if p.ReferrerID != "" {
			if _, err := s.users.AddDirect(ctx, p.ReferrerID, p.UserID); err != nil {
				return Outcome{}, err
			}
			count, err := s.users.IncrementDirectCount(ctx, p.ReferrerID, p.Program)
			if err != nil {
				return Outcome{}, err
			}
			if s.auto != nil && count == 2 {
				if err := s.auto.ArmFromPartnerCount(ctx, p.ReferrerID, p.Program, p.SlotNo, count); err != nil {
					return Outcome{}, err
				}
			}

			// Joining commission (§4.4): a flat 10% of the join amount to the
			// direct referrer, on top of whatever the routing engine already
			// distributed above — never on upgrades (FirstActivationInProgram
			// only), hence kept outside the intents/applyIntents pipeline.
			joiningCommission := p.Amount * 0.10
			joinEntry, err := s.ledger.CreditWallet(ctx, p.ReferrerID, p.Program, joiningCommission, p.Currency,
				ledger.ReasonJoiningCommission, p.CorrelationID, p.SourceEventID)
			if err != nil {
				return Outcome{}, err
			}
			entries = append(entries, joinEntry)
			if _, err := s.ledger.RecordCommission(ctx, commission.Event{
				PayerUserID: p.UserID, PayeeUserID: p.ReferrerID, Program: p.Program,
				SourceSlotNo: p.SlotNo, Amount: joiningCommission, Category: commission.CategoryJoiningCommission,
			}); err != nil {
				return Outcome{}, err
			}
		}
	}

	if s.auto != nil {
		for _, in := range intents {
			if in.Kind == routingsvc.IntentReserve {
				if err := s.auto.ArmFromReserveCredit(ctx, in.PayeeUserID, p.Program, in.TargetSlot); err != nil {
					return Outcome{}, err
				}
			}
		}
	}
	if p.Program == program.Matrix && s.armer != nil {
		if err := s.armer.MaybeRecycle(ctx, ownerID, p.SlotNo); err != nil {
			return Outcome{}, err
		}
	}
	if s.funds != nil {
		if err := s.funds.OnActivation(ctx, p.UserID, p.Program, p.SlotNo, generation); err != nil {
			return Outcome{}, err
		}
	}
	if err := s.recomputeRank(ctx, p.UserID); err != nil {
		return Outcome{}, err
	}

	return Outcome{Activation: act, Entries: entries, Intents: intents}, nil
}

func (s *Service) ensureUser(ctx context.Context, userID, referrerID string) (user.User, error) {
	existing, err := s.users.GetUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	return s.users.CreateUser(ctx, user.User{ID: userID, ReferrerID: referrerID, JoinedAt: s.now()})
}

// placeInTree resolves the sweepover root and places userID there,
// returning the tree owner (the sweepover-resolved root) and the active
// matrix generation (0 for binary/global, which use a single generation).
func (s *Service) placeInTree(ctx context.Context, p program.Program, slotNo int, referrerID, userID string) (ownerID string, generation int, err error) {
	ownerID, err = s.resolveSweepoverRoot(ctx, p, slotNo, referrerID)
	if err != nil {
		return "", 0, err
	}

	switch p {
	case program.Matrix:
		gen, err := s.tree.Generation(ctx, p, slotNo, ownerID)
		if err != nil {
			return "", 0, err
		}
		if _, err := s.tree.PlaceMatrix(ctx, slotNo, gen.GenNo, ownerID, userID); err != nil {
			return "", 0, err
		}
		if _, err := s.tree.IncrementGeneration(ctx, gen); err != nil {
			return "", 0, err
		}
		return ownerID, gen.GenNo, nil
	case program.Global:
		if _, err := s.tree.PlaceGlobal(ctx, ownerID, userID, 0); err != nil {
			return "", 0, err
		}
		if s.globalPhase != nil {
			if err := s.globalPhase.RecordPlacement(ctx, ownerID); err != nil {
				return "", 0, err
			}
		}
		return ownerID, 0, nil
	default: // Binary
		if _, err := s.tree.PlaceBinary(ctx, slotNo, ownerID, userID); err != nil {
			return "", 0, err
		}
		return ownerID, 0, nil
	}
}

func (s *Service) resolveSweepoverRoot(ctx context.Context, p program.Program, slotNo int, referrerID string) (string, error) {
	if referrerID == "" {
		return user.MotherID, nil
	}
	return treesvc.Sweepover(ctx, referrerID,
		func(ctx context.Context, userID string) (string, bool, error) {
			u, err := s.users.GetUser(ctx, userID)
			if err != nil {
				return "", false, nil
			}
			return u.ReferrerID, u.ReferrerID != "", nil
		},
		func(ctx context.Context, userID string) (bool, error) {
			_, ok, err := s.activations.GetActivation(ctx, userID, p, slotNo)
			return ok, err
		},
		user.MotherID,
	)
}

// route assembles the routing-engine context for one activation and
// returns the resulting ledger intents (§4.4).
func (s *Service) route(ctx context.Context, p program.Program, slotNo, generation int, ownerID, userID, referrerID string, amount float64) ([]routingsvc.Intent, error) {
	switch p {
	case program.Binary:
		return s.routeBinary(ctx, slotNo, ownerID, userID, referrerID, amount)
	case program.Matrix:
		return s.routeMatrix(ctx, slotNo, generation, ownerID, userID, referrerID, amount)
	default:
		return s.routeGlobal(ctx, ownerID, amount)
	}
}

func (s *Service) routeBinary(ctx context.Context, slotNo int, ownerID, userID, referrerID string, amount float64) ([]routingsvc.Intent, error) {
	ev := routingsvc.BinaryEvent{SlotNo: slotNo, Amount: amount}
	if slotNo > 1 {
		ancestorID, ok, err := s.tree.Ancestor(ctx, program.Binary, slotNo, 0, userID, slotNo)
		if err != nil {
			return nil, err
		}
		if ok {
			ev.AncestorID = ancestorID
			idx, found, err := s.tree.BFSIndexUnderAncestor(ctx, program.Binary, slotNo, 0, ancestorID, userID)
			if err != nil {
				return nil, err
			}
			if found {
				ev.BFSPositionUnderAncestor = idx
			} else {
				ev.BFSPositionUnderAncestor = -1
			}
			_, ev.AncestorHasNextSlotActive, err = s.activations.GetActivation(ctx, ancestorID, program.Binary, slotNo+1)
			if err != nil {
				return nil, err
			}
		}
		recipients, err := s.resolveLevelRecipients(ctx, program.Binary, slotNo, 0, userID, 16)
		if err != nil {
			return nil, err
		}
		ev.LevelRecipients = recipients
	}
	return routingsvc.RouteBinary(s.catalog.Catalog, referrerID, ev)
}

func (s *Service) routeMatrix(ctx context.Context, slotNo, generation int, ownerID, userID, referrerID string, amount float64) ([]routingsvc.Intent, error) {
	superUpline, ok, err := s.tree.Ancestor(ctx, program.Matrix, slotNo, generation, userID, 2)
	if err != nil {
		return nil, err
	}
	ev := routingsvc.MatrixEvent{Amount: amount, DirectReferrerID: referrerID}
	if ok {
		ev.SuperUplineID = superUpline
		pos, err := s.tree.PositionUnderParent(ctx, program.Matrix, slotNo, generation, userID)
		if err != nil {
			return nil, err
		}
		ev.IsMiddlePositionUnderSuper = pos%3 == 1
		_, ev.SuperHasNextSlotActive, err = s.activations.GetActivation(ctx, superUpline, program.Matrix, slotNo+1)
		if err != nil {
			return nil, err
		}
	}
	if referrerID != "" {
		referrer, err := s.users.GetUser(ctx, referrerID)
		if err == nil {
			ev.ReferrersReferrerID = referrer.ReferrerID
		}
	}
	recipients, err := s.resolveLevelRecipients(ctx, program.Matrix, slotNo, generation, userID, 3)
	if err != nil {
		return nil, err
	}
	ev.LevelRecipients = recipients
	return routingsvc.RouteMatrix(s.catalog.Catalog, slotNo+1, ev)
}

// routeGlobal credits the owner's level reserve toward the slot after the
// owner's highest active Global slot, the slot services/globalphase.Tick
// later spends that reserve on.
func (s *Service) routeGlobal(ctx context.Context, ownerID string, amount float64) ([]routingsvc.Intent, error) {
	highest, err := s.activations.HighestActiveSlot(ctx, ownerID, program.Global)
	if err != nil {
		return nil, err
	}
	return routingsvc.RouteGlobal(s.catalog.Catalog, routingsvc.GlobalEvent{
		Amount: amount, OwnerID: ownerID, NextPhaseSlot: highest + 1,
	})
}

// resolveLevelRecipients walks `levels` ancestors up from userID in (p,
// slotNo, generation)'s tree, marking each ineligible if it either has not
// activated slotNo itself or has fewer than 2 direct partners in p (§4.4
// "ineligible level... diverts that share to Leadership Stipend").
func (s *Service) resolveLevelRecipients(ctx context.Context, p program.Program, slotNo, generation int, userID string, levels int) ([]routingsvc.LevelRecipient, error) {
	out := make([]routingsvc.LevelRecipient, levels)
	for i := 0; i < levels; i++ {
		ancestorID, ok, err := s.tree.Ancestor(ctx, p, slotNo, generation, userID, i+1)
		if err != nil {
			return nil, err
		}
		if !ok {
			out[i] = routingsvc.LevelRecipient{Eligible: false}
			continue
		}
		_, activeHere, err := s.activations.GetActivation(ctx, ancestorID, p, slotNo)
		if err != nil {
			return nil, err
		}
		graph, err := s.users.GetPartnerGraph(ctx, ancestorID)
		hasTwoPartners := err == nil && graph.DirectsCountByProgr[string(p)] >= 2
		out[i] = routingsvc.LevelRecipient{UserID: ancestorID, Eligible: activeHere && hasTwoPartners}
	}
	return out, nil
}

// applyIntents executes the routing engine's output against the ledger,
// in the order enumerated by §4.4 (ordering guarantee, §5).
func (s *Service) applyIntents(ctx context.Context, p activateParams, intents []routingsvc.Intent) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for _, in := range intents {
		sourceEvent := p.SourceEventID
		switch in.Kind {
		case routingsvc.IntentWallet:
			payee := in.PayeeUserID
			if payee == "" {
				payee = p.UserID
			}
			e, err := s.ledger.CreditWallet(ctx, payee, p.Program, in.Amount, p.Currency, in.ReasonCode, p.CorrelationID, sourceEvent)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			if in.Category != "" {
				if _, err := s.ledger.RecordCommission(ctx, commission.Event{
					PayerUserID: p.UserID, PayeeUserID: payee, Program: p.Program,
					SourceSlotNo: p.SlotNo, Level: in.Level, Amount: in.Amount, Category: in.Category,
				}); err != nil {
					return nil, err
				}
			}
		case routingsvc.IntentReserve:
			e, _, err := s.ledger.CreditReserve(ctx, in.PayeeUserID, p.Program, in.TargetSlot, in.Amount, p.Currency, in.ReasonCode, p.CorrelationID, sourceEvent)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		case routingsvc.IntentFund:
			if in.ReasonCode == ledger.ReasonNewcomerUplineFund && in.PayeeUserID != "" {
				e, _, err := s.ledger.CreditNewcomerUplineFund(ctx, in.PayeeUserID, p.Program, in.Amount, p.Currency, p.CorrelationID, sourceEvent)
				if err != nil {
					return nil, err
				}
				entries = append(entries, e)
				continue
			}
			e, _, err := s.ledger.CreditFund(ctx, in.FundName, p.Program, in.Amount, p.Currency, in.ReasonCode, p.CorrelationID, sourceEvent)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		case routingsvc.IntentMissedProfit:
			e, _, err := s.ledger.RecordMissedProfit(ctx, p.UserID, p.Program, in.Amount, p.Currency, p.CorrelationID, sourceEvent)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *Service) recomputeRank(ctx context.Context, userID string) error {
	binary, err := s.activations.HighestActiveSlot(ctx, userID, program.Binary)
	if err != nil {
		return err
	}
	matrix, err := s.activations.HighestActiveSlot(ctx, userID, program.Matrix)
	if err != nil {
		return err
	}
	global, err := s.activations.HighestActiveSlot(ctx, userID, program.Global)
	if err != nil {
		return err
	}
	_, err = s.rank.Recompute(ctx, userID, binary, matrix, global)
	return err
}
