// Package storage defines the persistence boundary for every domain the
// cascade engine touches. Each interface is implemented twice: once by
// storage/postgres (backed by a real database) and once by storage/memory
// (backed by guarded in-process maps, used both as the default when no DSN
// is configured and as the fixture every service-level test runs against).
package storage

import (
	"context"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/activation"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/commission"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/funds"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/globalphase"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/queue"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/rank"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/user"
)

// UserStore persists users and their referral partner graph (§3 User,
// Partner graph node).
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, userID string) (user.User, error)
	SetProgramFlag(ctx context.Context, userID string, p program.Program) (user.User, error)
	GetPartnerGraph(ctx context.Context, userID string) (user.PartnerGraphNode, error)
	AddDirect(ctx context.Context, referrerID, directID string) (user.PartnerGraphNode, error)
	IncrementDirectCount(ctx context.Context, userID string, p program.Program) (int, error)
}

// LedgerStore persists the append-only ledger stream and its two
// projections: reserve balances and fund pool balances (§3, §4.2).
type LedgerStore interface {
	AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	ListEntriesByCorrelation(ctx context.Context, correlationID string) ([]ledger.Entry, error)
	ListEntriesByUser(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)

	GetReserveBalance(ctx context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error)
	CreditReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error)
	DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error)

	GetFundPool(ctx context.Context, name, currency string) (ledger.FundPool, error)
	CreditFundPool(ctx context.Context, name, currency string, amount float64) (ledger.FundPool, error)
	DebitFundPool(ctx context.Context, name, currency string, amount float64) (ledger.FundPool, error)
}

// ActivationStore persists slot activations (§3 Slot activation, invariant
// I2, I4).
type ActivationStore interface {
	CreateActivation(ctx context.Context, a activation.SlotActivation) (activation.SlotActivation, error)
	GetActivation(ctx context.Context, userID string, p program.Program, slotNo int) (activation.SlotActivation, bool, error)
	ListActivations(ctx context.Context, userID string, p program.Program) ([]activation.SlotActivation, error)
	HighestActiveSlot(ctx context.Context, userID string, p program.Program) (int, error)
}

// TreeStore persists the three placement graphs and matrix generations
// (§3 Tree node, Tree generation; §4.3).
type TreeStore interface {
	PlaceNode(ctx context.Context, n tree.Node) (tree.Node, error)
	GetNode(ctx context.Context, p program.Program, slotNo int, generation int, userID string) (tree.Node, bool, error)
	Children(ctx context.Context, p program.Program, slotNo int, generation int, parentID string) ([]tree.Node, error)
	NodesInGeneration(ctx context.Context, p program.Program, slotNo int, generation int) ([]tree.Node, error)

	GetGeneration(ctx context.Context, p program.Program, slotNo int, ownerID string) (tree.Generation, bool, error)
	UpsertGeneration(ctx context.Context, g tree.Generation) (tree.Generation, error)
}

// QueueStore persists auto-upgrade queue items (§3, §4.5).
type QueueStore interface {
	Enqueue(ctx context.Context, item queue.Item) (queue.Item, error)
	GetItem(ctx context.Context, itemID string) (queue.Item, bool, error)
	ListPending(ctx context.Context, limit int) ([]queue.Item, error)
	ListByUserProgram(ctx context.Context, userID string, p program.Program) ([]queue.Item, error)
	UpdateItem(ctx context.Context, item queue.Item) (queue.Item, error)
}

// CommissionStore persists commission events (§3).
type CommissionStore interface {
	AppendEvent(ctx context.Context, e commission.Event) (commission.Event, error)
	ListByPayee(ctx context.Context, payeeUserID string, limit int) ([]commission.Event, error)
}

// RankStore persists rank and its append-only history (§3, §4.8).
type RankStore interface {
	GetRank(ctx context.Context, userID string) (rank.Rank, bool, error)
	UpsertRank(ctx context.Context, r rank.Rank) (rank.Rank, error)
}

// GlobalPhaseStore persists the Global program's phase progress (§3).
type GlobalPhaseStore interface {
	GetPhaseState(ctx context.Context, userID string) (globalphase.State, bool, error)
	UpsertPhaseState(ctx context.Context, s globalphase.State) (globalphase.State, error)
}

// FundsStore persists fund eligibility records, Dream Matrix payout
// progress, and the Newcomer Growth Support upline-fund pools the 30-day
// scheduler drains (§4.7).
type FundsStore interface {
	UpsertEligibility(ctx context.Context, r funds.EligibilityRecord) (funds.EligibilityRecord, error)
	GetEligibility(ctx context.Context, userID string, fund funds.FundName) (funds.EligibilityRecord, bool, error)
	ListEligible(ctx context.Context, fund funds.FundName) ([]funds.EligibilityRecord, error)
	GetDreamMatrixProgress(ctx context.Context, userID string) (funds.DreamMatrixProgress, bool, error)
	UpsertDreamMatrixProgress(ctx context.Context, p funds.DreamMatrixProgress) (funds.DreamMatrixProgress, error)

	CreditNewcomerPool(ctx context.Context, referrerID, currency string, amount float64) (funds.NewcomerPool, error)
	ListNewcomerPools(ctx context.Context) ([]funds.NewcomerPool, error)
	ClearNewcomerPool(ctx context.Context, referrerID, currency string, distributedAt time.Time) error
}
