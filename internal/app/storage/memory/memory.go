// Package memory is a thread-safe in-memory implementation of every
// interface in storage. It backs the server when no database DSN is
// configured and is the fixture every service-level test runs against.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

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

// Store is a guarded collection of in-process maps implementing every
// storage interface in this module.
type Store struct {
	mu sync.RWMutex

	nextSeq int64

	users         map[string]user.User
	partnerGraphs map[string]user.PartnerGraphNode

	entries         []ledger.Entry
	reserveBalances map[string]ledger.ReserveBalance
	fundPools       map[string]ledger.FundPool

	activations map[string]activation.SlotActivation

	nodes       map[string]tree.Node
	generations map[string]tree.Generation

	queueItems map[string]queue.Item

	commissionEvents []commission.Event

	ranks map[string]rank.Rank

	phaseStates map[string]globalphase.State

	eligibility   map[string]funds.EligibilityRecord
	dreamMatrix   map[string]funds.DreamMatrixProgress
	newcomerPools map[string]funds.NewcomerPool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextSeq:         1,
		users:           make(map[string]user.User),
		partnerGraphs:   make(map[string]user.PartnerGraphNode),
		reserveBalances: make(map[string]ledger.ReserveBalance),
		fundPools:       make(map[string]ledger.FundPool),
		activations:     make(map[string]activation.SlotActivation),
		nodes:           make(map[string]tree.Node),
		generations:     make(map[string]tree.Generation),
		queueItems:      make(map[string]queue.Item),
		ranks:           make(map[string]rank.Rank),
		phaseStates:     make(map[string]globalphase.State),
		eligibility:     make(map[string]funds.EligibilityRecord),
		dreamMatrix:     make(map[string]funds.DreamMatrixProgress),
		newcomerPools:   make(map[string]funds.NewcomerPool),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	s.partnerGraphs[u.ID] = user.NewPartnerGraphNode(u.ID)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", userID)
	}
	return u, nil
}

func (s *Store) SetProgramFlag(_ context.Context, userID string, p program.Program) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", userID)
	}
	switch p {
	case program.Binary:
		u.ProgramFlags.Binary = true
	case program.Matrix:
		u.ProgramFlags.Matrix = true
	case program.Global:
		u.ProgramFlags.Global = true
	}
	s.users[userID] = u
	return u, nil
}

func (s *Store) GetPartnerGraph(_ context.Context, userID string) (user.PartnerGraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.partnerGraphs[userID]
	if !ok {
		return user.PartnerGraphNode{}, fmt.Errorf("partner graph for %s not found", userID)
	}
	return g, nil
}

func (s *Store) AddDirect(_ context.Context, referrerID, directID string) (user.PartnerGraphNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.partnerGraphs[referrerID]
	if !ok {
		g = user.NewPartnerGraphNode(referrerID)
	}
	g.Directs = append(g.Directs, directID)
	s.partnerGraphs[referrerID] = g
	return g, nil
}

func (s *Store) IncrementDirectCount(_ context.Context, userID string, p program.Program) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.partnerGraphs[userID]
	if !ok {
		g = user.NewPartnerGraphNode(userID)
	}
	g.DirectsCountByProgr[string(p)]++
	s.partnerGraphs[userID] = g
	return g.DirectsCountByProgr[string(p)], nil
}

// LedgerStore implementation ---------------------------------------------------

func reserveKey(userID string, p program.Program, targetSlot int) string {
	return fmt.Sprintf("%s|%s|%d", userID, p, targetSlot)
}

func fundPoolKey(name, currency string) string {
	return name + "|" + currency
}

func (s *Store) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Seq = s.nextSeq
	s.nextSeq++
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *Store) ListEntriesByCorrelation(_ context.Context, correlationID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.CorrelationID == correlationID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) ListEntriesByUser(_ context.Context, userID string, limit int) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq > result[j].Seq })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetReserveBalance(_ context.Context, userID string, p program.Program, targetSlot int) (ledger.ReserveBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rb, ok := s.reserveBalances[reserveKey(userID, p, targetSlot)]
	if !ok {
		return ledger.ReserveBalance{UserID: userID, Program: p, TargetSlot: targetSlot}, nil
	}
	return rb, nil
}

func (s *Store) CreditReserve(_ context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reserveKey(userID, p, targetSlot)
	rb := s.reserveBalances[key]
	rb.UserID, rb.Program, rb.TargetSlot = userID, p, targetSlot
	rb.Amount += amount
	s.reserveBalances[key] = rb
	return rb, nil
}

func (s *Store) DebitReserve(_ context.Context, userID string, p program.Program, targetSlot int, amount float64) (ledger.ReserveBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reserveKey(userID, p, targetSlot)
	rb, ok := s.reserveBalances[key]
	if !ok {
		return ledger.ReserveBalance{}, fmt.Errorf("reserve balance for %s not found", key)
	}
	rb.Amount -= amount
	s.reserveBalances[key] = rb
	return rb, nil
}

func (s *Store) GetFundPool(_ context.Context, name, currency string) (ledger.FundPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fp, ok := s.fundPools[fundPoolKey(name, currency)]
	if !ok {
		return ledger.FundPool{Name: name, Currency: currency}, nil
	}
	return fp, nil
}

func (s *Store) CreditFundPool(_ context.Context, name, currency string, amount float64) (ledger.FundPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fundPoolKey(name, currency)
	fp := s.fundPools[key]
	fp.Name, fp.Currency = name, currency
	fp.Balance += amount
	s.fundPools[key] = fp
	return fp, nil
}

func (s *Store) DebitFundPool(_ context.Context, name, currency string, amount float64) (ledger.FundPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fundPoolKey(name, currency)
	fp, ok := s.fundPools[key]
	if !ok {
		return ledger.FundPool{}, fmt.Errorf("fund pool %s not found", key)
	}
	fp.Balance -= amount
	s.fundPools[key] = fp
	return fp, nil
}

// ActivationStore implementation ------------------------------------------------

func activationKey(userID string, p program.Program, slotNo int) string {
	return fmt.Sprintf("%s|%s|%d", userID, p, slotNo)
}

func (s *Store) CreateActivation(_ context.Context, a activation.SlotActivation) (activation.SlotActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activationKey(a.UserID, a.Program, a.SlotNo)
	if _, exists := s.activations[key]; exists {
		return activation.SlotActivation{}, fmt.Errorf("activation %s already exists", key)
	}
	if a.ActivatedAt.IsZero() {
		a.ActivatedAt = time.Now().UTC()
	}
	s.activations[key] = a
	return a, nil
}

func (s *Store) GetActivation(_ context.Context, userID string, p program.Program, slotNo int) (activation.SlotActivation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activations[activationKey(userID, p, slotNo)]
	return a, ok, nil
}

func (s *Store) ListActivations(_ context.Context, userID string, p program.Program) ([]activation.SlotActivation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]activation.SlotActivation, 0)
	for _, a := range s.activations {
		if a.UserID == userID && a.Program == p {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SlotNo < result[j].SlotNo })
	return result, nil
}

func (s *Store) HighestActiveSlot(_ context.Context, userID string, p program.Program) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for _, a := range s.activations {
		if a.UserID == userID && a.Program == p && a.SlotNo > highest {
			highest = a.SlotNo
		}
	}
	return highest, nil
}

// TreeStore implementation -------------------------------------------------------

func nodeKey(p program.Program, slotNo, generation int, userID string) string {
	return fmt.Sprintf("%s|%d|%d|%s", p, slotNo, generation, userID)
}

func generationKey(p program.Program, slotNo int, ownerID string) string {
	return fmt.Sprintf("%s|%d|%s", p, slotNo, ownerID)
}

func (s *Store) PlaceNode(_ context.Context, n tree.Node) (tree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nodeKey(n.Program, n.SlotNo, n.Generation, n.UserID)
	if _, exists := s.nodes[key]; exists {
		return tree.Node{}, fmt.Errorf("node %s already placed", key)
	}
	if n.PlacedAt.IsZero() {
		n.PlacedAt = time.Now().UTC()
	}
	s.nodes[key] = n
	return n, nil
}

func (s *Store) GetNode(_ context.Context, p program.Program, slotNo, generation int, userID string) (tree.Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeKey(p, slotNo, generation, userID)]
	return n, ok, nil
}

func (s *Store) Children(_ context.Context, p program.Program, slotNo, generation int, parentID string) ([]tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tree.Node, 0)
	for _, n := range s.nodes {
		if n.Program == p && n.SlotNo == slotNo && n.Generation == generation && n.ParentID == parentID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (s *Store) NodesInGeneration(_ context.Context, p program.Program, slotNo, generation int) ([]tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tree.Node, 0)
	for _, n := range s.nodes {
		if n.Program == p && n.SlotNo == slotNo && n.Generation == generation {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (s *Store) GetGeneration(_ context.Context, p program.Program, slotNo int, ownerID string) (tree.Generation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.generations[generationKey(p, slotNo, ownerID)]
	return g, ok, nil
}

func (s *Store) UpsertGeneration(_ context.Context, g tree.Generation) (tree.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[generationKey(g.Program, g.SlotNo, g.OwnerID)] = g
	return g, nil
}

// QueueStore implementation -------------------------------------------------------

func (s *Store) Enqueue(_ context.Context, item queue.Item) (queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ArmedAt.IsZero() {
		item.ArmedAt = time.Now().UTC()
	}
	s.queueItems[item.ID] = item
	return item, nil
}

func (s *Store) GetItem(_ context.Context, itemID string) (queue.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.queueItems[itemID]
	return item, ok, nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]queue.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]queue.Item, 0)
	for _, item := range s.queueItems {
		if item.Status == queue.StatusPending {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ArmedAt.Before(result[j].ArmedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListByUserProgram(_ context.Context, userID string, p program.Program) ([]queue.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]queue.Item, 0)
	for _, item := range s.queueItems {
		if item.UserID == userID && item.Program == p {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TargetSlot < result[j].TargetSlot })
	return result, nil
}

func (s *Store) UpdateItem(_ context.Context, item queue.Item) (queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queueItems[item.ID]; !ok {
		return queue.Item{}, fmt.Errorf("queue item %s not found", item.ID)
	}
	s.queueItems[item.ID] = item
	return item, nil
}

// CommissionStore implementation ---------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, e commission.Event) (commission.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	s.commissionEvents = append(s.commissionEvents, e)
	return e, nil
}

func (s *Store) ListByPayee(_ context.Context, payeeUserID string, limit int) ([]commission.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]commission.Event, 0)
	for _, e := range s.commissionEvents {
		if e.PayeeUserID == payeeUserID {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// RankStore implementation -----------------------------------------------------

func (s *Store) GetRank(_ context.Context, userID string) (rank.Rank, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ranks[userID]
	return r, ok, nil
}

func (s *Store) UpsertRank(_ context.Context, r rank.Rank) (rank.Rank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranks[r.UserID] = r
	return r, nil
}

// GlobalPhaseStore implementation -----------------------------------------------

func (s *Store) GetPhaseState(_ context.Context, userID string) (globalphase.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.phaseStates[userID]
	return st, ok, nil
}

func (s *Store) UpsertPhaseState(_ context.Context, st globalphase.State) (globalphase.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phaseStates[st.UserID] = st
	return st, nil
}

// FundsStore implementation -----------------------------------------------------

func eligibilityKey(userID string, fund funds.FundName) string {
	return userID + "|" + string(fund)
}

func (s *Store) UpsertEligibility(_ context.Context, r funds.EligibilityRecord) (funds.EligibilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.EvaluatedAt.IsZero() {
		r.EvaluatedAt = time.Now().UTC()
	}
	s.eligibility[eligibilityKey(r.UserID, r.Fund)] = r
	return r, nil
}

func (s *Store) GetEligibility(_ context.Context, userID string, fund funds.FundName) (funds.EligibilityRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.eligibility[eligibilityKey(userID, fund)]
	return r, ok, nil
}

func (s *Store) GetDreamMatrixProgress(_ context.Context, userID string) (funds.DreamMatrixProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.dreamMatrix[userID]
	return p, ok, nil
}

func (s *Store) UpsertDreamMatrixProgress(_ context.Context, p funds.DreamMatrixProgress) (funds.DreamMatrixProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dreamMatrix[p.UserID] = p
	return p, nil
}

func (s *Store) ListEligible(_ context.Context, fund funds.FundName) ([]funds.EligibilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []funds.EligibilityRecord
	for _, r := range s.eligibility {
		if r.Fund == fund && r.Eligible {
			out = append(out, r)
		}
	}
	return out, nil
}

func newcomerPoolKey(referrerID, currency string) string {
	return referrerID + "|" + currency
}

func (s *Store) CreditNewcomerPool(_ context.Context, referrerID, currency string, amount float64) (funds.NewcomerPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := newcomerPoolKey(referrerID, currency)
	p := s.newcomerPools[key]
	p.ReferrerID, p.Currency = referrerID, currency
	p.Balance += amount
	s.newcomerPools[key] = p
	return p, nil
}

func (s *Store) ListNewcomerPools(_ context.Context) ([]funds.NewcomerPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]funds.NewcomerPool, 0, len(s.newcomerPools))
	for _, p := range s.newcomerPools {
		if p.Balance > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ClearNewcomerPool(_ context.Context, referrerID, currency string, distributedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := newcomerPoolKey(referrerID, currency)
	s.newcomerPools[key] = funds.NewcomerPool{ReferrerID: referrerID, Currency: currency, Balance: 0, LastDistributedAt: distributedAt}
	return nil
}
