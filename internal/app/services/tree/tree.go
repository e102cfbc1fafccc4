// Package tree implements the placement-graph operations named by §4.3:
// place_binary, place_matrix, place_global, ancestor,
// position_under_parent, and the BFS lookups the routing engine needs to
// classify a placement as reserve-routed or normally distributed. There is
// no separate level_of operation; level lookups call Ancestor with an
// explicit depth.
//
// Placement is iterative, not recursive (§9): every walk carries an
// explicit depth counter and is bounded (≤60 for sweepover, ≤3 for matrix
// level lookup), so the 60-level cap stays visible in the code rather than
// buried in a call stack.
package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	domaintree "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
)

// SweepoverMaxAncestors bounds the sweepover walk (§4.3, Glossary).
const SweepoverMaxAncestors = 60

// globalBranchFactor is the fan-out used for the Global program's
// phase-aware BFS placement. §4.3 fixes phase capacities (4, 8) but leaves
// the tree shape within a phase unspecified; a binary-shaped fill (the
// same branch factor Binary uses) is the simplest structure that reaches
// those capacities in bounded levels and keeps one BFS implementation
// serving all three programs.
const globalBranchFactor = 2

// Service provides placement and navigation over the three placement
// graphs on top of a storage.TreeStore.
type Service struct {
	store storage.TreeStore
	now   func() time.Time
}

// New builds a placement Service backed by store.
func New(store storage.TreeStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlaceBinary places userID into the binary slot-N tree, BFS-filling open
// left/right slots starting at rootUserID (§4.3 place_binary).
func (s *Service) PlaceBinary(ctx context.Context, slotNo int, rootUserID, userID string) (domaintree.Node, error) {
	return s.placeBFS(ctx, program.Binary, slotNo, 0, rootUserID, userID, domaintree.MaxChildren(program.Binary))
}

// PlaceMatrix places userID into owner's personal matrix slot-N tree for
// the given generation, strict BFS filling level 1 (3), level 2 (9), level
// 3 (27) before the subtree is full (§4.3 place_matrix, §4.6).
func (s *Service) PlaceMatrix(ctx context.Context, slotNo, generation int, ownerID, userID string) (domaintree.Node, error) {
	return s.placeBFS(ctx, program.Matrix, slotNo, generation, ownerID, userID, domaintree.MaxChildren(program.Matrix))
}

// PlaceGlobal places userID into rootUserID's current-phase tree (§4.3
// place_global). Every Global placement is stored under slot 0, whatever
// slot is being activated. Phase capacity is not checked here or by the
// caller: services/globalphase counts members_in_phase through the hook
// services/placement calls after each placement, and its Tick advances
// the phase once the count reaches capacity. This method only performs
// the BFS placement itself.
func (s *Service) PlaceGlobal(ctx context.Context, rootUserID, userID string, phaseGeneration int) (domaintree.Node, error) {
	return s.placeBFS(ctx, program.Global, 0, phaseGeneration, rootUserID, userID, globalBranchFactor)
}

// placeBFS is the shared BFS placement walk used by all three programs:
// starting at rootUserID, visit nodes level by level; the first node with
// fewer than maxChildren children receives the new node at position
// len(children).
func (s *Service) placeBFS(ctx context.Context, p program.Program, slotNo, generation int, rootUserID, userID string, maxChildren int) (domaintree.Node, error) {
	queue := []string{rootUserID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		children, err := s.store.Children(ctx, p, slotNo, generation, parentID)
		if err != nil {
			return domaintree.Node{}, err
		}
		if len(children) < maxChildren {
			node := domaintree.Node{
				Program:    p,
				SlotNo:     slotNo,
				UserID:     userID,
				ParentID:   parentID,
				Position:   len(children),
				Generation: generation,
				PlacedAt:   s.now(),
			}
			return s.store.PlaceNode(ctx, node)
		}
		for _, c := range children {
			queue = append(queue, c.UserID)
		}
	}
	return domaintree.Node{}, fmt.Errorf("tree: no open slot found under root %q", rootUserID)
}

// Ancestor returns the depth-th ancestor of userID in (p, slotNo,
// generation)'s placement tree (§4.3 ancestor). depth=1 is the immediate
// parent. Returns ok=false if the walk runs out of ancestors before depth
// is reached.
func (s *Service) Ancestor(ctx context.Context, p program.Program, slotNo, generation int, userID string, depth int) (string, bool, error) {
	current := userID
	for i := 0; i < depth; i++ {
		node, ok, err := s.store.GetNode(ctx, p, slotNo, generation, current)
		if err != nil {
			return "", false, err
		}
		if !ok || node.ParentID == "" {
			return "", false, nil
		}
		current = node.ParentID
	}
	return current, true, nil
}

// PositionUnderParent returns userID's 0-based index among its parent's
// children (§4.3 position_under_parent). For matrix, position 1 identifies
// the middle child.
func (s *Service) PositionUnderParent(ctx context.Context, p program.Program, slotNo, generation int, userID string) (int, error) {
	node, ok, err := s.store.GetNode(ctx, p, slotNo, generation, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("tree: node not found for %q", userID)
	}
	return node.Position, nil
}

// BFSIndexUnderAncestor returns the BFS-order index of userID among all
// descendants of ancestorID within (p, slotNo, generation)'s tree — the
// definition §11 (Open Question resolution) adopts for the binary
// reserve-route "1st or 2nd member" test (§4.4).
func (s *Service) BFSIndexUnderAncestor(ctx context.Context, p program.Program, slotNo, generation int, ancestorID, userID string) (int, bool, error) {
	queue := []string{ancestorID}
	index := -1
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		children, err := s.store.Children(ctx, p, slotNo, generation, parentID)
		if err != nil {
			return 0, false, err
		}
		for _, c := range children {
			index++
			if c.UserID == userID {
				return index, true, nil
			}
			queue = append(queue, c.UserID)
		}
	}
	return 0, false, nil
}

// Sweepover walks up to SweepoverMaxAncestors ancestors from parentID
// looking for the first one with slotNo active in program p, per the
// sweepover rule (§4.3). isActive reports whether a user has activated
// slotNo; it is supplied by the caller (services/placement) since
// activation status belongs to the activation store, not the tree.
// Returns the resolved placement root, or motherID if the walk is
// exhausted or runs out of referrers.
func Sweepover(ctx context.Context, parentID string, referrerOf func(ctx context.Context, userID string) (string, bool, error), isActive func(ctx context.Context, userID string) (bool, error), motherID string) (string, error) {
	current := parentID
	for i := 0; i < SweepoverMaxAncestors; i++ {
		active, err := isActive(ctx, current)
		if err != nil {
			return "", err
		}
		if active {
			return current, nil
		}
		next, ok, err := referrerOf(ctx, current)
		if err != nil {
			return "", err
		}
		if !ok || next == "" {
			return motherID, nil
		}
		current = next
	}
	return motherID, nil
}

// Generation returns the matrix tree generation record for (p, slotNo,
// ownerID), creating the first generation (gen_no 1, active) if none
// exists yet.
func (s *Service) Generation(ctx context.Context, p program.Program, slotNo int, ownerID string) (domaintree.Generation, error) {
	g, ok, err := s.store.GetGeneration(ctx, p, slotNo, ownerID)
	if err != nil {
		return domaintree.Generation{}, err
	}
	if ok {
		return g, nil
	}
	return s.store.UpsertGeneration(ctx, domaintree.Generation{
		Program: p, SlotNo: slotNo, OwnerID: ownerID, GenNo: 1, Status: domaintree.GenerationActive,
	})
}

// IncrementGeneration records one more member placed into the current
// generation, returning the updated record.
func (s *Service) IncrementGeneration(ctx context.Context, g domaintree.Generation) (domaintree.Generation, error) {
	g.MemberCount++
	return s.store.UpsertGeneration(ctx, g)
}

// NodesInGeneration returns every node placed in (p, slotNo, generation),
// used by the recycle controller to snapshot a completed matrix tree
// (§4.6).
func (s *Service) NodesInGeneration(ctx context.Context, p program.Program, slotNo, generation int) ([]domaintree.Node, error) {
	return s.store.NodesInGeneration(ctx, p, slotNo, generation)
}

// Node returns the placement node for userID in (p, slotNo, generation), if
// one exists. Used by the /tree read endpoint.
func (s *Service) Node(ctx context.Context, p program.Program, slotNo, generation int, userID string) (domaintree.Node, bool, error) {
	return s.store.GetNode(ctx, p, slotNo, generation, userID)
}

// Children returns the nodes placed directly under parentID in (p, slotNo,
// generation). Used by the /tree read endpoint to render one level of a
// subtree at a time.
func (s *Service) Children(ctx context.Context, p program.Program, slotNo, generation int, parentID string) ([]domaintree.Node, error) {
	return s.store.Children(ctx, p, slotNo, generation, parentID)
}
