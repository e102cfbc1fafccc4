// Package tree holds the three placement-graph entities (§3, §4.3): tree
// nodes, and the matrix-only generation bookkeeping used by recycle (§4.6).
package tree

import (
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// GenerationStatus is the matrix tree-generation lifecycle (§3).
type GenerationStatus string

const (
	GenerationActive   GenerationStatus = "active"
	GenerationRecycled GenerationStatus = "recycled"
)

// Node is one placed user within a (program, slot) placement graph. In
// matrix, a user can own more than one Node across generations; Generation
// disambiguates which.
type Node struct {
	Program    program.Program `json:"program"`
	SlotNo     int             `json:"slot_no"`
	UserID     string          `json:"user_id"`
	ParentID   string          `json:"parent_id,omitempty"`
	Position   int             `json:"position"`
	Generation int             `json:"generation"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// Generation is the matrix-only per-(owner,slot) tree epoch (§3). It
// increments every time the owner's 3-level subtree reaches 39 members.
type Generation struct {
	Program     program.Program  `json:"program"`
	SlotNo      int              `json:"slot_no"`
	OwnerID     string           `json:"owner_id"`
	GenNo       int              `json:"gen_no"`
	Status      GenerationStatus `json:"status"`
	MemberCount int              `json:"member_count"`
}

// MaxChildren returns the placement fan-out for p (§3 I5): binary nodes
// hold at most 2 children, matrix nodes at most 3. Global placement uses
// phase capacity instead of per-node fan-out (see Phase).
func MaxChildren(p program.Program) int {
	switch p {
	case program.Binary:
		return 2
	case program.Matrix:
		return 3
	default:
		return 0
	}
}

// Phase is the global program's two-phase placement cycle (§3, §4.3).
type Phase string

const (
	PhaseOne Phase = "P1"
	PhaseTwo Phase = "P2"
)

// PhaseCapacity returns the BFS fill capacity of a global phase tree.
func PhaseCapacity(p Phase) int {
	switch p {
	case PhaseOne:
		return 4
	case PhaseTwo:
		return 8
	default:
		return 0
	}
}

// MatrixRecycleThreshold is the member count (§3 I5, §4.6) that triggers a
// matrix recycle: 3 (level 1) + 9 (level 2) + 27 (level 3) = 39.
const MatrixRecycleThreshold = 39
