// Package recycle implements the Matrix Recycle Controller (§4.6):
// detecting a generation's 39th member, snapshotting the completed tree
// immutably, opening the next generation, and re-entering the owner into
// their upline's current tree. It implements placement.Recycler, the hook
// services/placement calls after every matrix placement.
package recycle

import (
	"context"
	"fmt"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	treesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/internal/metrics"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// Reenterer is the one placement capability the controller needs: running
// the owner's re-entry as its own matrix placement event (§4.6 step 3).
type Reenterer interface {
	ReenterMatrix(ctx context.Context, ownerID string, slotNo int, correlationID string) (placement.Outcome, error)
}

// Controller implements placement.Recycler.
type Controller struct {
	tree     *treesvc.Service
	store    storage.TreeStore
	reenter  Reenterer
	log      *logger.Logger
	now      func() time.Time
}

// New builds a recycle Controller.
func New(treeService *treesvc.Service, store storage.TreeStore, reenter Reenterer, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefault("matrix-recycle")
	}
	return &Controller{tree: treeService, store: store, reenter: reenter, log: log, now: time.Now}
}

// WithClock overrides the wall clock, for deterministic tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// MaybeRecycle implements placement.Recycler. It is called after every
// matrix placement; it only acts when the owner's current generation has
// just reached the 39-member threshold (§3 I5, §4.6).
func (c *Controller) MaybeRecycle(ctx context.Context, ownerID string, slotNo int) error {
	gen, ok, err := c.store.GetGeneration(ctx, program.Matrix, slotNo, ownerID)
	if err != nil {
		return err
	}
	if !ok || gen.Status != tree.GenerationActive || gen.MemberCount < tree.MatrixRecycleThreshold {
		return nil
	}
	return c.recycle(ctx, ownerID, slotNo, gen)
}

// recycle performs the four §4.6 steps. Snapshot and level-income
// finalization (steps 1 and 4) are represented by marking the generation
// recycled — the 39 nodes already placed in it are immutable tree rows
// that remain queryable by generation number, which is the snapshot;
// level incomes were already emitted incrementally by the routing engine
// as each of the 39 members was placed (§4.6 step 4 "already emitted
// incrementally; the controller only finalizes pending holds").
func (c *Controller) recycle(ctx context.Context, ownerID string, slotNo int, gen tree.Generation) error {
	snapshot, err := c.tree.NodesInGeneration(ctx, program.Matrix, slotNo, gen.GenNo)
	if err != nil {
		return err
	}

	gen.Status = tree.GenerationRecycled
	if _, err := c.store.UpsertGeneration(ctx, gen); err != nil {
		return err
	}

	next := tree.Generation{
		Program: program.Matrix, SlotNo: slotNo, OwnerID: ownerID,
		GenNo: gen.GenNo + 1, Status: tree.GenerationActive,
	}
	if _, err := c.store.UpsertGeneration(ctx, next); err != nil {
		return err
	}

	correlationID := fmt.Sprintf("matrix-%s-%d-recycle_reentry-%d", ownerID, slotNo, c.now().UnixNano())
	if c.reenter == nil {
		c.log.WithField("owner_id", ownerID).WithField("slot_no", slotNo).
			Warn("recycle reenterer not configured; generation closed without re-entry")
		return nil
	}
	if _, err := c.reenter.ReenterMatrix(ctx, ownerID, slotNo, correlationID); err != nil {
		return err
	}
	metrics.RecordMatrixRecycle(slotNo)
	c.log.WithField("owner_id", ownerID).WithField("slot_no", slotNo).
		WithField("closed_generation", gen.GenNo).
		WithField("snapshot_size", len(snapshot)).
		Info("matrix generation recycled")
	return nil
}
