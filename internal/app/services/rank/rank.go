// Package rank implements the pure §4.8 rank function: total active slots
// across all three programs maps to a rank 1..15 via the catalog's
// monotonic threshold table. Stored rank is always the max of the prior
// rank and the freshly computed one; history is appended, never mutated.
package rank

import (
	"context"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	domainrank "github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/rank"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
)

// Service recomputes and persists rank.
type Service struct {
	store storage.RankStore
	cat   *catalog.Catalog
	now   func() time.Time
}

// New builds a rank Service.
func New(store storage.RankStore, cat *catalog.Catalog) *Service {
	return &Service{store: store, cat: cat, now: time.Now}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Compute implements §4.8's pure function: total active slots -> rank,
// via the highest threshold not exceeding the total.
func Compute(cat *catalog.Catalog, binarySlots, matrixSlots, globalSlots int) int {
	total := binarySlots + matrixSlots + globalSlots
	rank := 0
	for _, t := range cat.RankThresholds() {
		if total >= t.MinSlots && t.Rank > rank {
			rank = t.Rank
		}
	}
	return rank
}

// Recompute evaluates Compute for userID and persists the result if it
// increases the stored rank (P5: monotone non-decreasing). Returns the
// current (possibly unchanged) rank record.
func (s *Service) Recompute(ctx context.Context, userID string, binarySlots, matrixSlots, globalSlots int) (domainrank.Rank, error) {
	computed := Compute(s.cat, binarySlots, matrixSlots, globalSlots)

	existing, ok, err := s.store.GetRank(ctx, userID)
	if err != nil {
		return domainrank.Rank{}, err
	}
	if !ok {
		existing = domainrank.Rank{UserID: userID, RankNumber: 0, History: nil}
	}
	if computed <= existing.RankNumber {
		return existing, nil
	}

	existing.RankNumber = computed
	existing.History = append(existing.History, domainrank.HistoryEntry{
		Rank:      computed,
		ChangedAt: s.now(),
	})
	return s.store.UpsertRank(ctx, existing)
}

// Get returns userID's current rank record without recomputing it, for
// read-only callers such as the /status endpoint.
func (s *Service) Get(ctx context.Context, userID string) (domainrank.Rank, error) {
	existing, ok, err := s.store.GetRank(ctx, userID)
	if err != nil {
		return domainrank.Rank{}, err
	}
	if !ok {
		return domainrank.Rank{UserID: userID}, nil
	}
	return existing, nil
}

// AdminReset is the one explicit exception to P5's monotonicity: an
// administrator may force a rank down, recorded as its own history entry
// so the append-only audit trail still shows the reset happened.
func (s *Service) AdminReset(ctx context.Context, userID string, newRank int) (domainrank.Rank, error) {
	existing, ok, err := s.store.GetRank(ctx, userID)
	if err != nil {
		return domainrank.Rank{}, err
	}
	if !ok {
		existing = domainrank.Rank{UserID: userID}
	}
	existing.RankNumber = newRank
	existing.History = append(existing.History, domainrank.HistoryEntry{Rank: newRank, ChangedAt: s.now()})
	return s.store.UpsertRank(ctx, existing)
}
