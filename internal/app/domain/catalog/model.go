// Package catalog is the read-only surface named by §4.1: slot prices,
// level-distribution percentages, fund percentages, and rank thresholds.
// All tables are bounded and hard-coded at init, as §4.1 allows.
//
// Percentage sub-patterns within a bucket (e.g. Matrix's Level 40% split
// across L1-3) are stored as given in §4.1/§6 and then normalized to sum to
// exactly 100 of their parent bucket by normalizeTo100 when the catalog is
// built, so that the conservation invariant (§3 I1, §8 P1) holds even where
// the literal numbers in §4.1's prose sum to less than the bucket they
// describe — see DESIGN.md "Matrix level-distribution normalization" for
// the reconciliation this performs.
package catalog

import (
	"fmt"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// FundBucket names one of the named contribution buckets a program's
// normal-distribution amount is split across (§4.1).
type FundBucket string

const (
	BucketSpark              FundBucket = "spark"
	BucketRoyalCaptain       FundBucket = "royal_captain"
	BucketPresident          FundBucket = "president"
	BucketLeadershipStipend  FundBucket = "leadership_stipend"
	BucketJackpot            FundBucket = "jackpot"
	BucketPartnerIncentive   FundBucket = "partner_incentive"
	BucketShareholders       FundBucket = "shareholders"
	BucketLevelDistribution  FundBucket = "level_distribution"
	BucketNewcomer           FundBucket = "newcomer"
	BucketMentorship         FundBucket = "mentorship"
	BucketProfit             FundBucket = "profit"
	BucketTripleEntry        FundBucket = "triple_entry"
	BucketGlobalReserveLevel FundBucket = "global_reserve_level"
)

// Catalog is the immutable, in-memory implementation of the read surface.
// It has no dependency on storage: every field is a fixed table computed
// once at construction.
type Catalog struct {
	binaryPrices []float64
	matrixPrices []float64
	globalPrices []float64

	binaryFundPct map[FundBucket]float64
	matrixFundPct map[FundBucket]float64
	globalFundPct map[FundBucket]float64

	binaryLevelPattern []float64 // 16 entries, already sum to 100
	matrixLevelPattern []float64 // 3 entries (L1-3), normalized to sum 100
	sparkLevelPattern  []float64 // 14 entries, already sum to 100

	rankThresholds []RankThreshold
}

// RankThreshold is one row of the §6 rank table: total active slots ≥
// MinSlots yields Rank.
type RankThreshold struct {
	MinSlots int
	Rank     int
}

// New builds the fixed catalog described by §4.1 and §6.
func New() *Catalog {
	c := &Catalog{
		binaryPrices: []float64{
			0.0022, 0.0044, 0.0088, 0.0176, 0.0352, 0.0704, 0.1408, 0.2816,
			0.5632, 1.1264, 2.2528, 4.5056, 9.0112, 18.0224, 36.0448, 72.0896,
		},
		matrixPrices: []float64{
			11, 33, 99, 297, 891, 2673, 8019, 24057, 72171, 216513,
			649539, 1948617, 5845851, 17537553, 52612659,
		},
		// Global's full 16-slot table is not given by §6 (only slot 1 = $33
		// is named); it is generated here by the same ×3 recurrence Matrix
		// uses, since price discovery for slots is a named Non-goal (§1) —
		// any consistent bounded table satisfies the read-only catalog
		// contract the rest of the engine depends on.
		globalPrices: geometricTable(33, 3, 16),
		binaryFundPct: map[FundBucket]float64{
			BucketSpark:             8,
			BucketRoyalCaptain:      4,
			BucketPresident:         3,
			BucketLeadershipStipend: 5,
			BucketJackpot:           5,
			BucketPartnerIncentive:  10,
			BucketShareholders:      5,
			BucketLevelDistribution: 60,
		},
		matrixFundPct: map[FundBucket]float64{
			BucketSpark:             8,
			BucketRoyalCaptain:      4,
			BucketPresident:         3,
			BucketNewcomer:          20,
			BucketMentorship:        10,
			BucketPartnerIncentive:  10,
			BucketShareholders:      5,
			BucketLevelDistribution: 40,
		},
		globalFundPct: map[FundBucket]float64{
			BucketGlobalReserveLevel: 30,
			BucketPartnerIncentive:   10,
			BucketProfit:             30,
			BucketRoyalCaptain:       10,
			BucketPresident:          10,
			BucketTripleEntry:        5,
			BucketShareholders:       5,
		},
		binaryLevelPattern: []float64{
			30, 10, 10, 5, 5, 5, 5, 5, 5, 5, 3, 3, 3, 2, 2, 2,
		},
		matrixLevelPattern: []float64{30, 10, 10},
		sparkLevelPattern: []float64{
			15, 10, 10, 10, 10, 7, 6, 6, 6, 4, 4, 4, 4, 4,
		},
		rankThresholds: []RankThreshold{
			{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6}, {8, 7}, {10, 8},
			{12, 9}, {14, 10}, {16, 11}, {18, 12}, {20, 13}, {25, 14}, {30, 15},
		},
	}
	c.matrixLevelPattern = normalizeTo100(c.matrixLevelPattern)
	return c
}

func geometricTable(first float64, ratio float64, count int) []float64 {
	out := make([]float64, count)
	v := first
	for i := 0; i < count; i++ {
		out[i] = v
		v *= ratio
	}
	return out
}

func normalizeTo100(values []float64) []float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / sum * 100
	}
	return out
}

// Price returns the fixed price of (program, slot). Matrix follows the
// recurrence price(k) = 3 × price(k-1); Binary and Global tables are fixed.
func (c *Catalog) Price(p program.Program, slot int) (float64, error) {
	table, err := c.priceTable(p)
	if err != nil {
		return 0, err
	}
	if slot < 1 || slot > len(table) {
		return 0, fmt.Errorf("slot %d out of range for %s", slot, p)
	}
	return table[slot-1], nil
}

func (c *Catalog) priceTable(p program.Program) ([]float64, error) {
	switch p {
	case program.Binary:
		return c.binaryPrices, nil
	case program.Matrix:
		return c.matrixPrices, nil
	case program.Global:
		return c.globalPrices, nil
	default:
		return nil, fmt.Errorf("unknown program %q", p)
	}
}

// SlotName returns a deterministic display name for (program, slot).
func (c *Catalog) SlotName(p program.Program, slot int) string {
	return fmt.Sprintf("%s-slot-%d", p, slot)
}

// FundPercentages returns the normal-distribution percentage table for p,
// keyed by bucket, each value a percent-of-total-amount figure.
func (c *Catalog) FundPercentages(p program.Program) (map[FundBucket]float64, error) {
	switch p {
	case program.Binary:
		return c.binaryFundPct, nil
	case program.Matrix:
		return c.matrixFundPct, nil
	case program.Global:
		return c.globalFundPct, nil
	default:
		return nil, fmt.Errorf("unknown program %q", p)
	}
}

// LevelShares returns the per-level percentage-of-total-amount shares for
// p's level-distribution bucket, already normalized so they sum exactly to
// that bucket's share of the total (see package doc).
func (c *Catalog) LevelShares(p program.Program) ([]float64, error) {
	pct, err := c.FundPercentages(p)
	if err != nil {
		return nil, err
	}
	var pattern []float64
	var bucketPct float64
	switch p {
	case program.Binary:
		pattern = c.binaryLevelPattern
		bucketPct = pct[BucketLevelDistribution]
	case program.Matrix:
		pattern = c.matrixLevelPattern
		bucketPct = pct[BucketLevelDistribution]
	case program.Global:
		// Global's level bucket is not split across levels — the whole
		// 30% flows to the owner's own reserve (§4.4 "Global, any slot").
		return nil, fmt.Errorf("global program has no per-level split")
	default:
		return nil, fmt.Errorf("unknown program %q", p)
	}
	shares := make([]float64, len(pattern))
	for i, v := range pattern {
		shares[i] = bucketPct * v / 100
	}
	return shares, nil
}

// SparkLevelShares returns the normalized L1-14 percent-of-spark-pool
// shares used when distributing the Spark fund's 80% matrix-level bucket
// (§4.7).
func (c *Catalog) SparkLevelShares() []float64 {
	out := make([]float64, len(c.sparkLevelPattern))
	copy(out, c.sparkLevelPattern)
	return out
}

// RankThresholds returns the §6 rank table, sorted ascending by MinSlots.
func (c *Catalog) RankThresholds() []RankThreshold {
	out := make([]RankThreshold, len(c.rankThresholds))
	copy(out, c.rankThresholds)
	return out
}

// ValidateUpgradeAmount implements Open Question #1 (SPEC_FULL.md §11.2):
// Binary/Global upgrades must pay exactly price(target); Matrix upgrades
// must pay the cost-to-upgrade, price(target) - price(target-1).
func (c *Catalog) ValidateUpgradeAmount(p program.Program, targetSlot int, amount float64) error {
	target, err := c.Price(p, targetSlot)
	if err != nil {
		return err
	}
	const epsilon = 1e-8
	switch p {
	case program.Matrix:
		if targetSlot <= 1 {
			return fmt.Errorf("matrix target slot must be >= 2 for an upgrade")
		}
		prev, err := c.Price(p, targetSlot-1)
		if err != nil {
			return err
		}
		cost := target - prev
		if diff := amount - cost; diff > epsilon || diff < -epsilon {
			return fmt.Errorf("matrix upgrade to slot %d requires cost-to-upgrade %.8f, got %.8f", targetSlot, cost, amount)
		}
	default:
		if diff := amount - target; diff > epsilon || diff < -epsilon {
			return fmt.Errorf("%s upgrade to slot %d requires %.8f, got %.8f", p, targetSlot, target, amount)
		}
	}
	return nil
}
