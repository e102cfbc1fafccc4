// Package funds holds the eligibility-record entity for the special funds
// named in §4.7: Spark, Royal Captain, President, Leadership Stipend,
// Triple-Entry, Newcomer Growth Support, Mentorship, Dream Matrix.
// Eligibility checks are idempotent and side-effect-free except for
// writing one of these records (§4.7); actual payouts are separate events.
package funds

import "time"

// FundName is the closed set of special funds named by §4.7.
type FundName string

const (
	FundSpark             FundName = "spark"
	FundRoyalCaptain      FundName = "royal_captain"
	FundPresident         FundName = "president"
	FundLeadershipStipend FundName = "leadership_stipend"
	FundTripleEntry       FundName = "triple_entry"
	FundNewcomer          FundName = "newcomer_growth_support"
	FundMentorship        FundName = "mentorship"
	FundDreamMatrix       FundName = "dream_matrix"
)

// EligibilityRecord is the idempotent outcome of evaluating one fund's
// predicate for one user at one point in time.
type EligibilityRecord struct {
	UserID      string    `json:"user_id"`
	Fund        FundName  `json:"fund"`
	Eligible    bool      `json:"eligible"`
	Tier        int       `json:"tier,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// DreamMatrixProgress tracks the successive-qualifying-event payout
// schedule named in §4.7 (10/10/15/25/40 of the 5th-slot base value).
type DreamMatrixProgress struct {
	UserID        string `json:"user_id"`
	EventsPaidOut int    `json:"events_paid_out"`
}

// DreamMatrixSchedule is the progressive percentage-of-base-value payout
// schedule, indexed by EventsPaidOut (0-based).
var DreamMatrixSchedule = []float64{10, 10, 15, 25, 40}

// NewcomerPool accumulates one referrer's share of the Newcomer Growth
// Support upline fund (§4.7) between 30-day distribution ticks. Unlike the
// instant-claimable half, this half is never credited to the referrer
// directly — it is split equally among the referrer's *current* direct
// referrals the next time the scheduler runs.
type NewcomerPool struct {
	ReferrerID        string    `json:"referrer_id"`
	Currency          string    `json:"currency"`
	Balance           float64   `json:"balance"`
	LastDistributedAt time.Time `json:"last_distributed_at,omitempty"`
}
