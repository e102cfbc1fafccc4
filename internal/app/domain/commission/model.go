// Package commission holds the CommissionEvent entity (§3): the
// append-only record of one payee receiving one share of a routed amount,
// independent of the ledger.Entry that actually moves value. Commission
// events exist to answer "who got paid for what slot at what level" without
// reconstructing it from the ledger's reason-code stream.
package commission

import (
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// Category groups a commission event by the §4.1 bucket it came from.
type Category string

const (
	CategoryLevelDistribution Category = "level_distribution"
	CategoryPartnerIncentive  Category = "partner_incentive"
	CategoryJoiningCommission Category = "joining_commission"
	CategoryMentorship        Category = "mentorship"
	CategoryNewcomer          Category = "newcomer"
	CategoryFund              Category = "fund"
)

// Event is one append-only commission record.
type Event struct {
	EventID      string          `json:"event_id"`
	PayerUserID  string          `json:"payer_user_id"`
	PayeeUserID  string          `json:"payee_user_id"`
	Program      program.Program `json:"program"`
	SourceSlotNo int             `json:"source_slot_no"`
	Level        int             `json:"level,omitempty"`
	Amount       float64         `json:"amount"`
	Category     Category        `json:"category"`
}
