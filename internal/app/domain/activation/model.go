// Package activation holds the SlotActivation entity (§3): the
// append-only record of a user paying into a numbered slot.
package activation

import (
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// Type is the closed set of ways a slot can become active (§3).
type Type string

const (
	TypeInitial        Type = "initial"
	TypeUpgrade        Type = "upgrade"
	TypeAuto           Type = "auto"
	TypeRecycleReentry Type = "recycle_reentry"
)

// SlotActivation is append-only: at most one per (UserID, Program, SlotNo)
// key, per invariant I2, except a recycle_reentry which lands in a new
// matrix tree generation rather than reusing the key.
type SlotActivation struct {
	UserID       string          `json:"user_id"`
	Program      program.Program `json:"program"`
	SlotNo       int             `json:"slot_no"`
	ActivationTp Type            `json:"activation_type"`
	AmountPaid   float64         `json:"amount_paid"`
	TxHash       string          `json:"tx_hash,omitempty"`
	ActivatedAt  time.Time       `json:"activated_at"`
}
