// Package queue holds the auto-upgrade work-queue item (§3, §4.5): the
// durable per-(user, program) state machine the Auto-Upgrade Manager
// drives from idle through processing to a terminal state.
package queue

import (
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
)

// Status is the closed set of queue-item states (§3, §4.5).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusVoided     Status = "voided"
)

// TriggerKind records which §4.5 trigger armed this item.
type TriggerKind string

const (
	TriggerBinaryPartner TriggerKind = "binary_partner_trigger"
	TriggerMatrixMiddle  TriggerKind = "matrix_middle_trigger"
	TriggerReserve       TriggerKind = "reserve_trigger"
)

// Item is one auto-upgrade queue entry.
type Item struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Program      program.Program `json:"program"`
	CurrentSlot  int             `json:"current_slot"`
	TargetSlot   int             `json:"target_slot"`
	Cost         float64         `json:"cost"`
	Available    float64         `json:"available"`
	Status       Status          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	TriggerKind  TriggerKind     `json:"trigger_kind"`
	ArmedAt      time.Time       `json:"armed_at"`
	ProcessedAt  time.Time       `json:"processed_at,omitempty"`
	FailedReason string          `json:"failed_reason,omitempty"`
}

// Ready reports whether the accumulated reserve covers the target slot's
// cost, arming this item for processing (§4.5 "Reserve trigger").
func (i Item) Ready() bool {
	const epsilon = 1e-8
	return i.Available-i.Cost >= -epsilon
}
