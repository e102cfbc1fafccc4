// Package user holds the User and partner-graph entities (§3).
package user

import "time"

// ProgramFlags records which programs a user has joined. Monotonically set
// — never cleared once true.
type ProgramFlags struct {
	Binary bool `json:"binary"`
	Matrix bool `json:"matrix"`
	Global bool `json:"global"`
}

// User is a platform participant. ReferrerID is empty for the single Mother
// account (the system-owned sink named throughout §4 and the Glossary).
type User struct {
	ID           string       `json:"id"`
	ReferrerID   string       `json:"referrer_id,omitempty"`
	JoinedAt     time.Time    `json:"joined_at"`
	ProgramFlags ProgramFlags `json:"program_flags"`
}

// IsMother reports whether this user is the system Mother sink.
func (u User) IsMother() bool { return u.ReferrerID == "" && u.ID == MotherID }

// MotherID is the well-known identifier of the Mother account.
const MotherID = "mother"

// PartnerGraphNode tracks a user's direct referrals and per-program direct
// counts, updated on each new join beneath this user (§3).
type PartnerGraphNode struct {
	UserID              string         `json:"user_id"`
	Directs             []string       `json:"directs"`
	DirectsCountByProgr map[string]int `json:"directs_count_by_program"`
}

// NewPartnerGraphNode returns an empty node for a freshly joined user.
func NewPartnerGraphNode(userID string) PartnerGraphNode {
	return PartnerGraphNode{
		UserID:              userID,
		Directs:             []string{},
		DirectsCountByProgr: map[string]int{},
	}
}
