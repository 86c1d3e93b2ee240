package entity

import "time"

// ConsentRecord is one required approver's decision on a consent-gated
// action. One row exists per (instance, action, approver) triple; a later
// decision by the same approver overrides the earlier one.
type ConsentRecord struct {
	ID           int64      `json:"id"`
	InstanceID   int64      `json:"instance_id"`
	ActionKey    string     `json:"action_key"`
	ApproverKind string     `json:"approver_kind"`
	ApproverRef  string     `json:"approver_ref"`
	Decision     string     `json:"decision"`
	Weight       int64      `json:"weight"`
	Comment      string     `json:"comment,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
