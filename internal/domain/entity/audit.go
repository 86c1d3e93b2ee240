package entity

import "time"

// AuditRecord is one append-only entry in the transition history of an
// instance. Never mutated or deleted.
type AuditRecord struct {
	ID          int64     `json:"id"`
	InstanceID  int64     `json:"instance_id"`
	ActorID     string    `json:"actor_id"`
	ActionKey   string    `json:"action_key"`
	ActionLabel string    `json:"action_label"`
	ResultState string    `json:"result_state"`
	Comment     string    `json:"comment,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
