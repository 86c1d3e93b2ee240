package entity

import (
	"encoding/json"
	"time"
)

// WorkflowInstance is one in-flight or completed run of a definition against
// one business target. Mutated only by the transition engine, never deleted.
type WorkflowInstance struct {
	ID             int64     `json:"id"`
	DefinitionCode string    `json:"definition_code"`
	TargetType     string    `json:"target_type"`
	TargetID       int64     `json:"target_id"`
	CurrentState   string    `json:"current_state"`
	CreatedByID    string    `json:"created_by_id"`
	Context        string    `json:"context"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ApproverStake is one required approver with its voting weight, as captured
// in the instance context snapshot at creation time.
type ApproverStake struct {
	Ref    string `json:"ref"`
	Name   string `json:"name,omitempty"`
	Weight int64  `json:"weight"`
}

// ContextSnapshot is the free-form business snapshot stored on an instance.
// Approvers maps an approver kind (e.g. "shareholder") to the parties whose
// consent a gated action may require.
type ContextSnapshot struct {
	Approvers map[string][]ApproverStake `json:"approvers,omitempty"`
	Fields    map[string]string          `json:"fields,omitempty"`
}

// Snapshot decodes the instance context. An empty context yields an empty
// snapshot rather than an error.
func (i *WorkflowInstance) Snapshot() (*ContextSnapshot, error) {
	snap := &ContextSnapshot{}
	if i.Context == "" {
		return snap, nil
	}
	if err := json.Unmarshal([]byte(i.Context), snap); err != nil {
		return nil, err
	}
	return snap, nil
}
