package workflow

import (
	"context"

	"github.com/opencorp/regflow/internal/domain/entity"
)

// Actor is the identity attempting to fire an action.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the actor holds at least one of the given roles.
func (a Actor) HasAnyRole(roles []string) bool {
	for _, required := range roles {
		for _, held := range a.Roles {
			if held == required {
				return true
			}
		}
	}
	return false
}

// TransitionResult is the engine's output contract for a successful
// transition. Ephemeral; never persisted as its own row.
type TransitionResult struct {
	Action    *entity.Action           `json:"action"`
	NextState *entity.State            `json:"next_state"`
	Instance  *entity.WorkflowInstance `json:"instance"`
}

// Engine interprets definition graphs at runtime: it validates that an action
// is legal from the instance's current state, authorizes the actor, enforces
// the consent gate, computes the destination state and applies the state
// write, the business effect and the audit record in one transaction.
type Engine interface {
	// PerformAction fires one action on an instance.
	//
	// When the action's role list is empty, authorization is delegated to
	// the caller's business-rule actor check (e.g. "must be the original
	// applicant") — the engine trusts that the caller has already rejected
	// unauthorized actors in that case.
	PerformAction(ctx context.Context, instanceID int64, actionKey string, actor Actor, comment string, payload map[string]interface{}) (*TransitionResult, error)
}

// EffectApplier routes a business effect to the handler registered for the
// target type. Satisfied by service.EffectRegistry.
type EffectApplier interface {
	Apply(ctx context.Context, targetType string, targetID int64, effect *entity.BusinessEffect) error
}
