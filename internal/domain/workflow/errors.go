package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDefinitionNotFound is returned when no definition exists for a code
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionConflict is returned when re-registering a code with a
	// graph that would orphan in-flight instances
	ErrDefinitionConflict = errors.New("workflow definition conflict")

	// ErrDefinitionCorrupt signals a definition-authoring bug such as an
	// action pointing at a missing state
	ErrDefinitionCorrupt = errors.New("workflow definition corrupt")

	// ErrInstanceNotFound is returned when no instance exists for an id
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInvalidInstanceState signals a data-integrity violation: the
	// instance's current state is not present in its definition
	ErrInvalidInstanceState = errors.New("instance state not present in definition")

	// ErrInstanceTerminated is returned for any action fired from a final state
	ErrInstanceTerminated = errors.New("instance is in a terminal state")

	// ErrActionNotAllowed is returned when the action key does not exist in
	// the current state's action list
	ErrActionNotAllowed = errors.New("action not allowed in current state")

	// ErrForbidden is returned when the actor holds none of the action's roles
	ErrForbidden = errors.New("actor not authorized for action")

	// ErrConsentPending is returned while a consent-gated action still has
	// outstanding approvals
	ErrConsentPending = errors.New("consent not yet satisfied")

	// ErrConsentVetoed is returned when a required approver's rejection
	// vetoes the gated action
	ErrConsentVetoed = errors.New("consent vetoed by a required approver")

	// ErrNotARequiredApprover is returned when a decision arrives from a
	// party outside the computed approver set
	ErrNotARequiredApprover = errors.New("not a required approver")

	// ErrPersistence wraps storage-layer failures
	ErrPersistence = errors.New("persistence failure")
)

// OutstandingApprover identifies one required approver that has not yet
// approved a gated action.
type OutstandingApprover struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// ConsentPendingError carries the outstanding approver set so callers can
// render a useful message. The error text exposes only kind counts, never
// approver identifiers.
type ConsentPendingError struct {
	ActionKey   string
	Outstanding []OutstandingApprover
}

func (e *ConsentPendingError) Error() string {
	counts := make(map[string]int)
	for _, o := range e.Outstanding {
		counts[o.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("consent not yet satisfied for action %s", e.ActionKey)
	}
	return fmt.Sprintf("consent not yet satisfied for action %s: awaiting %s", e.ActionKey, strings.Join(parts, ", "))
}

// Unwrap makes errors.Is(err, ErrConsentPending) hold.
func (e *ConsentPendingError) Unwrap() error {
	return ErrConsentPending
}
