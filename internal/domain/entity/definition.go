package entity

import "time"

// WorkflowDefinition is the declarative graph of states and actions for one
// registry process type. Keyed by a stable code such as "company.registration".
type WorkflowDefinition struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	States      []State   `json:"states"`
	ShapeHash   string    `json:"shape_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// State is one node of a definition graph. The first declared state is the
// initial state of every instance bound to the definition.
type State struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Final    bool            `json:"final,omitempty"`
	Business *BusinessEffect `json:"business,omitempty"`
	Actions  []Action        `json:"actions,omitempty"`
}

// Action is a named, role-gated edge from its owning state to the state named
// by To. An empty Roles list delegates authorization to the caller's
// business-rule actor check.
type Action struct {
	Key             string       `json:"key"`
	Label           string       `json:"label"`
	To              string       `json:"to"`
	Roles           []string     `json:"roles,omitempty"`
	RequiresConsent *ConsentRule `json:"requires_consent,omitempty"`
}

// Consent rule modes.
const (
	ConsentModeUnanimous = "unanimous"
	ConsentModeWeighted  = "weighted"
)

// ConsentRule blocks an action until the approver set drawn from the instance
// context satisfies the rule. For weighted rules the threshold is the exact
// fraction ThresholdNum/ThresholdDen of total voting weight.
type ConsentRule struct {
	Mode         string `json:"mode"`
	ApproverKind string `json:"approver_kind"`
	ThresholdNum int64  `json:"threshold_num,omitempty"`
	ThresholdDen int64  `json:"threshold_den,omitempty"`
	Veto         bool   `json:"veto,omitempty"`
}

// BusinessEffect is the partial set of denormalized fields a state implies on
// the target entity. Fields are merged into the target's attribute document.
type BusinessEffect struct {
	EntityStatus      string            `json:"entity_status,omitempty"`
	ApplicationStatus string            `json:"application_status,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
}

// StateByKey returns the state with the given key, or nil.
func (d *WorkflowDefinition) StateByKey(key string) *State {
	for i := range d.States {
		if d.States[i].Key == key {
			return &d.States[i]
		}
	}
	return nil
}

// InitialState returns the first declared state, or nil for an empty graph.
func (d *WorkflowDefinition) InitialState() *State {
	if len(d.States) == 0 {
		return nil
	}
	return &d.States[0]
}

// ActionByKey returns the action with the given key, or nil.
func (s *State) ActionByKey(key string) *Action {
	for i := range s.Actions {
		if s.Actions[i].Key == key {
			return &s.Actions[i]
		}
	}
	return nil
}

// HasRole reports whether role is in the action's static role list.
func (a *Action) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
