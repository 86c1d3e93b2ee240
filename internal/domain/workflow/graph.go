package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/opencorp/regflow/internal/domain/entity"
)

// Validate checks a definition graph for authoring errors: duplicate state
// keys, duplicate action keys within a state, dangling action targets and
// malformed consent rules. Definitions are validated once at registration,
// never during transition processing.
func Validate(def *entity.WorkflowDefinition) error {
	if def.Code == "" {
		return fmt.Errorf("%w: empty definition code", ErrDefinitionCorrupt)
	}
	if len(def.States) == 0 {
		return fmt.Errorf("%w: definition %s has no states", ErrDefinitionCorrupt, def.Code)
	}

	stateKeys := make(map[string]bool, len(def.States))
	for _, s := range def.States {
		if s.Key == "" {
			return fmt.Errorf("%w: definition %s has a state with an empty key", ErrDefinitionCorrupt, def.Code)
		}
		if stateKeys[s.Key] {
			return fmt.Errorf("%w: definition %s declares state %s twice", ErrDefinitionCorrupt, def.Code, s.Key)
		}
		stateKeys[s.Key] = true
	}

	for _, s := range def.States {
		actionKeys := make(map[string]bool, len(s.Actions))
		for _, a := range s.Actions {
			if a.Key == "" {
				return fmt.Errorf("%w: state %s has an action with an empty key", ErrDefinitionCorrupt, s.Key)
			}
			if actionKeys[a.Key] {
				return fmt.Errorf("%w: state %s declares action %s twice", ErrDefinitionCorrupt, s.Key, a.Key)
			}
			actionKeys[a.Key] = true

			if !stateKeys[a.To] {
				return fmt.Errorf("%w: action %s.%s targets unknown state %s", ErrDefinitionCorrupt, s.Key, a.Key, a.To)
			}
			if err := validateConsentRule(s.Key, a.Key, a.RequiresConsent); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateConsentRule(stateKey, actionKey string, rule *entity.ConsentRule) error {
	if rule == nil {
		return nil
	}
	if rule.ApproverKind == "" {
		return fmt.Errorf("%w: consent rule on %s.%s has no approver kind", ErrDefinitionCorrupt, stateKey, actionKey)
	}
	switch rule.Mode {
	case entity.ConsentModeUnanimous:
		return nil
	case entity.ConsentModeWeighted:
		if rule.ThresholdNum <= 0 || rule.ThresholdDen <= 0 || rule.ThresholdNum > rule.ThresholdDen {
			return fmt.Errorf("%w: consent rule on %s.%s has invalid threshold %d/%d",
				ErrDefinitionCorrupt, stateKey, actionKey, rule.ThresholdNum, rule.ThresholdDen)
		}
		return nil
	default:
		return fmt.Errorf("%w: consent rule on %s.%s has unknown mode %q", ErrDefinitionCorrupt, stateKey, actionKey, rule.Mode)
	}
}

// shapeState mirrors the structural fields of a state for hashing. Labels and
// descriptions are metadata and do not affect the shape.
type shapeState struct {
	Key     string        `json:"key"`
	Final   bool          `json:"final"`
	Actions []shapeAction `json:"actions"`
}

type shapeAction struct {
	Key     string              `json:"key"`
	To      string              `json:"to"`
	Roles   []string            `json:"roles,omitempty"`
	Consent *entity.ConsentRule `json:"consent,omitempty"`
}

// ShapeHash returns a deterministic fingerprint of the graph structure, used
// by the registry to detect structural re-registration.
func ShapeHash(states []entity.State) (string, error) {
	shape := make([]shapeState, 0, len(states))
	for _, s := range states {
		ss := shapeState{Key: s.Key, Final: s.Final}
		for _, a := range s.Actions {
			ss.Actions = append(ss.Actions, shapeAction{
				Key:     a.Key,
				To:      a.To,
				Roles:   a.Roles,
				Consent: a.RequiresConsent,
			})
		}
		shape = append(shape, ss)
	}
	raw, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("failed to marshal graph shape: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Orphans returns the state keys from inUse that would no longer resolve in
// the new graph. States that were final in the old graph are skipped: a
// completed instance is a closed historical record, not in-flight.
func Orphans(old, updated *entity.WorkflowDefinition, inUse []string) []string {
	var orphaned []string
	for _, key := range inUse {
		if oldState := old.StateByKey(key); oldState != nil && oldState.Final {
			continue
		}
		if updated.StateByKey(key) == nil {
			orphaned = append(orphaned, key)
		}
	}
	return orphaned
}
