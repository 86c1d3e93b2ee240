package workflow

import (
	"context"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/application/service"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// engineImpl is the concrete implementation of Engine.
type engineImpl struct {
	registry     service.DefinitionRegistry
	instanceRepo port.InstanceRepository
	consentGate  service.ConsentGate
	effects      EffectApplier
	auditTrail   service.AuditTrail
	txManager    port.TransactionManager
	logger       *zap.Logger
}

// NewEngine creates a new transition engine.
func NewEngine(
	registry service.DefinitionRegistry,
	instanceRepo port.InstanceRepository,
	consentGate service.ConsentGate,
	effects EffectApplier,
	auditTrail service.AuditTrail,
	txManager port.TransactionManager,
	logger *zap.Logger,
) Engine {
	return &engineImpl{
		registry:     registry,
		instanceRepo: instanceRepo,
		consentGate:  consentGate,
		effects:      effects,
		auditTrail:   auditTrail,
		txManager:    txManager,
		logger:       logger,
	}
}

// PerformAction implements Engine. The whole pipeline runs inside one
// transaction; the current state is re-read inside that transaction, so two
// concurrent calls against the same instance resolve through transaction
// isolation — the loser's action key no longer exists in the state the winner
// advanced to and fails with ErrActionNotAllowed.
func (e *engineImpl) PerformAction(ctx context.Context, instanceID int64, actionKey string, actor Actor, comment string, payload map[string]interface{}) (*TransitionResult, error) {
	var result *TransitionResult

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		instance, err := e.instanceRepo.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if instance == nil {
			return fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, instanceID)
		}

		def, err := e.registry.GetDefinition(txCtx, instance.DefinitionCode)
		if err != nil {
			return err
		}

		state := def.StateByKey(instance.CurrentState)
		if state == nil {
			// Data-integrity violation: the engine never writes a state key
			// that is absent from the definition.
			e.logger.Error("Instance holds a state absent from its definition",
				zap.Int64("instance_id", instance.ID),
				zap.String("definition_code", instance.DefinitionCode),
				zap.String("current_state", instance.CurrentState))
			return fmt.Errorf("%w: instance %d in state %s", domainwf.ErrInvalidInstanceState, instance.ID, instance.CurrentState)
		}

		if state.Final {
			return fmt.Errorf("%w: instance %d in state %s", domainwf.ErrInstanceTerminated, instance.ID, state.Key)
		}

		action := state.ActionByKey(actionKey)
		if action == nil {
			return fmt.Errorf("%w: %s from state %s", domainwf.ErrActionNotAllowed, actionKey, state.Key)
		}

		if len(action.Roles) > 0 && !actor.HasAnyRole(action.Roles) {
			return fmt.Errorf("%w: actor %s lacks roles for action %s", domainwf.ErrForbidden, actor.ID, action.Key)
		}

		if action.RequiresConsent != nil {
			status, err := e.consentGate.EvaluateAction(txCtx, instance, action)
			if err != nil {
				return err
			}
			if status.Vetoed {
				return fmt.Errorf("%w: action %s", domainwf.ErrConsentVetoed, action.Key)
			}
			if !status.Satisfied {
				return &domainwf.ConsentPendingError{ActionKey: action.Key, Outstanding: status.Outstanding}
			}
		}

		next := def.StateByKey(action.To)
		if next == nil {
			// A dangling target is an authoring bug the validator should have
			// caught at registration.
			e.logger.Error("Action targets a state absent from its definition",
				zap.String("definition_code", def.Code),
				zap.String("action_key", action.Key),
				zap.String("to", action.To))
			return fmt.Errorf("%w: action %s targets unknown state %s", domainwf.ErrDefinitionCorrupt, action.Key, action.To)
		}

		if err := e.instanceRepo.UpdateCurrentState(txCtx, instance.ID, next.Key); err != nil {
			return err
		}
		instance.CurrentState = next.Key

		if err := e.consentGate.SeedForState(txCtx, instance, next); err != nil {
			return err
		}

		if next.Business != nil {
			if err := e.effects.Apply(txCtx, instance.TargetType, instance.TargetID, next.Business); err != nil {
				return err
			}
		}

		if _, err := e.auditTrail.Record(txCtx, instance.ID, actor.ID, action, next.Key, comment, payload); err != nil {
			return err
		}

		result = &TransitionResult{Action: action, NextState: next, Instance: instance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Performed workflow action",
		zap.Int64("instance_id", instanceID),
		zap.String("action_key", actionKey),
		zap.String("actor_id", actor.ID),
		zap.String("next_state", result.NextState.Key))
	return result, nil
}

var _ Engine = (*engineImpl)(nil)
