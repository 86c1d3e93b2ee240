package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// ConsentStatus is the outcome of evaluating a consent rule.
type ConsentStatus struct {
	Satisfied   bool
	Vetoed      bool
	Outstanding []domainwf.OutstandingApprover
}

// ConsentGate collects decisions from a dynamically computed approver set and
// reports whether the quorum rule attached to an action is satisfied. The
// approver set is recomputed from the instance context on every call, so the
// gate tolerates approver drift and decisions arriving in any order.
type ConsentGate interface {
	// RequiredApprovers returns the approver set for the action, computed
	// from the instance context snapshot.
	RequiredApprovers(ctx context.Context, instanceID int64, actionKey string) ([]entity.ApproverStake, error)

	// RecordDecision upserts one approver's decision. A later decision by
	// the same approver overrides the earlier one. Fails with
	// ErrNotARequiredApprover if the caller is outside the approver set.
	RecordDecision(ctx context.Context, instanceID int64, actionKey, approverRef, decision, comment string) error

	// Evaluate applies the action's rule. Safe to call repeatedly.
	Evaluate(ctx context.Context, instanceID int64, actionKey string) (*ConsentStatus, error)

	// EvaluateAction is Evaluate for an already loaded instance and action,
	// used by the transition engine inside its transaction.
	EvaluateAction(ctx context.Context, instance *entity.WorkflowInstance, action *entity.Action) (*ConsentStatus, error)

	// SeedForState creates pending consent records for every gated action
	// reachable from the state the instance just entered.
	SeedForState(ctx context.Context, instance *entity.WorkflowInstance, state *entity.State) error
}

type consentGateImpl struct {
	registry     DefinitionRegistry
	instanceRepo port.InstanceRepository
	consentRepo  port.ConsentRepository
	logger       *zap.Logger
}

// NewConsentGate creates a new ConsentGate.
func NewConsentGate(
	registry DefinitionRegistry,
	instanceRepo port.InstanceRepository,
	consentRepo port.ConsentRepository,
	logger *zap.Logger,
) ConsentGate {
	return &consentGateImpl{
		registry:     registry,
		instanceRepo: instanceRepo,
		consentRepo:  consentRepo,
		logger:       logger,
	}
}

// resolveRule loads the instance and locates the gated action in its current
// state.
func (g *consentGateImpl) resolveRule(ctx context.Context, instanceID int64, actionKey string) (*entity.WorkflowInstance, *entity.Action, error) {
	instance, err := g.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	if instance == nil {
		return nil, nil, fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, instanceID)
	}

	def, err := g.registry.GetDefinition(ctx, instance.DefinitionCode)
	if err != nil {
		return nil, nil, err
	}
	state := def.StateByKey(instance.CurrentState)
	if state == nil {
		return nil, nil, fmt.Errorf("%w: instance %d in state %s", domainwf.ErrInvalidInstanceState, instanceID, instance.CurrentState)
	}
	action := state.ActionByKey(actionKey)
	if action == nil {
		return nil, nil, fmt.Errorf("%w: %s from state %s", domainwf.ErrActionNotAllowed, actionKey, state.Key)
	}
	return instance, action, nil
}

// approverSet computes the required approvers from the context snapshot.
func (g *consentGateImpl) approverSet(instance *entity.WorkflowInstance, rule *entity.ConsentRule) ([]entity.ApproverStake, error) {
	snap, err := instance.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode instance context: %w", err)
	}
	return snap.Approvers[rule.ApproverKind], nil
}

// RequiredApprovers implements ConsentGate.
func (g *consentGateImpl) RequiredApprovers(ctx context.Context, instanceID int64, actionKey string) ([]entity.ApproverStake, error) {
	instance, action, err := g.resolveRule(ctx, instanceID, actionKey)
	if err != nil {
		return nil, err
	}
	if action.RequiresConsent == nil {
		return nil, nil
	}
	return g.approverSet(instance, action.RequiresConsent)
}

// RecordDecision implements ConsentGate.
func (g *consentGateImpl) RecordDecision(ctx context.Context, instanceID int64, actionKey, approverRef, decision, comment string) error {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return fmt.Errorf("invalid decision %q", decision)
	}

	instance, action, err := g.resolveRule(ctx, instanceID, actionKey)
	if err != nil {
		return err
	}
	if action.RequiresConsent == nil {
		return fmt.Errorf("%w: action %s requires no consent", domainwf.ErrNotARequiredApprover, actionKey)
	}

	approvers, err := g.approverSet(instance, action.RequiresConsent)
	if err != nil {
		return err
	}
	var stake *entity.ApproverStake
	for i := range approvers {
		if approvers[i].Ref == approverRef {
			stake = &approvers[i]
			break
		}
	}
	if stake == nil {
		return fmt.Errorf("%w: %s on action %s", domainwf.ErrNotARequiredApprover, approverRef, actionKey)
	}

	now := time.Now()
	record := &entity.ConsentRecord{
		InstanceID:   instanceID,
		ActionKey:    actionKey,
		ApproverKind: action.RequiresConsent.ApproverKind,
		ApproverRef:  approverRef,
		Decision:     decision,
		Weight:       stake.Weight,
		Comment:      comment,
		DecidedAt:    &now,
	}
	if err := g.consentRepo.Upsert(ctx, record); err != nil {
		return err
	}

	g.logger.Info("Recorded consent decision",
		zap.Int64("instance_id", instanceID),
		zap.String("action_key", actionKey),
		zap.String("decision", decision))
	return nil
}

// Evaluate implements ConsentGate.
func (g *consentGateImpl) Evaluate(ctx context.Context, instanceID int64, actionKey string) (*ConsentStatus, error) {
	instance, action, err := g.resolveRule(ctx, instanceID, actionKey)
	if err != nil {
		return nil, err
	}
	return g.EvaluateAction(ctx, instance, action)
}

// EvaluateAction implements ConsentGate.
func (g *consentGateImpl) EvaluateAction(ctx context.Context, instance *entity.WorkflowInstance, action *entity.Action) (*ConsentStatus, error) {
	rule := action.RequiresConsent
	if rule == nil {
		return &ConsentStatus{Satisfied: true}, nil
	}

	approvers, err := g.approverSet(instance, rule)
	if err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		// Nothing to approve. An empty approver set is unusual enough to flag.
		g.logger.Warn("Consent rule has an empty approver set",
			zap.Int64("instance_id", instance.ID),
			zap.String("action_key", action.Key),
			zap.String("approver_kind", rule.ApproverKind))
		return &ConsentStatus{Satisfied: true}, nil
	}

	records, err := g.consentRepo.GetByInstanceAction(ctx, instance.ID, action.Key)
	if err != nil {
		return nil, err
	}
	decisions := make(map[string]string, len(records))
	for _, r := range records {
		decisions[r.ApproverRef] = r.Decision
	}

	status := &ConsentStatus{}
	var approvedWeight, totalWeight int64
	approvedCount := 0
	for _, a := range approvers {
		totalWeight += a.Weight
		switch decisions[a.Ref] {
		case entity.DecisionApproved:
			approvedWeight += a.Weight
			approvedCount++
		case entity.DecisionRejected:
			if rule.Mode == entity.ConsentModeUnanimous || rule.Veto {
				status.Vetoed = true
			}
			status.Outstanding = append(status.Outstanding, domainwf.OutstandingApprover{Kind: rule.ApproverKind, Ref: a.Ref})
		default:
			status.Outstanding = append(status.Outstanding, domainwf.OutstandingApprover{Kind: rule.ApproverKind, Ref: a.Ref})
		}
	}

	if status.Vetoed {
		return status, nil
	}

	switch rule.Mode {
	case entity.ConsentModeUnanimous:
		status.Satisfied = approvedCount == len(approvers)
	case entity.ConsentModeWeighted:
		// Exact rational comparison, never head-count or float arithmetic.
		if totalWeight > 0 {
			reached := new(big.Rat).SetFrac64(approvedWeight, totalWeight)
			threshold := big.NewRat(rule.ThresholdNum, rule.ThresholdDen)
			status.Satisfied = reached.Cmp(threshold) >= 0
		}
	default:
		return nil, fmt.Errorf("%w: unknown consent mode %q", domainwf.ErrDefinitionCorrupt, rule.Mode)
	}
	return status, nil
}

// SeedForState implements ConsentGate.
func (g *consentGateImpl) SeedForState(ctx context.Context, instance *entity.WorkflowInstance, state *entity.State) error {
	var records []*entity.ConsentRecord
	for i := range state.Actions {
		rule := state.Actions[i].RequiresConsent
		if rule == nil {
			continue
		}
		approvers, err := g.approverSet(instance, rule)
		if err != nil {
			return err
		}
		for _, a := range approvers {
			records = append(records, &entity.ConsentRecord{
				InstanceID:   instance.ID,
				ActionKey:    state.Actions[i].Key,
				ApproverKind: rule.ApproverKind,
				ApproverRef:  a.Ref,
				Decision:     entity.DecisionPending,
				Weight:       a.Weight,
			})
		}
	}
	if len(records) == 0 {
		return nil
	}
	return g.consentRepo.SeedPending(ctx, records)
}

var _ ConsentGate = (*consentGateImpl)(nil)
