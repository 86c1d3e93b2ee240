package service

import (
	"context"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// InstanceStore creates and looks up workflow instances.
type InstanceStore interface {
	// CreateInstance binds a new instance to a definition code and a target.
	// The instance starts in the definition's first declared state. Creation
	// is idempotent per (targetType, targetID): an existing instance is
	// returned unchanged.
	CreateInstance(ctx context.Context, definitionCode, targetType string, targetID int64, createdByID, contextJSON string) (*entity.WorkflowInstance, error)

	// GetInstance fails with ErrInstanceNotFound if the id is unknown.
	GetInstance(ctx context.Context, id int64) (*entity.WorkflowInstance, error)

	// FindByTarget returns (nil, nil) when no instance exists for the target.
	FindByTarget(ctx context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error)
}

type instanceStoreImpl struct {
	registry     DefinitionRegistry
	instanceRepo port.InstanceRepository
	consentGate  ConsentGate
	txManager    port.TransactionManager
	logger       *zap.Logger
}

// NewInstanceStore creates a new InstanceStore.
func NewInstanceStore(
	registry DefinitionRegistry,
	instanceRepo port.InstanceRepository,
	consentGate ConsentGate,
	txManager port.TransactionManager,
	logger *zap.Logger,
) InstanceStore {
	return &instanceStoreImpl{
		registry:     registry,
		instanceRepo: instanceRepo,
		consentGate:  consentGate,
		txManager:    txManager,
		logger:       logger,
	}
}

// CreateInstance implements InstanceStore.
func (s *instanceStoreImpl) CreateInstance(ctx context.Context, definitionCode, targetType string, targetID int64, createdByID, contextJSON string) (*entity.WorkflowInstance, error) {
	def, err := s.registry.GetDefinition(ctx, definitionCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.instanceRepo.GetByTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Instance already exists for target",
			zap.String("target_type", targetType),
			zap.Int64("target_id", targetID),
			zap.Int64("id", existing.ID))
		return existing, nil
	}

	initial := def.InitialState()
	instance := &entity.WorkflowInstance{
		DefinitionCode: definitionCode,
		TargetType:     targetType,
		TargetID:       targetID,
		CurrentState:   initial.Key,
		CreatedByID:    createdByID,
		Context:        contextJSON,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return err
		}
		// The initial state may already expose a consent-gated action.
		return s.consentGate.SeedForState(txCtx, instance, initial)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created workflow instance",
		zap.Int64("id", instance.ID),
		zap.String("definition_code", definitionCode),
		zap.String("initial_state", initial.Key))
	return instance, nil
}

// GetInstance implements InstanceStore.
func (s *instanceStoreImpl) GetInstance(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, id)
	}
	return instance, nil
}

// FindByTarget implements InstanceStore.
func (s *instanceStoreImpl) FindByTarget(ctx context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error) {
	return s.instanceRepo.GetByTarget(ctx, targetType, targetID)
}

var _ InstanceStore = (*instanceStoreImpl)(nil)
