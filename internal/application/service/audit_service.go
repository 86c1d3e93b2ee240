package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	"go.uber.org/zap"
)

// AuditTrail appends one record per transition and serves the history view.
type AuditTrail interface {
	// Record appends an audit entry. Pure append; only storage errors fail it.
	Record(ctx context.Context, instanceID int64, actorID string, action *entity.Action, resultState, comment string, payload map[string]interface{}) (*entity.AuditRecord, error)

	// History returns one page of the instance's transition history sorted
	// by creation time, plus the total record count.
	History(ctx context.Context, instanceID int64, page, pageSize int) ([]*entity.AuditRecord, int, error)
}

type auditTrailImpl struct {
	auditRepo port.AuditRepository
	logger    *zap.Logger
}

// NewAuditTrail creates a new AuditTrail.
func NewAuditTrail(auditRepo port.AuditRepository, logger *zap.Logger) AuditTrail {
	return &auditTrailImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record implements AuditTrail.
func (s *auditTrailImpl) Record(ctx context.Context, instanceID int64, actorID string, action *entity.Action, resultState, comment string, payload map[string]interface{}) (*entity.AuditRecord, error) {
	var payloadJSON string
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payloadJSON = string(raw)
	}

	record := &entity.AuditRecord{
		InstanceID:  instanceID,
		ActorID:     actorID,
		ActionKey:   action.Key,
		ActionLabel: action.Label,
		ResultState: resultState,
		Comment:     comment,
		Payload:     payloadJSON,
	}
	if err := s.auditRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// History implements AuditTrail.
func (s *auditTrailImpl) History(ctx context.Context, instanceID int64, page, pageSize int) ([]*entity.AuditRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	total, err := s.auditRepo.CountByInstance(ctx, instanceID)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.auditRepo.ListByInstance(ctx, instanceID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

var _ AuditTrail = (*auditTrailImpl)(nil)
