package service

import (
	"context"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	"go.uber.org/zap"
)

// CompanyEffectHandler applies business effects to companies: the company's
// denormalized status, its attribute document, and a cascaded status on all
// open applications of the company. All writes join the ambient transaction.
type CompanyEffectHandler struct {
	companyRepo     port.CompanyRepository
	applicationRepo port.ApplicationRepository
	logger          *zap.Logger
}

// NewCompanyEffectHandler creates the effect handler for the "company" target
// type.
func NewCompanyEffectHandler(
	companyRepo port.CompanyRepository,
	applicationRepo port.ApplicationRepository,
	logger *zap.Logger,
) *CompanyEffectHandler {
	return &CompanyEffectHandler{
		companyRepo:     companyRepo,
		applicationRepo: applicationRepo,
		logger:          logger,
	}
}

// Apply implements port.EffectHandler.
func (h *CompanyEffectHandler) Apply(ctx context.Context, targetID int64, effect *entity.BusinessEffect) error {
	if effect == nil {
		return nil
	}

	if effect.EntityStatus != "" {
		if err := h.companyRepo.UpdateStatus(ctx, targetID, effect.EntityStatus); err != nil {
			return fmt.Errorf("failed to update company status: %w", err)
		}
	}
	if len(effect.Fields) > 0 {
		if err := h.companyRepo.MergeAttributes(ctx, targetID, effect.Fields); err != nil {
			return fmt.Errorf("failed to merge company attributes: %w", err)
		}
	}
	if effect.ApplicationStatus != "" {
		if err := h.applicationRepo.UpdateOpenStatusByCompany(ctx, targetID, effect.ApplicationStatus); err != nil {
			return fmt.Errorf("failed to cascade application status: %w", err)
		}
	}

	h.logger.Debug("Applied business effect",
		zap.Int64("company_id", targetID),
		zap.String("entity_status", effect.EntityStatus),
		zap.String("application_status", effect.ApplicationStatus))
	return nil
}

var _ port.EffectHandler = (*CompanyEffectHandler)(nil)
