package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/opencorp/regflow/internal/domain/entity"
)

func TestEffectRegistryDuplicateRegistrationPanics(t *testing.T) {
	registry := NewEffectRegistry(zap.NewNop())
	handler := NewCompanyEffectHandler(newFakeCompanyRepo(), newFakeApplicationRepo(), zap.NewNop())
	registry.Register(entity.TargetTypeCompany, handler)

	defer func() {
		if recover() == nil {
			t.Error("registering the same target type twice should panic")
		}
	}()
	registry.Register(entity.TargetTypeCompany, handler)
}

func TestEffectRegistryUnknownTargetType(t *testing.T) {
	registry := NewEffectRegistry(zap.NewNop())

	err := registry.Apply(context.Background(), "vessel", 1, &entity.BusinessEffect{EntityStatus: "ACTIVE"})
	if err == nil {
		t.Error("Apply() should fail for an unregistered target type")
	}
}

func TestCompanyEffectHandlerApply(t *testing.T) {
	companyRepo := newFakeCompanyRepo()
	applicationRepo := newFakeApplicationRepo()
	handler := NewCompanyEffectHandler(companyRepo, applicationRepo, zap.NewNop())
	ctx := context.Background()

	effect := &entity.BusinessEffect{
		EntityStatus:      entity.CompanyStatusActive,
		ApplicationStatus: entity.ApplicationStatusApproved,
		Fields:            map[string]string{"name_change": "confirmed"},
	}
	if err := handler.Apply(ctx, 5, effect); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if companyRepo.statuses[5] != entity.CompanyStatusActive {
		t.Errorf("company status = %s, want ACTIVE", companyRepo.statuses[5])
	}
	if companyRepo.merged[5]["name_change"] != "confirmed" {
		t.Errorf("attributes not merged: %v", companyRepo.merged[5])
	}
	if applicationRepo.cascades[5] != entity.ApplicationStatusApproved {
		t.Errorf("application cascade = %s, want APPROVED", applicationRepo.cascades[5])
	}
}

func TestCompanyEffectHandlerPartialEffect(t *testing.T) {
	companyRepo := newFakeCompanyRepo()
	applicationRepo := newFakeApplicationRepo()
	handler := NewCompanyEffectHandler(companyRepo, applicationRepo, zap.NewNop())
	ctx := context.Background()

	// Only the application status is set; the company row stays untouched.
	effect := &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected}
	if err := handler.Apply(ctx, 5, effect); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, touched := companyRepo.statuses[5]; touched {
		t.Error("an effect without entity_status must not write the company status")
	}
	if applicationRepo.cascades[5] != entity.ApplicationStatusRejected {
		t.Errorf("application cascade = %s, want REJECTED", applicationRepo.cascades[5])
	}

	if err := handler.Apply(ctx, 5, nil); err != nil {
		t.Errorf("Apply(nil) error = %v, want nil", err)
	}
}
