package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
)

func storeFixture(t *testing.T) (InstanceStore, *fakeConsentRepo) {
	t.Helper()
	logger := zap.NewNop()

	defRepo := newFakeDefinitionRepo()
	instRepo := newFakeInstanceRepo()
	consentRepo := newFakeConsentRepo()
	registry := NewDefinitionRegistry(defRepo, instRepo, time.Minute, logger)
	gate := NewConsentGate(registry, instRepo, consentRepo, logger)

	def := &entity.WorkflowDefinition{
		Code: "corp.store",
		Name: "Store test process",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{
						Key: "submit", Label: "Submit", To: "done",
						RequiresConsent: &entity.ConsentRule{
							Mode:         entity.ConsentModeUnanimous,
							ApproverKind: entity.ApproverKindShareholder,
						},
					},
				},
			},
			{Key: "done", Label: "Done", Final: true},
		},
	}
	if _, err := registry.EnsureDefinition(context.Background(), def); err != nil {
		t.Fatalf("EnsureDefinition() error = %v", err)
	}

	return NewInstanceStore(registry, instRepo, gate, fakeTxManager{}, logger), consentRepo
}

func TestCreateInstanceStartsInFirstDeclaredState(t *testing.T) {
	store, consentRepo := storeFixture(t)
	ctx := context.Background()

	contextJSON := `{"approvers":{"shareholder":[{"ref":"SH-A","weight":1}]}}`
	instance, err := store.CreateInstance(ctx, "corp.store", entity.TargetTypeCompany, 7, "user-1", contextJSON)
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if instance.ID == 0 {
		t.Error("CreateInstance() did not assign an ID")
	}
	if instance.CurrentState != "draft" {
		t.Errorf("CurrentState = %s, want draft", instance.CurrentState)
	}

	// Consent is seeded for the initial state's gated action.
	records, err := consentRepo.GetByInstanceAction(ctx, instance.ID, "submit")
	if err != nil {
		t.Fatalf("GetByInstanceAction() error = %v", err)
	}
	if len(records) != 1 || records[0].Decision != entity.DecisionPending {
		t.Errorf("seeded records = %v, want one pending record", records)
	}
}

func TestCreateInstanceIsIdempotentPerTarget(t *testing.T) {
	store, _ := storeFixture(t)
	ctx := context.Background()

	first, err := store.CreateInstance(ctx, "corp.store", entity.TargetTypeCompany, 7, "user-1", "")
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	second, err := store.CreateInstance(ctx, "corp.store", entity.TargetTypeCompany, 7, "user-2", "")
	if err != nil {
		t.Fatalf("second CreateInstance() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second create returned instance %d, want existing %d", second.ID, first.ID)
	}
}

func TestCreateInstanceUnknownDefinition(t *testing.T) {
	store, _ := storeFixture(t)

	_, err := store.CreateInstance(context.Background(), "corp.unknown", entity.TargetTypeCompany, 7, "user-1", "")
	if !errors.Is(err, domainwf.ErrDefinitionNotFound) {
		t.Errorf("CreateInstance() error = %v, want ErrDefinitionNotFound", err)
	}
}

func TestGetInstanceNotFound(t *testing.T) {
	store, _ := storeFixture(t)

	_, err := store.GetInstance(context.Background(), 99)
	if !errors.Is(err, domainwf.ErrInstanceNotFound) {
		t.Errorf("GetInstance() error = %v, want ErrInstanceNotFound", err)
	}
}

func TestFindByTargetReturnsNilWhenAbsent(t *testing.T) {
	store, _ := storeFixture(t)

	instance, err := store.FindByTarget(context.Background(), entity.TargetTypeCompany, 42)
	if err != nil {
		t.Fatalf("FindByTarget() error = %v", err)
	}
	if instance != nil {
		t.Errorf("FindByTarget() = %v, want nil", instance)
	}
}
