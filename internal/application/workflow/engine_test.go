package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/opencorp/regflow/internal/application/service"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
)

// Hand-written fakes for the engine's collaborators. The engine only needs
// lookup and write behavior, not real persistence.

type stubRegistry struct {
	defs map[string]*entity.WorkflowDefinition
}

func newStubRegistry(defs ...*entity.WorkflowDefinition) *stubRegistry {
	m := make(map[string]*entity.WorkflowDefinition, len(defs))
	for _, def := range defs {
		m[def.Code] = def
	}
	return &stubRegistry{defs: m}
}

func (r *stubRegistry) EnsureDefinition(_ context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error) {
	r.defs[def.Code] = def
	return def, nil
}

func (r *stubRegistry) GetDefinition(_ context.Context, code string) (*entity.WorkflowDefinition, error) {
	def, ok := r.defs[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionNotFound, code)
	}
	return def, nil
}

type memInstanceRepo struct {
	mu        sync.Mutex
	nextID    int64
	instances map[int64]*entity.WorkflowInstance
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{instances: make(map[int64]*entity.WorkflowInstance)}
}

func (r *memInstanceRepo) Create(_ context.Context, instance *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	instance.ID = r.nextID
	copied := *instance
	r.instances[instance.ID] = &copied
	return nil
}

func (r *memInstanceRepo) GetByID(_ context.Context, id int64) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return nil, nil
	}
	copied := *instance
	return &copied, nil
}

func (r *memInstanceRepo) GetByTarget(_ context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, instance := range r.instances {
		if instance.TargetType == targetType && instance.TargetID == targetID {
			copied := *instance
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memInstanceRepo) UpdateCurrentState(_ context.Context, id int64, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: unknown instance %d", domainwf.ErrPersistence, id)
	}
	instance.CurrentState = state
	return nil
}

func (r *memInstanceRepo) DistinctCurrentStates(_ context.Context, definitionCode string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var states []string
	for _, instance := range r.instances {
		if instance.DefinitionCode == definitionCode && !seen[instance.CurrentState] {
			seen[instance.CurrentState] = true
			states = append(states, instance.CurrentState)
		}
	}
	return states, nil
}

// stubGate returns a scripted status per action key; ungated actions never
// reach it. It records which states were seeded.
type stubGate struct {
	statuses map[string]*service.ConsentStatus
	seeded   []string
}

func newStubGate() *stubGate {
	return &stubGate{statuses: make(map[string]*service.ConsentStatus)}
}

func (g *stubGate) RequiredApprovers(context.Context, int64, string) ([]entity.ApproverStake, error) {
	return nil, nil
}

func (g *stubGate) RecordDecision(context.Context, int64, string, string, string, string) error {
	return nil
}

func (g *stubGate) Evaluate(_ context.Context, _ int64, actionKey string) (*service.ConsentStatus, error) {
	return g.statusFor(actionKey), nil
}

func (g *stubGate) EvaluateAction(_ context.Context, _ *entity.WorkflowInstance, action *entity.Action) (*service.ConsentStatus, error) {
	return g.statusFor(action.Key), nil
}

func (g *stubGate) SeedForState(_ context.Context, _ *entity.WorkflowInstance, state *entity.State) error {
	g.seeded = append(g.seeded, state.Key)
	return nil
}

func (g *stubGate) statusFor(actionKey string) *service.ConsentStatus {
	if status, ok := g.statuses[actionKey]; ok {
		return status
	}
	return &service.ConsentStatus{Satisfied: true}
}

type appliedEffect struct {
	targetType string
	targetID   int64
	effect     *entity.BusinessEffect
}

type recordingEffects struct {
	applied []appliedEffect
}

func (e *recordingEffects) Apply(_ context.Context, targetType string, targetID int64, effect *entity.BusinessEffect) error {
	e.applied = append(e.applied, appliedEffect{targetType, targetID, effect})
	return nil
}

type recordingTrail struct {
	records []*entity.AuditRecord
}

func (t *recordingTrail) Record(_ context.Context, instanceID int64, actorID string, action *entity.Action, resultState, comment string, _ map[string]interface{}) (*entity.AuditRecord, error) {
	record := &entity.AuditRecord{
		ID:          int64(len(t.records) + 1),
		InstanceID:  instanceID,
		ActorID:     actorID,
		ActionKey:   action.Key,
		ActionLabel: action.Label,
		ResultState: resultState,
		Comment:     comment,
	}
	t.records = append(t.records, record)
	return record, nil
}

func (t *recordingTrail) History(context.Context, int64, int, int) ([]*entity.AuditRecord, int, error) {
	return t.records, len(t.records), nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// engineFixture wires the engine over the fakes with one instance in "draft".
type engineFixture struct {
	engine   Engine
	repo     *memInstanceRepo
	gate     *stubGate
	effects  *recordingEffects
	trail    *recordingTrail
	instance *entity.WorkflowInstance
}

func newEngineFixture(t *testing.T, def *entity.WorkflowDefinition, currentState string) *engineFixture {
	t.Helper()

	repo := newMemInstanceRepo()
	gate := newStubGate()
	effects := &recordingEffects{}
	trail := &recordingTrail{}

	instance := &entity.WorkflowInstance{
		DefinitionCode: def.Code,
		TargetType:     entity.TargetTypeCompany,
		TargetID:       11,
		CurrentState:   currentState,
		CreatedByID:    "user-1",
	}
	if err := repo.Create(context.Background(), instance); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	engine := NewEngine(newStubRegistry(def), repo, gate, effects, trail, passthroughTx{}, zap.NewNop())
	return &engineFixture{engine: engine, repo: repo, gate: gate, effects: effects, trail: trail, instance: instance}
}

func reviewDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		Code: "corp.review",
		Name: "Review process",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit", To: "review"},
				},
			},
			{
				Key: "review", Label: "Review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{
					EntityStatus:      entity.CompanyStatusActive,
					ApplicationStatus: entity.ApplicationStatusApproved,
				},
			},
			{Key: "rejected", Label: "Rejected", Final: true},
		},
	}
}

func TestPerformActionHappyPath(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "draft")
	ctx := context.Background()

	result, err := f.engine.PerformAction(ctx, f.instance.ID, "submit", Actor{ID: "user-1"}, "please review", nil)
	if err != nil {
		t.Fatalf("PerformAction() error = %v", err)
	}
	if result.NextState.Key != "review" {
		t.Errorf("NextState = %s, want review", result.NextState.Key)
	}

	stored, _ := f.repo.GetByID(ctx, f.instance.ID)
	if stored.CurrentState != "review" {
		t.Errorf("persisted state = %s, want review", stored.CurrentState)
	}
	if len(f.trail.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.trail.records))
	}
	if got := f.trail.records[0]; got.ActionKey != "submit" || got.ResultState != "review" || got.Comment != "please review" {
		t.Errorf("audit record = %+v", got)
	}
	// The destination state has no business effect.
	if len(f.effects.applied) != 0 {
		t.Errorf("effects applied = %d, want 0", len(f.effects.applied))
	}
	// Consent is re-seeded for the destination state.
	if len(f.gate.seeded) != 1 || f.gate.seeded[0] != "review" {
		t.Errorf("seeded states = %v, want [review]", f.gate.seeded)
	}
}

func TestPerformActionAppliesBusinessEffect(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "review")
	actor := Actor{ID: "official-1", Roles: []string{entity.RoleRegistryAuthorityLegal}}

	result, err := f.engine.PerformAction(context.Background(), f.instance.ID, "approve", actor, "", nil)
	if err != nil {
		t.Fatalf("PerformAction() error = %v", err)
	}
	if !result.NextState.Final {
		t.Error("approved should be final")
	}
	if len(f.effects.applied) != 1 {
		t.Fatalf("effects applied = %d, want 1", len(f.effects.applied))
	}
	applied := f.effects.applied[0]
	if applied.targetType != entity.TargetTypeCompany || applied.targetID != 11 {
		t.Errorf("effect target = %s/%d", applied.targetType, applied.targetID)
	}
	if applied.effect.EntityStatus != entity.CompanyStatusActive {
		t.Errorf("effect status = %s, want ACTIVE", applied.effect.EntityStatus)
	}
}

func TestPerformActionInstanceNotFound(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "draft")

	_, err := f.engine.PerformAction(context.Background(), 999, "submit", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrInstanceNotFound) {
		t.Errorf("error = %v, want ErrInstanceNotFound", err)
	}
}

func TestPerformActionUnknownAction(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "draft")

	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "approve", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrActionNotAllowed) {
		t.Errorf("error = %v, want ErrActionNotAllowed", err)
	}
}

func TestPerformActionTerminalStateLocked(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "approved")

	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "submit", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrInstanceTerminated) {
		t.Errorf("error = %v, want ErrInstanceTerminated", err)
	}
}

func TestPerformActionRoleEnforcement(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "review")

	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "approve",
		Actor{ID: "user-1", Roles: []string{entity.RoleRegistryClerk}}, "", nil)
	if !errors.Is(err, domainwf.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}

	// The failed attempt must not move the instance or leave a trace.
	stored, _ := f.repo.GetByID(context.Background(), f.instance.ID)
	if stored.CurrentState != "review" {
		t.Errorf("state after forbidden attempt = %s, want review", stored.CurrentState)
	}
	if len(f.trail.records) != 0 {
		t.Error("a failed transition must not write an audit record")
	}
}

func TestPerformActionInvalidInstanceState(t *testing.T) {
	f := newEngineFixture(t, reviewDefinition(), "ghost")

	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "submit", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrInvalidInstanceState) {
		t.Errorf("error = %v, want ErrInvalidInstanceState", err)
	}
}

func TestPerformActionDanglingTarget(t *testing.T) {
	def := reviewDefinition()
	def.States[0].Actions[0].To = "missing"
	f := newEngineFixture(t, def, "draft")

	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "submit", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrDefinitionCorrupt) {
		t.Errorf("error = %v, want ErrDefinitionCorrupt", err)
	}
}

func TestPerformActionConsentPending(t *testing.T) {
	def := reviewDefinition()
	def.States[1].Actions[0].RequiresConsent = &entity.ConsentRule{
		Mode:         entity.ConsentModeUnanimous,
		ApproverKind: entity.ApproverKindShareholder,
	}
	f := newEngineFixture(t, def, "review")
	f.gate.statuses["approve"] = &service.ConsentStatus{
		Outstanding: []domainwf.OutstandingApprover{{Kind: "shareholder", Ref: "SH-A"}},
	}

	actor := Actor{ID: "official-1", Roles: []string{entity.RoleRegistryAuthorityLegal}}
	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "approve", actor, "", nil)
	if !errors.Is(err, domainwf.ErrConsentPending) {
		t.Fatalf("error = %v, want ErrConsentPending", err)
	}
	var pending *domainwf.ConsentPendingError
	if !errors.As(err, &pending) {
		t.Fatal("error should carry the outstanding approver set")
	}
	if len(pending.Outstanding) != 1 {
		t.Errorf("Outstanding = %v", pending.Outstanding)
	}

	stored, _ := f.repo.GetByID(context.Background(), f.instance.ID)
	if stored.CurrentState != "review" {
		t.Errorf("state after pending consent = %s, want review", stored.CurrentState)
	}
}

func TestPerformActionConsentVetoed(t *testing.T) {
	def := reviewDefinition()
	def.States[1].Actions[0].RequiresConsent = &entity.ConsentRule{
		Mode:         entity.ConsentModeUnanimous,
		ApproverKind: entity.ApproverKindShareholder,
	}
	f := newEngineFixture(t, def, "review")
	f.gate.statuses["approve"] = &service.ConsentStatus{Vetoed: true}

	actor := Actor{ID: "official-1", Roles: []string{entity.RoleRegistryAuthorityLegal}}
	_, err := f.engine.PerformAction(context.Background(), f.instance.ID, "approve", actor, "", nil)
	if !errors.Is(err, domainwf.ErrConsentVetoed) {
		t.Errorf("error = %v, want ErrConsentVetoed", err)
	}
}

func TestPerformActionRetryAfterTransitionFails(t *testing.T) {
	// Two submissions race; the second re-reads the advanced state and finds
	// no "submit" action there anymore.
	f := newEngineFixture(t, reviewDefinition(), "draft")
	ctx := context.Background()

	if _, err := f.engine.PerformAction(ctx, f.instance.ID, "submit", Actor{ID: "user-1"}, "", nil); err != nil {
		t.Fatalf("first PerformAction() error = %v", err)
	}
	_, err := f.engine.PerformAction(ctx, f.instance.ID, "submit", Actor{ID: "user-1"}, "", nil)
	if !errors.Is(err, domainwf.ErrActionNotAllowed) {
		t.Errorf("retry error = %v, want ErrActionNotAllowed", err)
	}
	if len(f.trail.records) != 1 {
		t.Errorf("audit records = %d, want exactly 1", len(f.trail.records))
	}
}

func TestActorHasAnyRole(t *testing.T) {
	actor := Actor{ID: "u", Roles: []string{entity.RoleRegistryClerk, entity.RoleNotary}}

	if !actor.HasAnyRole([]string{entity.RoleNotary}) {
		t.Error("actor holds NOTARY")
	}
	if actor.HasAnyRole([]string{entity.RoleRegistryAuthorityLegal}) {
		t.Error("actor does not hold REGISTRY_AUTHORITY_LEGAL")
	}
	if actor.HasAnyRole(nil) {
		t.Error("empty required set matches nothing")
	}
	if (Actor{ID: "u"}).HasAnyRole([]string{entity.RoleNotary}) {
		t.Error("actor with no roles matches nothing")
	}
}
