package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
)

// In-memory fakes for the persistence ports. They mimic the SQL repositories
// closely enough for service-level tests: (nil, nil) on missing rows and
// insert-or-ignore seeding semantics.

type fakeDefinitionRepo struct {
	mu   sync.Mutex
	defs map[string]*entity.WorkflowDefinition
}

func newFakeDefinitionRepo() *fakeDefinitionRepo {
	return &fakeDefinitionRepo{defs: make(map[string]*entity.WorkflowDefinition)}
}

func (r *fakeDefinitionRepo) Insert(_ context.Context, def *entity.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Code]; exists {
		return fmt.Errorf("%w: duplicate code %s", domainwf.ErrPersistence, def.Code)
	}
	copied := *def
	r.defs[def.Code] = &copied
	return nil
}

func (r *fakeDefinitionRepo) GetByCode(_ context.Context, code string) (*entity.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[code]
	if !ok {
		return nil, nil
	}
	copied := *def
	return &copied, nil
}

func (r *fakeDefinitionRepo) UpdateMetadata(_ context.Context, code, name, description, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[code]
	if !ok {
		return fmt.Errorf("%w: unknown code %s", domainwf.ErrPersistence, code)
	}
	def.Name = name
	def.Description = description
	def.Category = category
	return nil
}

func (r *fakeDefinitionRepo) ReplaceGraph(_ context.Context, def *entity.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Code]; !ok {
		return fmt.Errorf("%w: unknown code %s", domainwf.ErrPersistence, def.Code)
	}
	copied := *def
	r.defs[def.Code] = &copied
	return nil
}

type fakeInstanceRepo struct {
	mu        sync.Mutex
	nextID    int64
	instances map[int64]*entity.WorkflowInstance
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[int64]*entity.WorkflowInstance)}
}

func (r *fakeInstanceRepo) Create(_ context.Context, instance *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	instance.ID = r.nextID
	copied := *instance
	r.instances[instance.ID] = &copied
	return nil
}

func (r *fakeInstanceRepo) GetByID(_ context.Context, id int64) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return nil, nil
	}
	copied := *instance
	return &copied, nil
}

func (r *fakeInstanceRepo) GetByTarget(_ context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error) {
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

func (r *fakeInstanceRepo) UpdateCurrentState(_ context.Context, id int64, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: unknown instance %d", domainwf.ErrPersistence, id)
	}
	instance.CurrentState = state
	return nil
}

func (r *fakeInstanceRepo) DistinctCurrentStates(_ context.Context, definitionCode string) ([]string, error) {
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

type consentKey struct {
	instanceID  int64
	actionKey   string
	approverRef string
}

type fakeConsentRepo struct {
	mu      sync.Mutex
	records map[consentKey]*entity.ConsentRecord
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{records: make(map[consentKey]*entity.ConsentRecord)}
}

func (r *fakeConsentRepo) SeedPending(_ context.Context, records []*entity.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		key := consentKey{record.InstanceID, record.ActionKey, record.ApproverRef}
		if _, exists := r.records[key]; exists {
			continue
		}
		copied := *record
		r.records[key] = &copied
	}
	return nil
}

func (r *fakeConsentRepo) Upsert(_ context.Context, record *entity.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[consentKey{record.InstanceID, record.ActionKey, record.ApproverRef}] = &copied
	return nil
}

func (r *fakeConsentRepo) GetByInstanceAction(_ context.Context, instanceID int64, actionKey string) ([]*entity.ConsentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ConsentRecord
	for key, record := range r.records {
		if key.instanceID == instanceID && key.actionKey == actionKey {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []*entity.AuditRecord
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Create(_ context.Context, record *entity.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

func (r *fakeAuditRepo) ListByInstance(_ context.Context, instanceID int64, limit, offset int) ([]*entity.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matching []*entity.AuditRecord
	for _, record := range r.records {
		if record.InstanceID == instanceID {
			matching = append(matching, record)
		}
	}
	if offset >= len(matching) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}

func (r *fakeAuditRepo) CountByInstance(_ context.Context, instanceID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, record := range r.records {
		if record.InstanceID == instanceID {
			count++
		}
	}
	return count, nil
}

// fakeTxManager runs the callback directly; the fakes have no transactions.
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCompanyRepo struct {
	mu        sync.Mutex
	statuses  map[int64]string
	merged    map[int64]map[string]string
	companies map[int64]*entity.Company
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{
		statuses:  make(map[int64]string),
		merged:    make(map[int64]map[string]string),
		companies: make(map[int64]*entity.Company),
	}
}

func (r *fakeCompanyRepo) Create(_ context.Context, company *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	company.ID = int64(len(r.companies) + 1)
	r.companies[company.ID] = company
	return nil
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id int64) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.companies[id], nil
}

func (r *fakeCompanyRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	return nil
}

func (r *fakeCompanyRepo) MergeAttributes(_ context.Context, id int64, fields map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.merged[id] == nil {
		r.merged[id] = make(map[string]string)
	}
	for k, v := range fields {
		r.merged[id][k] = v
	}
	return nil
}

type fakeApplicationRepo struct {
	mu       sync.Mutex
	cascades map[int64]string
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{cascades: make(map[int64]string)}
}

func (r *fakeApplicationRepo) Create(_ context.Context, app *entity.RegistryApplication) error {
	return nil
}

func (r *fakeApplicationRepo) ListByCompany(_ context.Context, companyID int64) ([]*entity.RegistryApplication, error) {
	return nil, nil
}

func (r *fakeApplicationRepo) UpdateOpenStatusByCompany(_ context.Context, companyID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cascades[companyID] = status
	return nil
}
