package port

import (
	"context"

	"github.com/opencorp/regflow/internal/domain/entity"
)

// DefinitionRepository defines persistence operations for WorkflowDefinition.
// Lookup methods return (nil, nil) when no row exists.
type DefinitionRepository interface {
	Insert(ctx context.Context, def *entity.WorkflowDefinition) error
	GetByCode(ctx context.Context, code string) (*entity.WorkflowDefinition, error)
	UpdateMetadata(ctx context.Context, code, name, description, category string) error
	ReplaceGraph(ctx context.Context, def *entity.WorkflowDefinition) error
}

// InstanceRepository defines persistence operations for WorkflowInstance.
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	GetByTarget(ctx context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error)
	UpdateCurrentState(ctx context.Context, id int64, state string) error
	DistinctCurrentStates(ctx context.Context, definitionCode string) ([]string, error)
}

// ConsentRepository defines persistence operations for ConsentRecord.
type ConsentRepository interface {
	// SeedPending inserts pending rows for required approvers, leaving any
	// existing decision untouched.
	SeedPending(ctx context.Context, records []*entity.ConsentRecord) error

	// Upsert records a decision, overriding an earlier one by the same approver.
	Upsert(ctx context.Context, record *entity.ConsentRecord) error

	GetByInstanceAction(ctx context.Context, instanceID int64, actionKey string) ([]*entity.ConsentRecord, error)
}

// AuditRepository defines persistence operations for AuditRecord. Records are
// append-only; there is no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, record *entity.AuditRecord) error
	ListByInstance(ctx context.Context, instanceID int64, limit, offset int) ([]*entity.AuditRecord, error)
	CountByInstance(ctx context.Context, instanceID int64) (int, error)
}

// CompanyRepository defines the denormalized company writes the effect
// synchronizer performs.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	MergeAttributes(ctx context.Context, id int64, fields map[string]string) error
}

// ApplicationRepository defines persistence operations for RegistryApplication.
type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.RegistryApplication) error
	ListByCompany(ctx context.Context, companyID int64) ([]*entity.RegistryApplication, error)
	UpdateOpenStatusByCompany(ctx context.Context, companyID int64, status string) error
}

// TransactionManager handles database transactions. The callback context
// carries the transaction; repositories join it transparently.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
