package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, definition_code, target_type, target_id, current_state,
	created_by_id, context, created_at, updated_at
`

// Create creates a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (
			definition_code, target_type, target_id, current_state,
			created_by_id, context
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		instance.DefinitionCode,
		instance.TargetType,
		instance.TargetID,
		instance.CurrentState,
		instance.CreatedByID,
		instance.Context,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("%w: failed to create instance: %v", domainwf.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", domainwf.ErrPersistence, err)
	}

	instance.ID = id
	return nil
}

func (r *InstanceRepository) scanInstance(row *sql.Row) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	err := row.Scan(
		&instance.ID,
		&instance.DefinitionCode,
		&instance.TargetType,
		&instance.TargetID,
		&instance.CurrentState,
		&instance.CreatedByID,
		&instance.Context,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// GetByID retrieves a workflow instance by ID; returns (nil, nil) when absent
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`

	instance, err := r.scanInstance(pick(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get instance: %v", domainwf.ErrPersistence, err)
	}
	return instance, nil
}

// GetByTarget retrieves the instance bound to a target; (nil, nil) when absent
func (r *InstanceRepository) GetByTarget(ctx context.Context, targetType string, targetID int64) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE target_type = ? AND target_id = ?`

	instance, err := r.scanInstance(pick(ctx, r.db).QueryRowContext(ctx, query, targetType, targetID))
	if err != nil {
		r.logger.Error("Failed to get instance by target",
			zap.String("target_type", targetType),
			zap.Int64("target_id", targetID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get instance: %v", domainwf.ErrPersistence, err)
	}
	return instance, nil
}

// UpdateCurrentState advances the instance to a new state key
func (r *InstanceRepository) UpdateCurrentState(ctx context.Context, id int64, state string) error {
	query := `UPDATE workflow_instances SET current_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := pick(ctx, r.db).ExecContext(ctx, query, state, id)
	if err != nil {
		r.logger.Error("Failed to update current state",
			zap.Int64("id", id), zap.String("state", state), zap.Error(err))
		return fmt.Errorf("%w: failed to update current state: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

// DistinctCurrentStates returns the distinct state keys currently held by
// instances of a definition. Used by the registry's conflict detection.
func (r *InstanceRepository) DistinctCurrentStates(ctx context.Context, definitionCode string) ([]string, error) {
	query := `SELECT DISTINCT current_state FROM workflow_instances WHERE definition_code = ?`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, definitionCode)
	if err != nil {
		r.logger.Error("Failed to list current states", zap.String("definition_code", definitionCode), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list current states: %v", domainwf.ErrPersistence, err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("%w: failed to scan state: %v", domainwf.ErrPersistence, err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
