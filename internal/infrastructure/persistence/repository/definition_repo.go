package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// DefinitionRepository implements port.DefinitionRepository. The state graph
// is stored as a JSON document alongside the metadata columns.
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates a new workflow definition.
func (r *DefinitionRepository) Insert(ctx context.Context, def *entity.WorkflowDefinition) error {
	graph, err := json.Marshal(def.States)
	if err != nil {
		return fmt.Errorf("failed to marshal definition graph: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (
			code, name, description, category, graph, shape_hash
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = pick(ctx, r.db).ExecContext(ctx, query,
		def.Code,
		def.Name,
		def.Description,
		def.Category,
		string(graph),
		def.ShapeHash,
	)
	if err != nil {
		r.logger.Error("Failed to insert definition", zap.String("code", def.Code), zap.Error(err))
		return fmt.Errorf("%w: failed to insert definition: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

// GetByCode retrieves a definition by code; returns (nil, nil) when absent.
func (r *DefinitionRepository) GetByCode(ctx context.Context, code string) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT code, name, description, category, graph, shape_hash, created_at, updated_at
		FROM workflow_definitions
		WHERE code = ?
	`

	var def entity.WorkflowDefinition
	var graph string

	err := pick(ctx, r.db).QueryRowContext(ctx, query, code).Scan(
		&def.Code,
		&def.Name,
		&def.Description,
		&def.Category,
		&graph,
		&def.ShapeHash,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get definition: %v", domainwf.ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(graph), &def.States); err != nil {
		r.logger.Error("Stored definition graph does not decode",
			zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("%w: stored graph for %s does not decode: %v", domainwf.ErrDefinitionCorrupt, code, err)
	}
	return &def, nil
}

// UpdateMetadata updates the descriptive columns without touching the graph.
func (r *DefinitionRepository) UpdateMetadata(ctx context.Context, code, name, description, category string) error {
	query := `
		UPDATE workflow_definitions
		SET name = ?, description = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		WHERE code = ?
	`
	_, err := pick(ctx, r.db).ExecContext(ctx, query, name, description, category, code)
	if err != nil {
		r.logger.Error("Failed to update definition metadata", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("%w: failed to update definition metadata: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

// ReplaceGraph swaps the state graph and shape hash of an existing definition.
func (r *DefinitionRepository) ReplaceGraph(ctx context.Context, def *entity.WorkflowDefinition) error {
	graph, err := json.Marshal(def.States)
	if err != nil {
		return fmt.Errorf("failed to marshal definition graph: %w", err)
	}

	query := `
		UPDATE workflow_definitions
		SET name = ?, description = ?, category = ?, graph = ?, shape_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE code = ?
	`
	_, err = pick(ctx, r.db).ExecContext(ctx, query,
		def.Name,
		def.Description,
		def.Category,
		string(graph),
		def.ShapeHash,
		def.Code,
	)
	if err != nil {
		r.logger.Error("Failed to replace definition graph", zap.String("code", def.Code), zap.Error(err))
		return fmt.Errorf("%w: failed to replace definition graph: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
