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

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company row
func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	query := `
		INSERT INTO companies (reg_number, name, status, attributes)
		VALUES (?, ?, ?, ?)
	`

	attributes := company.Attributes
	if attributes == "" {
		attributes = "{}"
	}

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		company.RegNumber,
		company.Name,
		company.Status,
		attributes,
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.Error(err))
		return fmt.Errorf("%w: failed to create company: %v", domainwf.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", domainwf.ErrPersistence, err)
	}

	company.ID = id
	return nil
}

// GetByID retrieves a company by ID; returns (nil, nil) when absent
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	query := `
		SELECT id, reg_number, name, status, attributes, created_at, updated_at
		FROM companies
		WHERE id = ?
	`

	var company entity.Company
	err := pick(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.RegNumber,
		&company.Name,
		&company.Status,
		&company.Attributes,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get company: %v", domainwf.ErrPersistence, err)
	}
	return &company, nil
}

// UpdateStatus writes the denormalized company status
func (r *CompanyRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE companies SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := pick(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update company status",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("%w: failed to update company status: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

// MergeAttributes merges the given fields into the company's attribute
// document. Read-modify-write; safe because it runs inside the transition's
// transaction.
func (r *CompanyRepository) MergeAttributes(ctx context.Context, id int64, fields map[string]string) error {
	ex := pick(ctx, r.db)

	var raw string
	err := ex.QueryRowContext(ctx, `SELECT attributes FROM companies WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		r.logger.Error("Failed to read company attributes", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("%w: failed to read company attributes: %v", domainwf.ErrPersistence, err)
	}

	attrs := make(map[string]string)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return fmt.Errorf("stored attributes for company %d do not decode: %w", id, err)
		}
	}
	for k, v := range fields {
		attrs[k] = v
	}
	merged, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal company attributes: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`UPDATE companies SET attributes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(merged), id)
	if err != nil {
		r.logger.Error("Failed to write company attributes", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("%w: failed to write company attributes: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)
