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

// ApplicationRepository implements port.ApplicationRepository
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) port.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new registry application row
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.RegistryApplication) error {
	query := `
		INSERT INTO registry_applications (company_id, kind, status)
		VALUES (?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query, app.CompanyID, app.Kind, app.Status)
	if err != nil {
		r.logger.Error("Failed to create application", zap.Error(err))
		return fmt.Errorf("%w: failed to create application: %v", domainwf.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", domainwf.ErrPersistence, err)
	}

	app.ID = id
	return nil
}

// ListByCompany retrieves all applications for a company
func (r *ApplicationRepository) ListByCompany(ctx context.Context, companyID int64) ([]*entity.RegistryApplication, error) {
	query := `
		SELECT id, company_id, kind, status, created_at, updated_at
		FROM registry_applications
		WHERE company_id = ?
		ORDER BY id ASC
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list applications", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list applications: %v", domainwf.ErrPersistence, err)
	}
	defer rows.Close()

	var apps []*entity.RegistryApplication
	for rows.Next() {
		var app entity.RegistryApplication
		err := rows.Scan(
			&app.ID,
			&app.CompanyID,
			&app.Kind,
			&app.Status,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan application: %v", domainwf.ErrPersistence, err)
		}
		apps = append(apps, &app)
	}
	return apps, rows.Err()
}

// UpdateOpenStatusByCompany cascades a status onto every open application of
// the company. Applications already closed keep their status.
func (r *ApplicationRepository) UpdateOpenStatusByCompany(ctx context.Context, companyID int64, status string) error {
	query := `
		UPDATE registry_applications
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE company_id = ? AND status = ?
	`

	_, err := pick(ctx, r.db).ExecContext(ctx, query, status, companyID, entity.ApplicationStatusOpen)
	if err != nil {
		r.logger.Error("Failed to cascade application status",
			zap.Int64("company_id", companyID), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("%w: failed to cascade application status: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

var _ port.ApplicationRepository = (*ApplicationRepository)(nil)
