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

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new audit record
func (r *AuditRepository) Create(ctx context.Context, record *entity.AuditRecord) error {
	query := `
		INSERT INTO audit_records (
			instance_id, actor_id, action_key, action_label,
			result_state, comment, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		record.InstanceID,
		record.ActorID,
		record.ActionKey,
		record.ActionLabel,
		record.ResultState,
		record.Comment,
		record.Payload,
	)
	if err != nil {
		r.logger.Error("Failed to create audit record", zap.Error(err))
		return fmt.Errorf("%w: failed to create audit record: %v", domainwf.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %v", domainwf.ErrPersistence, err)
	}

	record.ID = id
	return nil
}

// ListByInstance retrieves one page of audit records sorted by creation time
func (r *AuditRepository) ListByInstance(ctx context.Context, instanceID int64, limit, offset int) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, instance_id, actor_id, action_key, action_label,
			result_state, comment, payload, created_at
		FROM audit_records
		WHERE instance_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, instanceID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list audit records: %v", domainwf.ErrPersistence, err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		var comment, payload sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.InstanceID,
			&rec.ActorID,
			&rec.ActionKey,
			&rec.ActionLabel,
			&rec.ResultState,
			&comment,
			&payload,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan audit record: %v", domainwf.ErrPersistence, err)
		}

		if comment.Valid {
			rec.Comment = comment.String
		}
		if payload.Valid {
			rec.Payload = payload.String
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountByInstance returns the total number of audit records for an instance
func (r *AuditRepository) CountByInstance(ctx context.Context, instanceID int64) (int, error) {
	query := `SELECT COUNT(*) FROM audit_records WHERE instance_id = ?`

	var count int
	err := pick(ctx, r.db).QueryRowContext(ctx, query, instanceID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count audit records", zap.Int64("instance_id", instanceID), zap.Error(err))
		return 0, fmt.Errorf("%w: failed to count audit records: %v", domainwf.ErrPersistence, err)
	}
	return count, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
