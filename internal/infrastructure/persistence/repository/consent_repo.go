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

// ConsentRepository implements port.ConsentRepository
type ConsentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *sql.DB, logger *zap.Logger) port.ConsentRepository {
	return &ConsentRepository{
		db:     db,
		logger: logger,
	}
}

// SeedPending inserts pending rows for required approvers. Rows that already
// exist, decided or not, are left untouched.
func (r *ConsentRepository) SeedPending(ctx context.Context, records []*entity.ConsentRecord) error {
	query := `
		INSERT OR IGNORE INTO consent_records (
			instance_id, action_key, approver_kind, approver_ref, decision, weight
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	ex := pick(ctx, r.db)
	for _, rec := range records {
		_, err := ex.ExecContext(ctx, query,
			rec.InstanceID,
			rec.ActionKey,
			rec.ApproverKind,
			rec.ApproverRef,
			rec.Decision,
			rec.Weight,
		)
		if err != nil {
			r.logger.Error("Failed to seed consent record",
				zap.Int64("instance_id", rec.InstanceID),
				zap.String("action_key", rec.ActionKey),
				zap.Error(err))
			return fmt.Errorf("%w: failed to seed consent record: %v", domainwf.ErrPersistence, err)
		}
	}
	return nil
}

// Upsert records a decision, replacing any earlier decision by the same
// approver on the same action.
func (r *ConsentRepository) Upsert(ctx context.Context, record *entity.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (
			instance_id, action_key, approver_kind, approver_ref,
			decision, weight, comment, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id, action_key, approver_ref) DO UPDATE SET
			decision = excluded.decision,
			weight = excluded.weight,
			comment = excluded.comment,
			decided_at = excluded.decided_at,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := pick(ctx, r.db).ExecContext(ctx, query,
		record.InstanceID,
		record.ActionKey,
		record.ApproverKind,
		record.ApproverRef,
		record.Decision,
		record.Weight,
		record.Comment,
		record.DecidedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert consent record",
			zap.Int64("instance_id", record.InstanceID),
			zap.String("action_key", record.ActionKey),
			zap.Error(err))
		return fmt.Errorf("%w: failed to upsert consent record: %v", domainwf.ErrPersistence, err)
	}
	return nil
}

// GetByInstanceAction retrieves all consent records for one gated action.
func (r *ConsentRepository) GetByInstanceAction(ctx context.Context, instanceID int64, actionKey string) ([]*entity.ConsentRecord, error) {
	query := `
		SELECT id, instance_id, action_key, approver_kind, approver_ref,
			decision, weight, comment, decided_at, created_at, updated_at
		FROM consent_records
		WHERE instance_id = ? AND action_key = ?
		ORDER BY id ASC
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, instanceID, actionKey)
	if err != nil {
		r.logger.Error("Failed to get consent records",
			zap.Int64("instance_id", instanceID),
			zap.String("action_key", actionKey),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get consent records: %v", domainwf.ErrPersistence, err)
	}
	defer rows.Close()

	var records []*entity.ConsentRecord
	for rows.Next() {
		var rec entity.ConsentRecord
		var comment sql.NullString
		var decidedAt sql.NullTime

		err := rows.Scan(
			&rec.ID,
			&rec.InstanceID,
			&rec.ActionKey,
			&rec.ApproverKind,
			&rec.ApproverRef,
			&rec.Decision,
			&rec.Weight,
			&comment,
			&decidedAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan consent record: %v", domainwf.ErrPersistence, err)
		}

		if comment.Valid {
			rec.Comment = comment.String
		}
		if decidedAt.Valid {
			rec.DecidedAt = &decidedAt.Time
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

var _ port.ConsentRepository = (*ConsentRepository)(nil)
