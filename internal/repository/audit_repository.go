package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/pawn-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO loan_audit (id, loan_id, transaction_number, operation, note, amount, operator_id, operator_name, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.LoanID,
		entry.TransactionNumber,
		entry.Operation,
		entry.Note,
		entry.Amount,
		entry.OperatorID,
		entry.OperatorName,
		entry.Timestamp,
	)
	return err
}

func (r *auditRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, loan_id, transaction_number, operation, note, amount, operator_id, operator_name, timestamp
		FROM loan_audit
		WHERE loan_id = $1
		ORDER BY timestamp
	`

	var entries []*domain.AuditEntry
	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &entries, query, loanID); err != nil {
		return nil, err
	}
	return entries, nil
}
