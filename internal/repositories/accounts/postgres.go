package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/dbx"
	"github.com/chunkvault/chunkvault/internal/models"
)

// PostgresRepository implements the account pool over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListEligible(ctx context.Context) ([]*models.StorageAccount, error) {
	query := `
		SELECT id, credential_ref, quota_used, quota_limit, eligible
		FROM storage_accounts
		WHERE eligible
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.StorageAccount
	for rows.Next() {
		var item models.StorageAccount
		if err := rows.Scan(&item.ID, &item.CredentialRef, &item.QuotaUsed, &item.QuotaLimit, &item.Eligible); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StorageAccount, error) {
	query := `
		SELECT id, credential_ref, quota_used, quota_limit, eligible
		FROM storage_accounts
		WHERE id = $1
	`
	var item models.StorageAccount
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.CredentialRef, &item.QuotaUsed, &item.QuotaLimit, &item.Eligible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) UpdateQuota(ctx context.Context, id string, used, limit int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE storage_accounts SET quota_used = $1, quota_limit = $2 WHERE id = $3`,
		used, limit, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
