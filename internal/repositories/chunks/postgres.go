package chunks

import (
	"context"
	"fmt"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/dbx"
	"github.com/chunkvault/chunkvault/internal/models"
)

// PostgresRepository implements the chunk registry over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Register inserts one chunk record. ON CONFLICT DO NOTHING plus a
// rows-affected check turns a duplicate (master uuid, sequence) pair into
// common.ErrRegistryIntegrity without a read-then-write race.
func (r *PostgresRepository) Register(ctx context.Context, record *models.ChunkRecord) error {
	query := `
		INSERT INTO chunks (id, master_file_uuid, master_file_name, sequence_number,
			holder_account_id, backend_object_id, size_bytes, encryption_key, encryption_iv)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (master_file_uuid, sequence_number) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.MasterFileUUID, record.MasterFileName, record.SequenceNumber,
		record.HolderAccountID, record.BackendObjectID, record.SizeBytes,
		record.EncryptionKey, record.EncryptionIV)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: duplicate sequence %d for master %s",
			common.ErrRegistryIntegrity, record.SequenceNumber, record.MasterFileUUID)
	}
	return nil
}

func (r *PostgresRepository) ListByMaster(ctx context.Context, masterFileUUID string) ([]*models.ChunkRecord, error) {
	query := `
		SELECT id, master_file_uuid, master_file_name, sequence_number,
			holder_account_id, backend_object_id, size_bytes, encryption_key, encryption_iv
		FROM chunks
		WHERE master_file_uuid = $1
		ORDER BY sequence_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, masterFileUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select chunks: %w", err)
	}
	defer rows.Close()

	var result []*models.ChunkRecord
	for rows.Next() {
		var item models.ChunkRecord
		if err := rows.Scan(&item.ID, &item.MasterFileUUID, &item.MasterFileName,
			&item.SequenceNumber, &item.HolderAccountID, &item.BackendObjectID,
			&item.SizeBytes, &item.EncryptionKey, &item.EncryptionIV); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListDistinctMasters(ctx context.Context) ([]*models.MasterFile, error) {
	query := `
		SELECT DISTINCT master_file_uuid, master_file_name
		FROM chunks
		ORDER BY master_file_name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select masters: %w", err)
	}
	defer rows.Close()

	var result []*models.MasterFile
	for rows.Next() {
		var item models.MasterFile
		if err := rows.Scan(&item.UUID, &item.Name); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByMaster(ctx context.Context, masterFileUUID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE master_file_uuid = $1`, masterFileUUID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
