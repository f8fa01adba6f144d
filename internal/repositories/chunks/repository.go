// Package chunks implements the chunk registry: the catalog of chunk
// placement and decryption metadata.
package chunks

import (
	"context"

	"github.com/chunkvault/chunkvault/internal/models"
)

type Repository interface {
	// Register catalogs one chunk. Registering a (master uuid, sequence)
	// pair twice fails with common.ErrRegistryIntegrity.
	Register(ctx context.Context, record *models.ChunkRecord) error

	// ListByMaster returns all chunk records of a master file ordered by
	// sequence number.
	ListByMaster(ctx context.Context, masterFileUUID string) ([]*models.ChunkRecord, error)

	// ListDistinctMasters returns every known master file.
	ListDistinctMasters(ctx context.Context) ([]*models.MasterFile, error)

	// DeleteByMaster removes all chunk records of a master file and
	// returns how many were deleted.
	DeleteByMaster(ctx context.Context, masterFileUUID string) (int64, error)
}
