// Package accounts stores the storage-account pool: eligibility flags and
// the last known quota snapshot per account. Credentials themselves belong
// to the external collaborator and are only referenced here.
package accounts

import (
	"context"

	"github.com/chunkvault/chunkvault/internal/models"
)

type Repository interface {
	// ListEligible returns the ordered pool of accounts available for
	// distribution. Order is stable (by account id) so that round-robin
	// assignment is deterministic.
	ListEligible(ctx context.Context) ([]*models.StorageAccount, error)

	GetByID(ctx context.Context, id string) (*models.StorageAccount, error)

	// UpdateQuota records a fresh quota snapshot for an account.
	UpdateQuota(ctx context.Context, id string, used, limit int64) error
}
