// Package repomanager vends database-bound repository implementations and
// owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/chunkvault/chunkvault/internal/dbx"
	"github.com/chunkvault/chunkvault/internal/repositories/accounts"
	"github.com/chunkvault/chunkvault/internal/repositories/chunks"
	"github.com/chunkvault/chunkvault/internal/repositories/jobs"
)

// RepositoryManager constructs repositories bound to a DBTX, which lets a
// service run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Jobs(db dbx.DBTX) jobs.Repository
	Chunks(db dbx.DBTX) chunks.Repository
	Accounts(db dbx.DBTX) accounts.Repository
}
