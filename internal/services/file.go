package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/dbx"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/repositories/repomanager"
	"github.com/chunkvault/chunkvault/internal/retrieval"
	"github.com/chunkvault/chunkvault/internal/storage"
)

// FileService exposes the reassembled master files: listing, retrieval and
// deletion with its registry-plus-backend cascade.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	backend     storage.Backend
	retriever   *retrieval.Service
	log         logging.Logger
}

func NewFileService(db *sql.DB, rm repomanager.RepositoryManager, backend storage.Backend, log logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: rm,
		backend:     backend,
		retriever:   retrieval.NewService(rm.Chunks(db), rm.Accounts(db), backend, log),
		log:         log,
	}
}

func (s *FileService) List(ctx context.Context) ([]*models.MasterFile, error) {
	return s.retriever.ListMasters(ctx)
}

// Retrieve reassembles the whole master file in memory. See
// retrieval.Service for the all-or-nothing failure policy.
func (s *FileService) Retrieve(ctx context.Context, masterFileUUID string) (*retrieval.File, error) {
	return s.retriever.Retrieve(ctx, masterFileUUID)
}

// Delete removes every chunk record of the master file and marks its latest
// terminal job FILE_DELETED in one transaction, then best-effort deletes
// the stored ciphertext objects. A backend delete failure leaves an orphan
// object but never resurrects registry rows.
func (s *FileService) Delete(ctx context.Context, masterFileUUID string) error {
	records, err := s.repomanager.Chunks(s.db).ListByMaster(ctx, masterFileUUID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: master file %s", common.ErrNotFound, masterFileUUID)
	}
	masterFileName := records[0].MasterFileName

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Chunks(tx).DeleteByMaster(ctx, masterFileUUID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: master file %s", common.ErrNotFound, masterFileUUID)
		}

		err = s.repomanager.Jobs(tx).MarkFileDeletedByName(ctx, masterFileName)
		if err != nil && !errors.Is(err, common.ErrNotEligible) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteObjects(ctx, records)
	return nil
}

func (s *FileService) deleteObjects(ctx context.Context, records []*models.ChunkRecord) {
	accountRepo := s.repomanager.Accounts(s.db)
	sessions := make(map[string]storage.Session)

	for _, record := range records {
		session, ok := sessions[record.HolderAccountID]
		if !ok {
			account, err := accountRepo.GetByID(ctx, record.HolderAccountID)
			if err != nil {
				s.log.Warn(ctx, "object cleanup: account lookup failed",
					"account_id", record.HolderAccountID, "error", err.Error())
				continue
			}
			session, err = s.backend.Authenticate(ctx, account.CredentialRef)
			if err != nil {
				s.log.Warn(ctx, "object cleanup: authenticate failed",
					"account_id", record.HolderAccountID, "error", err.Error())
				continue
			}
			sessions[record.HolderAccountID] = session
		}

		if err := session.Delete(ctx, record.BackendObjectID); err != nil {
			s.log.Warn(ctx, "object cleanup: delete failed",
				"object_id", record.BackendObjectID, "error", err.Error())
		}
	}
}
