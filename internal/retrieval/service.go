// Package retrieval reassembles master files from their scattered chunks.
package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/cryptox"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/repositories/accounts"
	"github.com/chunkvault/chunkvault/internal/repositories/chunks"
	"github.com/chunkvault/chunkvault/internal/storage"
)

// File is a fully reassembled master file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service struct {
	chunks   chunks.Repository
	accounts accounts.Repository
	backend  storage.Backend
	log      logging.Logger
}

func NewService(chunkRepo chunks.Repository, accountRepo accounts.Repository, backend storage.Backend, log logging.Logger) *Service {
	return &Service{chunks: chunkRepo, accounts: accountRepo, backend: backend, log: log}
}

// Retrieve fetches, decrypts and concatenates all chunks of a master file
// in sequence order.
//
// The policy is all-or-nothing: the file is assembled in full before any
// byte reaches the caller, and any unfetchable or undecryptable chunk fails
// the whole retrieval with common.ErrPartialData. A truncated result is
// never returned.
func (s *Service) Retrieve(ctx context.Context, masterFileUUID string) (*File, error) {
	records, err := s.chunks.ListByMaster(ctx, masterFileUUID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: master file %s", common.ErrNotFound, masterFileUUID)
	}
	if err := checkSequence(records); err != nil {
		return nil, err
	}

	// one authenticated session per holder account, reused across chunks
	sessions := make(map[string]storage.Session)

	var buf bytes.Buffer
	for _, record := range records {
		session, ok := sessions[record.HolderAccountID]
		if !ok {
			account, err := s.accounts.GetByID(ctx, record.HolderAccountID)
			if err != nil {
				return nil, fmt.Errorf("%w: holder %s: %v", common.ErrPartialData, record.HolderAccountID, err)
			}
			session, err = s.backend.Authenticate(ctx, account.CredentialRef)
			if err != nil {
				return nil, fmt.Errorf("%w: holder %s: %v", common.ErrPartialData, record.HolderAccountID, err)
			}
			sessions[record.HolderAccountID] = session
		}

		ciphertext, err := session.Get(ctx, record.BackendObjectID)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", common.ErrPartialData, record.SequenceNumber, err)
		}

		plaintext, err := cryptox.DecryptChunk(ciphertext, record.EncryptionKey, record.EncryptionIV)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", common.ErrPartialData, record.SequenceNumber, err)
		}

		buf.Write(plaintext)
	}

	name := records[0].MasterFileName
	s.log.Debug(ctx, "master file reassembled",
		"master_uuid", masterFileUUID, "chunks", len(records), "bytes", buf.Len())

	return &File{
		Name:        name,
		ContentType: ContentTypeForName(name),
		Data:        buf.Bytes(),
	}, nil
}

// ListMasters returns every master file known to the registry.
func (s *Service) ListMasters(ctx context.Context) ([]*models.MasterFile, error) {
	return s.chunks.ListDistinctMasters(ctx)
}

// checkSequence verifies the stored sequence numbers are exactly 1..N.
// ListByMaster returns them ordered, so a single pass suffices.
func checkSequence(records []*models.ChunkRecord) error {
	for i, record := range records {
		if record.SequenceNumber != i+1 {
			return fmt.Errorf("%w: expected sequence %d, found %d for master %s",
				common.ErrRegistryIntegrity, i+1, record.SequenceNumber, record.MasterFileUUID)
		}
	}
	return nil
}

// ContentTypeForName derives a best-effort MIME type from a filename
// extension.
func ContentTypeForName(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
