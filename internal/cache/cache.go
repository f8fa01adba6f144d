// Package cache implements the read-through disk cache that fronts
// single-object fetches, typically inline media. Entries are
// content-addressed by backend object id and expire after a fixed TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chunkvault/chunkvault/internal/filex"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/storage"
)

// Resolver looks up the storage account of the identity requesting an
// object.
type Resolver interface {
	GetByID(ctx context.Context, id string) (*models.StorageAccount, error)
}

type Proxy struct {
	dir      string
	ttl      time.Duration
	backend  storage.Backend
	accounts Resolver
	log      logging.Logger

	now func() time.Time
}

type meta struct {
	ContentType string `json:"content_type"`
}

func NewProxy(dir string, ttl time.Duration, backend storage.Backend, accounts Resolver, log logging.Logger) (*Proxy, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &Proxy{
		dir:      abs,
		ttl:      ttl,
		backend:  backend,
		accounts: accounts,
		log:      log,
		now:      time.Now,
	}, nil
}

func (p *Proxy) paths(objectID string) (dataPath, metaPath string) {
	sum := sha256.Sum256([]byte(objectID))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(p.dir, name+".bin"), filepath.Join(p.dir, name+".json")
}

// Serve returns the object bytes and content type, from cache when a fresh
// entry exists, otherwise fetched through the requesting account's own
// credential. Cache write failures degrade to serving without caching.
//
// Note: the fetch authenticates as the requester, not as the object's
// original holder; the backend must make the object visible to that account.
func (p *Proxy) Serve(ctx context.Context, objectID, requesterAccountID string) ([]byte, string, error) {
	dataPath, metaPath := p.paths(objectID)

	if data, contentType, ok := p.lookup(dataPath, metaPath); ok {
		return data, contentType, nil
	}

	account, err := p.accounts.GetByID(ctx, requesterAccountID)
	if err != nil {
		return nil, "", err
	}

	session, err := p.backend.Authenticate(ctx, account.CredentialRef)
	if err != nil {
		return nil, "", err
	}

	data, err := session.Get(ctx, objectID)
	if err != nil {
		return nil, "", err
	}

	contentType := detectContentType(objectID, data)

	if err := p.store(dataPath, metaPath, data, contentType); err != nil {
		p.log.Warn(ctx, "cache write failed, serving direct", "object_id", objectID, "error", err.Error())
	}

	return data, contentType, nil
}

// lookup returns a cached entry if it exists and has not expired.
func (p *Proxy) lookup(dataPath, metaPath string) ([]byte, string, bool) {
	info, err := os.Stat(dataPath)
	if err != nil {
		return nil, "", false
	}
	if p.now().Sub(info.ModTime()) > p.ttl {
		return nil, "", false
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, "", false
	}

	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(metaPath); err == nil {
		var m meta
		if json.Unmarshal(raw, &m) == nil && m.ContentType != "" {
			contentType = m.ContentType
		}
	}

	return data, contentType, true
}

func (p *Proxy) store(dataPath, metaPath string, data []byte, contentType string) error {
	rawMeta, err := json.Marshal(meta{ContentType: contentType})
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(metaPath, rawMeta, 0o640); err != nil {
		return err
	}
	return filex.WriteFileAtomic(dataPath, data, 0o640)
}

// detectContentType derives a best-effort MIME type from the object id's
// filename extension, falling back to content sniffing.
func detectContentType(objectID string, data []byte) string {
	if ext := filepath.Ext(objectID); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}
