// Package storage defines the narrow interface the engine uses to talk to
// the external chunk-holding backend, plus its S3 implementation. The
// backend's transport, auth flow and quota accounting are the collaborator's
// business; the engine only authenticates a credential reference into a
// session and moves opaque ciphertext bytes through it.
package storage

import "context"

// Quota is a point-in-time usage snapshot of one storage account.
type Quota struct {
	Used  int64
	Limit int64
}

// Session is an authenticated handle to a single storage account.
type Session interface {
	// Put stores data under a backend-chosen object id derived from name.
	Put(ctx context.Context, name string, data []byte) (objectID string, err error)

	// Get returns the raw bytes stored under objectID.
	Get(ctx context.Context, objectID string) ([]byte, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectID string) error

	// Quota reports the account's usage snapshot.
	Quota(ctx context.Context) (Quota, error)
}

// Backend turns a stored credential reference into an authenticated session.
// Authentication failures surface as common.ErrBackendAuth; transfer
// failures on the session surface as common.ErrBackendIO.
type Backend interface {
	Authenticate(ctx context.Context, credentialRef string) (Session, error)
}
