// Package common defines shared constants and sentinel errors used across
// the chunkvault components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound          = errors.New("not found")
	ErrRegistryIntegrity = errors.New("registry integrity violation")

	// ErrInvalidRequest marks a submission that fails validation before
	// anything is persisted.
	ErrInvalidRequest = errors.New("invalid request")

	// Admin job-control: the targeted job was not in an eligible pre-state,
	// so the operation changed nothing.
	ErrNotEligible = errors.New("job not in eligible state")

	// Worker/pipeline errors.
	ErrConfiguration  = errors.New("configuration error")
	ErrSourceNotFound = errors.New("source file not found")

	// Storage-backend errors. Auth failures and IO failures are distinct
	// kinds: quota and credential problems must not be conflated with
	// transient transport errors.
	ErrBackendAuth   = errors.New("backend authentication failed")
	ErrBackendIO     = errors.New("backend io error")
	ErrQuotaExceeded = errors.New("backend quota exceeded")

	// Retrieval errors.
	ErrDecryption  = errors.New("chunk decryption failed")
	ErrPartialData = errors.New("partial data: one or more chunks unavailable")
)
