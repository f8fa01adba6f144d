package models

// StorageAccount is one externally-authenticated storage account in the
// distribution pool. The engine reads the eligibility list and the quota
// snapshot; credentials themselves are owned by the external collaborator
// and referenced by CredentialRef.
type StorageAccount struct {
	ID            string
	CredentialRef string
	QuotaUsed     int64
	QuotaLimit    int64
	Eligible      bool
}
