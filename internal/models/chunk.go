package models

// ChunkRecord catalogs the placement and decryption metadata of a single
// encrypted chunk. Records are immutable after registration except for bulk
// deletion by master-file UUID.
//
// Invariant: for a fixed MasterFileUUID the sequence numbers are exactly
// 1..N with no gaps or duplicates.
type ChunkRecord struct {
	ID              string
	MasterFileUUID  string
	MasterFileName  string
	SequenceNumber  int
	HolderAccountID string
	// BackendObjectID is the identifier the storage backend returned for
	// the stored ciphertext.
	BackendObjectID string
	SizeBytes       int64
	EncryptionKey   []byte
	EncryptionIV    []byte
}

// MasterFile is the logical original file. It exists only through the
// aggregate of its chunk records.
type MasterFile struct {
	UUID string
	Name string
}
