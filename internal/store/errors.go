package store

import "errors"

// Sentinel errors returned by Store operations, per the error taxonomy each
// caller is expected to branch on (NotFound is recoverable by creating,
// AlreadyExists is a conflict, StorageUnavailable is retriable).
var (
	ErrNotFound          = errors.New("store: not found")
	ErrAlreadyExists     = errors.New("store: already exists")
	ErrIntegrity         = errors.New("store: integrity error")
	ErrStorageUnavailable = errors.New("store: storage unavailable")
)
