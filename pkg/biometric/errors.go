package biometric

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData indicates a training request below the modality's
	// minimum sample count. Callers should prompt for more enrollment
	// samples rather than retry.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrInvalidInput indicates a malformed or missing feature vector or
	// timing session. The single request is rejected; no retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownModality indicates a modality key outside the closed set.
	ErrUnknownModality = errors.New("unknown modality")
)

// StorageError wraps a sample or artifact persistence failure. The engine
// never retries internally; retry policy belongs to the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
