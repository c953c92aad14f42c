package upload

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrCorruptImage    = errors.New("corrupt or mislabeled image")
	ErrTooManyFiles    = errors.New("too many files in field")
	ErrUnknownField    = errors.New("unknown upload field")
)

// StorageError marks staging or final write failures. It triggers rollback
// of the whole batch.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
