package querycache

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidPrefix      = errors.New("querycache: cache key prefix must not be blank")
	ErrNilStore           = errors.New("querycache: store is required")
	ErrNilProvider        = errors.New("querycache: provider is required")
	ErrNilSerializer      = errors.New("querycache: serializer is required")
	ErrNilResolver        = errors.New("querycache: resolver is required")
	ErrNilQuery           = errors.New("querycache: query is required")
	ErrResultNotAvailable = errors.New("querycache: result not available, execute the query first")
	ErrEntryType          = errors.New("querycache: cached entry has unexpected type")
)

// ArgumentError reports an invalid argument passed at the point of misuse.
type ArgumentError struct {
	Name string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %v", e.Name, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// DecodeError is returned by DistributedStore when stored bytes could not be turned back
// into an entry. The offending entry has already been removed when the caller sees it.
type DecodeError struct {
	Key       string
	Err       error
	RemoveErr error
}

func (e *DecodeError) Error() string {
	if e.RemoveErr != nil {
		return fmt.Sprintf("decode %q: %v (remove stale entry failed: %v)", e.Key, e.Err, e.RemoveErr)
	}
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.RemoveErr != nil {
		errs = append(errs, e.RemoveErr)
	}
	return errs
}
