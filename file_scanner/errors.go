package file_scanner

import (
	"errors"
	"fmt"
)

var (
	ErrNotAFile      = errors.New("path is not a regular file")
	ErrFileTooLarge  = errors.New("file exceeds the maximum size")
	ErrReadError     = errors.New("file could not be read as UTF-8 text")
	ErrInvalidPath   = errors.New("path is neither a file nor a directory")
	ErrDirectoryScan = errors.New("directory scan failed")
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// ScanError carries the kind of failure and the offending path.
// errors.Is matches both the kind and the underlying cause.
type ScanError struct {
	Kind error
	Path string
	Err  error
}

func newScanError(kind error, path string, err error) *ScanError {
	return &ScanError{Kind: kind, Path: path, Err: err}
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ScanError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
