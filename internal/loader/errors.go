package loader

import (
	"errors"
	"fmt"
)

// ErrNoContent marks a supported file whose extraction produced no usable
// text. It is always wrapped in a LoadError.
var ErrNoContent = errors.New("no content extracted")

// UnsupportedTypeError reports a file extension outside the allow-list.
// This is a permanent failure: the caller must supply a supported format.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// LoadError reports a content-extraction failure for a supported file type.
// Depending on the cause it may be transient (I/O) or permanent (corrupt file).
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
