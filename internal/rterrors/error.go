// Package rterrors defines the typed boundary errors this module
// raises: small structs implementing error (and Unwrap, where there is
// an underlying cause) rather than bare sentinel strings, so callers
// can errors.As against the type and errors.Is against the cause.
package rterrors

import "fmt"

// UnknownSchemeError is returned when a package URI carries a scheme
// this module does not recognize.
type UnknownSchemeError struct {
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown package uri scheme: %q", e.Scheme)
}

// BadDescriptorError wraps a validation failure in a user-supplied
// runtime environment descriptor.
type BadDescriptorError struct {
	Field string
	Err   error
}

func (e *BadDescriptorError) Error() string {
	return fmt.Sprintf("bad descriptor field %q: %v", e.Field, e.Err)
}

func (e *BadDescriptorError) Unwrap() error {
	return e.Err
}

// UnsupportedError is returned when a descriptor field is well-formed
// but not supported on the current platform (e.g. pip/conda on a
// platform with no dependency manager wired in).
type UnsupportedError struct {
	Field    string
	Platform string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%q is not supported on %s", e.Field, e.Platform)
}

// PayloadTooLargeError is returned by the blob-store client when a put
// payload meets or exceeds the hard cap.
type PayloadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds the maximum size of %d bytes; "+
		"exclude large files from the working directory or module trees", e.Size, e.Limit)
}

// FetchFailedError is returned when a package could not be retrieved
// from the blob store.
type FetchFailedError struct {
	URI string
	Err error
}

func (e *FetchFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: package not found", e.URI)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// CacheNotConfiguredError is a fatal precondition failure: an
// operation that requires a local cache root was invoked before one
// was configured.
type CacheNotConfiguredError struct{}

func (e *CacheNotConfiguredError) Error() string {
	return "local package cache root is not configured"
}

// BlobStoreNotInitializedError is a fatal precondition failure: an
// operation that requires the blob store was invoked against a client
// that has not been initialized.
type BlobStoreNotInitializedError struct{}

func (e *BlobStoreNotInitializedError) Error() string {
	return "blob store client is not initialized"
}
