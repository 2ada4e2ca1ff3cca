package resources

import "errors"

var (
	// Lookup errors
	ErrBadID     = errors.New("invalid resource id")
	ErrNoPackage = errors.New("no package loaded for resource id")
	ErrNotFound  = errors.New("resource not found for current configuration")
	ErrIsComplex = errors.New("resource is a bag, simple value required")

	// Chain errors
	ErrDepthExceeded = errors.New("reference chain exceeds maximum depth")

	// Format errors
	ErrMalformed   = errors.New("malformed resource table")
	ErrPathTooLong = errors.New("path exceeds fixed-length field")
)
