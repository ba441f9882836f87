package domain

import "errors"

var (
	ErrInputNotFound       = errors.New("input not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrMissingConfig       = errors.New("required configuration missing")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrIncompleteBundle    = errors.New("claim bundle is missing a side")
	ErrIndexNotFound       = errors.New("index asset not found")
	ErrIndexConflict       = errors.New("index asset was modified concurrently")
	ErrClaimRunNotFound    = errors.New("claim run not found")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
)
