package document

import "errors"

var (
	ErrNotFound       = errors.New("document not found")
	ErrUnknownDocType = errors.New("unknown doctype")
	ErrValidation     = errors.New("validation failed")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrDuplicate      = errors.New("duplicate document")
)
