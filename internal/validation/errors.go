package validation

import "errors"

var (
	ErrValidation        = errors.New("validation_failed")
	ErrMissingFile       = errors.New("missing_file")
	ErrUnsupportedFormat = errors.New("unsupported_format")
	ErrSchema            = errors.New("schema_violation")
)
