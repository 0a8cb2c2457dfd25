package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDownload     = errors.New("download failed")
	ErrExtraction   = errors.New("metadata extraction failed")
	ErrPersistence  = errors.New("record persistence failed")
	ErrAttachment   = errors.New("attachment upload failed")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	ErrConfig       = errors.New("invalid configuration")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
