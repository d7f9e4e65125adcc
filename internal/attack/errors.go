package attack

import (
	"errors"
	"fmt"
)

// KnowledgeErrorCode identifies a knowledge-base loading failure class.
type KnowledgeErrorCode string

const (
	// ErrCodeBundleMissing means the bundle file could not be read.
	ErrCodeBundleMissing KnowledgeErrorCode = "BUNDLE_MISSING"
	// ErrCodeBundleMalformed means the bundle was read but could not be
	// parsed as a STIX bundle.
	ErrCodeBundleMalformed KnowledgeErrorCode = "BUNDLE_MALFORMED"
)

// KnowledgeError is the fatal error surface of the loader. A missing or
// unparseable bundle is the one unrecoverable startup condition; everything
// downstream degrades instead of failing.
type KnowledgeError struct {
	Code    KnowledgeErrorCode
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *KnowledgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Path)
}

// Unwrap returns the underlying cause for error chains.
func (e *KnowledgeError) Unwrap() error {
	return e.Cause
}

// Is matches KnowledgeErrors by code.
func (e *KnowledgeError) Is(target error) bool {
	var ke *KnowledgeError
	if errors.As(target, &ke) {
		return e.Code == ke.Code
	}
	return false
}

func newKnowledgeError(code KnowledgeErrorCode, message, path string, cause error) *KnowledgeError {
	return &KnowledgeError{Code: code, Message: message, Path: path, Cause: cause}
}
