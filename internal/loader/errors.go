package loader

import (
	"errors"
	"fmt"
)

// Error codes for document loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No documents found
	ErrCodeParseFailed = "E004" // YAML/JSON/CUE parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeUnsupported = "E008" // Unknown file extension
	ErrCodeSchema      = "E120" // Document fails the head document schema
	ErrCodeEntry       = "E121" // Entry options invalid
)

// LoadError reports a document that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is a *LoadError, optionally with one of the
// given codes.
func IsLoadError(err error, codes ...string) bool {
	var le *LoadError
	if !errors.As(err, &le) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if le.Code == c {
			return true
		}
	}
	return false
}
