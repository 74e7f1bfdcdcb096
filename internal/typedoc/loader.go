package typedoc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError ErrorCode = "InputError"
	ParseError ErrorCode = "ParseError"
	ModelError ErrorCode = "ModelError"
)

// LoadError is a structured error with the offending location.
type LoadError struct {
	Code     ErrorCode
	Message  string
	Location string // file path
	Cause    error
}

func (e *LoadError) Error() string { return e.Message }
func (e *LoadError) Unwrap() error { return e.Cause }

// Load reads a TypeDoc JSON export from a local file and decodes it.
func Load(ctx context.Context, path string) (*Project, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &LoadError{Code: InputError, Message: "typedoc: input is empty"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}

	project, err := Decode(raw)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Location = abs
		}
		return nil, err
	}
	return project, nil
}
