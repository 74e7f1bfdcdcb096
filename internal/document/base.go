package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes base document errors.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
)

// BaseError is a structured error with optional location and JSON Pointer.
type BaseError struct {
	Code        ErrorCode
	Message     string
	Location    string
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *BaseError) Error() string { return e.Message }
func (e *BaseError) Unwrap() error { return e.Cause }

// LoadBase reads an OpenAPI 3 document from a local file. External refs may
// point at other local files only.
func LoadBase(ctx context.Context, path string) (*openapi3.T, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &BaseError{Code: InputError, Message: "document: base path is empty"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &BaseError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &BaseError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	if err := checkVersion(raw); err != nil {
		return nil, &BaseError{Code: ParseError, Message: err.Error(), Location: abs, Cause: err}
	}

	doc, err := newLoader().LoadFromFile(abs)
	if err != nil {
		return nil, mapValidateOrParseErr(err, abs)
	}
	if err := doc.Validate(ctx); err != nil && !canProceedDespiteValidation(err) {
		return nil, mapValidateOrParseErr(err, abs)
	}
	return doc, nil
}

func newLoader() *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			p := uri.Path
			if p == "" {
				p = uri.Opaque
			}
			return os.ReadFile(p)
		default:
			return nil, fmt.Errorf("blocked ref: %s (only local files are read)", uri.String())
		}
	}
	return loader
}

// checkVersion accepts OpenAPI 3.x documents only.
func checkVersion(data []byte) error {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse base document: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return nil
		}
	}
	return errors.New("document: base must declare 'openapi: 3.x'")
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	if s := strings.ToLower(err.Error()); strings.Contains(s, "parse") || strings.Contains(s, "invalid character") {
		code = ParseError
	}
	return &BaseError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	return jsonPtrRe.FindString(err.Error())
}

// canProceedDespiteValidation tolerates unresolved refs so a partial base
// can still be extended.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unresolved ref")
}
