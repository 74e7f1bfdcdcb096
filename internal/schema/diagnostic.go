package schema

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Category classifies diagnostics for filtering.
type Category string

const (
	CategoryUnresolved    Category = "unresolved-reference"
	CategoryUnsupported   Category = "type-unsupported"
	CategoryEmptyObject   Category = "empty-object"
	CategoryResultUnwrap  Category = "result-unwrap"
	CategoryShimOverride  Category = "shim-override"
	CategoryDeclaration   Category = "declaration"
	CategoryTypeParameter Category = "type-parameter"
)

// Diagnostic is one recoverable problem found while compiling.
type Diagnostic struct {
	Severity Severity
	Category Category
	Subject  string // type or declaration name
	Message  string
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: [%s] %s", d.Severity, d.Category, d.Message)
	}
	return fmt.Sprintf("%s: [%s] %s: %s", d.Severity, d.Category, d.Subject, d.Message)
}

// Diagnostics collects diagnostics in the order they occur and mirrors each
// one to the logger.
type Diagnostics struct {
	log   logrus.FieldLogger
	items []Diagnostic
}

func newDiagnostics(log logrus.FieldLogger) *Diagnostics {
	return &Diagnostics{log: log}
}

func (c *Diagnostics) Warn(category Category, subject, format string, args ...any) {
	c.add(SeverityWarning, category, subject, fmt.Sprintf(format, args...))
}

func (c *Diagnostics) Error(category Category, subject, format string, args ...any) {
	c.add(SeverityError, category, subject, fmt.Sprintf(format, args...))
}

func (c *Diagnostics) add(sev Severity, category Category, subject, msg string) {
	c.items = append(c.items, Diagnostic{Severity: sev, Category: category, Subject: subject, Message: msg})

	entry := c.log.WithField("category", string(category))
	if subject != "" {
		entry = entry.WithField("schema", subject)
	}
	if sev == SeverityError {
		entry.Error(msg)
		return
	}
	entry.Warn(msg)
}

// All returns a copy of the collected diagnostics.
func (c *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (c *Diagnostics) HasErrors() bool {
	for _, d := range c.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
