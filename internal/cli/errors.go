package cli

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUsage marks problems the user fixes by changing flags, config or input
// files. Match it with errors.Is.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg   string
	cause error
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

// wrapUsageError reports cause as a usage problem under a short subject such
// as "input" or "base". Non-empty details are appended one per line, in
// order, as "Label: value".
func wrapUsageError(subject, message string, cause error, details ...detail) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", subject, message)
	for _, d := range details {
		if d.value != "" {
			fmt.Fprintf(&b, "\n%s: %s", d.label, d.value)
		}
	}
	return usageError{msg: b.String(), cause: cause}
}

type detail struct{ label, value string }

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

func (e usageError) Unwrap() error { return e.cause }
