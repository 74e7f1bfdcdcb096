package spec

import (
	"path"
	"regexp"
	"strings"
)

var colonParam = regexp.MustCompile(`:([^/{}:]+)`)

// ConvertPathParameters rewrites `:name` segments to `{name}`. Already
// converted paths are returned unchanged.
func ConvertPathParameters(p string) string {
	return colonParam.ReplaceAllString(p, "{$1}")
}

// JoinRoute converts prefix and suffix independently and joins them into an
// absolute route without duplicate or trailing slashes.
func JoinRoute(prefix, suffix string) string {
	return path.Join("/", ConvertPathParameters(prefix), ConvertPathParameters(suffix))
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
