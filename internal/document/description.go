package document

import (
	"bufio"
	"io"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// Description is what a companion description file contributes to the
// document: info overrides, free prose and oauth2 security schemes.
type Description struct {
	Title          string
	Version        string
	TermsOfService string
	Contact        *openapi3.Contact
	License        *openapi3.License
	Prose          string

	SecuritySchemes openapi3.SecuritySchemes
	// Security is the default requirement; nil when no scope was declared.
	Security openapi3.SecurityRequirements
}

// key folds a directive key segment for matching. A Caser keeps state, so
// each call gets its own.
func key(s string) string { return cases.Fold().String(strings.TrimSpace(s)) }

// ParseDescription reads directive lines (`@key: value` or `@key value`) and
// prose. Directive keys match without regard to case; unknown keys are
// logged and dropped.
func ParseDescription(r io.Reader, log logrus.FieldLogger) (*Description, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Description{}
	var prose []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(text)
		if !strings.HasPrefix(trimmed, "@") {
			prose = append(prose, text)
			continue
		}
		name, value := splitDirective(trimmed[1:])
		if !d.apply(name, value) {
			log.WithFields(logrus.Fields{"directive": name, "line": line}).Warn("ignoring unrecognized description directive")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	d.Prose = strings.TrimSpace(strings.Join(prose, "\n"))
	return d, nil
}

// splitDirective separates the key from the value at the first whitespace
// or at the first colon that ends a word. Colons inside a key, as in scope
// names, are kept.
func splitDirective(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ' ' || c == '\t':
			return s[:i], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s[i:]), ":"))
		case c == ':' && (i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t'):
			return s[:i], strings.TrimSpace(s[i+1:])
		}
	}
	return s, ""
}

func (d *Description) apply(name, value string) bool {
	switch key(name) {
	case "title":
		d.Title = value
	case "version":
		d.Version = value
	case "termsofservice":
		d.TermsOfService = value
	case "email":
		d.contact().Email = value
	case "name":
		d.contact().Name = value
	case "url":
		d.contact().URL = value
	case "license.name":
		d.license().Name = value
	case "license.url":
		d.license().URL = value
	default:
		return d.applyOAuth2(name, value)
	}
	return true
}

func (d *Description) contact() *openapi3.Contact {
	if d.Contact == nil {
		d.Contact = &openapi3.Contact{}
	}
	return d.Contact
}

func (d *Description) license() *openapi3.License {
	if d.License == nil {
		d.License = &openapi3.License{}
	}
	return d.License
}

// applyOAuth2 handles oauth2.<scheme>.<flow>.<property>. Scheme and scope
// names keep their case. Nothing is created unless the whole directive is
// recognized.
func (d *Description) applyOAuth2(name, value string) bool {
	parts := strings.Split(name, ".")
	if len(parts) < 4 || key(parts[0]) != "oauth2" || parts[1] == "" {
		return false
	}
	scheme, flowName := parts[1], key(parts[2])
	if !knownFlow(flowName) {
		return false
	}

	var set func(*openapi3.OAuthFlow)
	switch prop := key(parts[3]); {
	case prop == "tokenurl" && len(parts) == 4:
		set = func(f *openapi3.OAuthFlow) { f.TokenURL = value }
	case prop == "authorizationurl" && len(parts) == 4:
		set = func(f *openapi3.OAuthFlow) { f.AuthorizationURL = value }
	case prop == "refreshurl" && len(parts) == 4:
		set = func(f *openapi3.OAuthFlow) { f.RefreshURL = value }
	case prop == "scopes" && len(parts) > 4 && strings.Join(parts[4:], "") != "":
		scope := strings.Join(parts[4:], ".")
		set = func(f *openapi3.OAuthFlow) {
			f.Scopes[scope] = value
			d.requireScope(scheme, scope)
		}
	default:
		return false
	}
	set(d.flow(scheme, flowName))
	return true
}

func knownFlow(name string) bool {
	switch name {
	case "password", "implicit", "clientcredentials", "authorizationcode":
		return true
	}
	return false
}

// flow returns the named flow of scheme, creating both as needed. The flow
// name must satisfy knownFlow.
func (d *Description) flow(scheme, name string) *openapi3.OAuthFlow {
	if d.SecuritySchemes == nil {
		d.SecuritySchemes = make(openapi3.SecuritySchemes)
	}
	ref, ok := d.SecuritySchemes[scheme]
	if !ok {
		ref = &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{Type: "oauth2"}}
		d.SecuritySchemes[scheme] = ref
	}
	ss := ref.Value
	if ss.Flows == nil {
		ss.Flows = &openapi3.OAuthFlows{}
	}

	var slot **openapi3.OAuthFlow
	switch name {
	case "password":
		slot = &ss.Flows.Password
	case "implicit":
		slot = &ss.Flows.Implicit
	case "clientcredentials":
		slot = &ss.Flows.ClientCredentials
	default:
		slot = &ss.Flows.AuthorizationCode
	}
	if *slot == nil {
		*slot = &openapi3.OAuthFlow{Scopes: map[string]string{}}
	}
	return *slot
}

// requireScope makes scheme+scope the default security requirement. The
// last scope directive wins.
func (d *Description) requireScope(scheme, scope string) {
	d.Security = openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate(scheme, scope)}
}
