package spec

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/skywardapps/ts-openapi-gen/internal/schema"
	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// BuildOption configures how the ServiceModel is assembled.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	patterns    []string
	pathRes     []*regexp.Regexp
	log         logrus.FieldLogger
}

// WithIncludeTags keeps only endpoints that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes endpoints that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only endpoints using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only endpoints whose converted path matches at least
// one of the regular expressions. Invalid patterns make BuildServiceModel fail.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				c.patterns = append(c.patterns, p)
			}
		}
	}
}

func WithLogger(log logrus.FieldLogger) BuildOption {
	return func(c *buildConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// BuildServiceModel walks every controller class in the project and builds
// one endpoint per verb annotation of each public method. Filters run before
// anything is compiled, so endpoints that are filtered out contribute no
// schemas.
func BuildServiceModel(ctx context.Context, project *typedoc.Project, compiler *schema.Compiler, opts ...BuildOption) (*ServiceModel, error) {
	if project == nil {
		return nil, errors.New("spec: nil project")
	}
	if compiler == nil {
		return nil, errors.New("spec: nil compiler")
	}

	cfg := &buildConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	for _, p := range cfg.patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("spec: invalid path pattern %q: %w", p, err)
		}
		cfg.pathRes = append(cfg.pathRes, re)
	}

	sm := &ServiceModel{Title: project.Name}
	for _, class := range typedoc.Find(project.Root, typedoc.KindClass) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctrl, ok := class.Decorator("controller")
		if !ok {
			continue
		}
		if !allowByTags([]string{class.Name}, cfg) {
			cfg.log.WithField("controller", class.Name).Debug("controller filtered out by tags")
			continue
		}
		prefix, _ := ctrl.Argument("path")
		sm.Tags = append(sm.Tags, TagModel{Name: class.Name, Description: class.Comment.Simple()})

		a := assembler{compiler: compiler, cfg: cfg, controller: class.Name, prefix: prefix}
		for _, method := range class.Children {
			endpoints, err := a.method(method)
			if err != nil {
				return nil, err
			}
			sm.Endpoints = append(sm.Endpoints, endpoints...)
		}
	}
	return sm, nil
}

type assembler struct {
	compiler   *schema.Compiler
	cfg        *buildConfig
	controller string
	prefix     string
}

type route struct {
	method HttpMethod
	suffix string
}

func isPublic(m *typedoc.Reflection) bool {
	return !m.Flags.IsPrivate && !m.Flags.IsProtected && !m.Flags.IsStatic
}

// routes lists the verb annotations of a method in annotation order.
func routes(m *typedoc.Reflection) []route {
	var out []route
	for i := range m.Decorators {
		dec := &m.Decorators[i]
		verb, ok := verbDecorators[dec.Name]
		if !ok {
			continue
		}
		suffix, ok := dec.Argument("path")
		if !ok {
			continue
		}
		out = append(out, route{method: verb, suffix: suffix})
	}
	return out
}

func (a *assembler) method(m *typedoc.Reflection) ([]EndpointModel, error) {
	if !m.Is(typedoc.KindMethod) || !isPublic(m) || len(m.Signatures) == 0 {
		return nil, nil
	}
	rts := routes(m)
	if len(rts) == 0 {
		return nil, nil
	}
	sig := m.Signatures[0]
	log := a.cfg.log.WithFields(logrus.Fields{"controller": a.controller, "method": m.Name})

	var (
		out   []EndpointModel
		bound *binding
	)
	for _, rt := range rts {
		full := JoinRoute(a.prefix, rt.suffix)
		if !a.allow(rt.method, full) {
			log.WithFields(logrus.Fields{"verb": rt.method, "path": full}).Debug("endpoint filtered out")
			continue
		}
		if bound == nil {
			b, err := a.bind(sig)
			if err != nil {
				return nil, fmt.Errorf("spec: %s.%s: %w", a.controller, m.Name, err)
			}
			bound = b
		}

		opID := a.controller + "." + m.Name
		if len(rts) > 1 {
			opID += "." + string(rt.method)
		}
		summary := sig.Comment.Short()
		if summary == "" {
			summary = m.Name
		}
		out = append(out, EndpointModel{
			ID:              string(rt.method) + " " + full,
			Controller:      a.controller,
			Method:          rt.method,
			Prefix:          a.prefix,
			Suffix:          rt.suffix,
			Path:            full,
			OperationID:     opID,
			Summary:         summary,
			Description:     sig.Comment.Simple(),
			Deprecated:      sig.Comment.HasTag("deprecated") || m.Comment.HasTag("deprecated"),
			Tags:            []string{a.controller},
			PathParameters:  bound.path,
			QueryParameters: bound.query,
			Body:            bound.body,
			Response:        bound.response,
		})
		log.WithFields(logrus.Fields{"verb": rt.method, "path": full}).Debug("endpoint assembled")
	}
	return out, nil
}

func (a *assembler) allow(method HttpMethod, full string) bool {
	if len(a.cfg.methods) > 0 {
		if _, ok := a.cfg.methods[method]; !ok {
			return false
		}
	}
	if len(a.cfg.pathRes) > 0 {
		for _, re := range a.cfg.pathRes {
			if re.MatchString(full) {
				return true
			}
		}
		return false
	}
	return true
}

// binding holds the compiled parts of a signature shared by every verb of
// the method.
type binding struct {
	path     []ParameterModel
	query    []ParameterModel
	body     *RequestBodyModel
	response *ResponseModel
}

func (a *assembler) bind(sig *typedoc.Reflection) (*binding, error) {
	b := &binding{}
	for _, p := range sig.Parameters {
		if p.Type == nil {
			continue
		}
		if dec, ok := p.Decorator("requestParam"); ok {
			s, err := a.compiler.Compile(p.Type)
			if err != nil {
				return nil, err
			}
			b.path = append(b.path, ParameterModel{
				Name:        argumentOr(dec, "paramName", p.Name),
				In:          openapi3.ParameterInPath,
				Description: p.Comment.Short(),
				Required:    true,
				Style:       openapi3.SerializationSimple,
				Schema:      s,
			})
			continue
		}
		if dec, ok := p.Decorator("queryParam"); ok {
			s, err := a.compiler.Compile(p.Type)
			if err != nil {
				return nil, err
			}
			b.query = append(b.query, ParameterModel{
				Name:        argumentOr(dec, "queryParamName", p.Name),
				In:          openapi3.ParameterInQuery,
				Description: p.Comment.Short(),
				Style:       openapi3.SerializationForm,
				Schema:      s,
			})
			continue
		}
		if _, ok := p.Decorator("requestBody"); ok && b.body == nil {
			s, err := a.compiler.Compile(p.Type)
			if err != nil {
				return nil, err
			}
			b.body = &RequestBodyModel{Description: p.Comment.Simple(), Required: true, Schema: s}
		}
	}

	b.response = &ResponseModel{Status: "200"}
	if sig.Comment != nil {
		b.response.Description = strings.TrimSpace(sig.Comment.Returns)
	}
	if sig.Type != nil {
		s, err := a.compiler.Compile(sig.Type)
		if err != nil {
			return nil, err
		}
		if !isNull(s) {
			b.response.Schema = s
		}
	}
	return b, nil
}

func isNull(s *openapi3.SchemaRef) bool {
	return s != nil && s.Ref == "" && s.Value != nil && s.Value.Type == schema.TypeNull
}

func argumentOr(dec *typedoc.Decorator, key, fallback string) string {
	if v, ok := dec.Argument(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	hasInclude := len(cfg.includeTags) > 0
	if hasInclude {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(cfg.excludeTags) > 0 {
		for _, t := range tags {
			if _, blocked := cfg.excludeTags[t]; blocked {
				return false
			}
		}
	}
	return true
}
