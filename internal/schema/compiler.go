// Package schema compiles TypeDoc type descriptors into OpenAPI schemas.
//
// A Compiler owns every table a generation run needs: the declaration
// table, the shim registry and the registry of named component schemas.
// Named declarations compile into the registry and are referenced by
// pointer; everything else is inlined.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// TypeNull is the schema type used for undefined, void and null.
const TypeNull = "null"

// Default names of the wrapper types the response unwrapping understands.
const (
	DefaultAsyncWrapper = "Promise"
	DefaultOkResult     = "OkNegotiatedContentResult"
	DefaultResultMarker = "IHttpActionResult"
)

// UnsupportedIntrinsicError aborts compilation when an intrinsic type has
// no translation.
type UnsupportedIntrinsicError struct {
	Name string
}

func (e *UnsupportedIntrinsicError) Error() string {
	return fmt.Sprintf("schema: unsupported intrinsic type %q", e.Name)
}

// Option configures a Compiler.
type Option func(*settings)

type settings struct {
	log          logrus.FieldLogger
	asyncWrapper string
	okResult     string
	resultMarker string
	shims        []namedShim
}

type namedShim struct {
	name string
	fn   ShimFunc
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithShim registers an extra shim after the built-in ones.
func WithShim(name string, fn ShimFunc) Option {
	return func(s *settings) { s.shims = append(s.shims, namedShim{name: name, fn: fn}) }
}

// WithAsyncWrapper renames the promise-like wrapper that triggers response
// unwrapping.
func WithAsyncWrapper(name string) Option {
	return func(s *settings) { s.asyncWrapper = name }
}

// WithOkResult renames the successful-content wrapper.
func WithOkResult(name string) Option {
	return func(s *settings) { s.okResult = name }
}

// WithResultMarker renames the interface implemented by status results.
func WithResultMarker(name string) Option {
	return func(s *settings) { s.resultMarker = name }
}

// Compiler translates type descriptors into schemas. It is not safe for
// concurrent use.
type Compiler struct {
	decls    *DeclarationTable
	shims    *ShimRegistry
	registry *Registry
	diags    *Diagnostics
	log      logrus.FieldLogger

	asyncWrapper string
	okResult     string
	resultMarker string

	unresolved map[string]struct{}
}

// New scans project for declarations and returns a compiler with the
// built-in shims registered.
func New(project *typedoc.Project, opts ...Option) *Compiler {
	cfg := settings{
		log:          logrus.StandardLogger(),
		asyncWrapper: DefaultAsyncWrapper,
		okResult:     DefaultOkResult,
		resultMarker: DefaultResultMarker,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	diags := newDiagnostics(cfg.log)
	c := &Compiler{
		decls:        NewDeclarationTable(project, diags),
		shims:        NewShimRegistry(diags),
		registry:     NewRegistry(),
		diags:        diags,
		log:          cfg.log,
		asyncWrapper: cfg.asyncWrapper,
		okResult:     cfg.okResult,
		resultMarker: cfg.resultMarker,
		unresolved:   make(map[string]struct{}),
	}
	c.registerBuiltinShims()
	for _, s := range cfg.shims {
		c.shims.Register(s.name, s.fn)
	}
	return c
}

// Shims exposes the shim registry for late registration.
func (c *Compiler) Shims() *ShimRegistry { return c.shims }

// Declarations exposes the declaration table.
func (c *Compiler) Declarations() *DeclarationTable { return c.decls }

// Compile translates t outside of any generic instantiation.
func (c *Compiler) Compile(t typedoc.Type) (*openapi3.SchemaRef, error) {
	return c.compile(t, nil)
}

// Schemas returns the compiled named schemas for the components section.
func (c *Compiler) Schemas() openapi3.Schemas { return c.registry.Export() }

func (c *Compiler) Diagnostics() []Diagnostic { return c.diags.All() }

func (c *Compiler) HasErrors() bool { return c.diags.HasErrors() }

func (c *Compiler) compile(t typedoc.Type, env *Env) (*openapi3.SchemaRef, error) {
	switch t := t.(type) {
	case nil:
		c.diags.Warn(CategoryUnsupported, "", "missing type descriptor")
		return genericObject(), nil
	case *typedoc.Literal:
		return literal(t.Value), nil
	case *typedoc.Reference:
		return c.compileReference(t, env)
	case *typedoc.Intrinsic:
		return c.compileIntrinsic(t, env)
	case *typedoc.Array:
		items, err := c.compile(t.Element, env)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeArray, Items: items}), nil
	case *typedoc.Inline:
		return c.compileInline(t.Declaration, env)
	case *typedoc.Intersection:
		members, err := c.compileAll(t.Types, env)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef("", &openapi3.Schema{AllOf: members}), nil
	case *typedoc.Union:
		members, err := c.compileAll(t.Types, env)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef("", &openapi3.Schema{OneOf: members}), nil
	case *typedoc.Tuple:
		members, err := c.compileAll(t.Elements, env)
		if err != nil {
			return nil, err
		}
		items := openapi3.NewSchemaRef("", &openapi3.Schema{OneOf: members})
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeArray, Items: items}), nil
	case *typedoc.Unknown:
		c.diags.Warn(CategoryUnsupported, "", "type kind %q is not handled; emitting an empty object", t.Raw)
		return genericObject(), nil
	default:
		return nil, fmt.Errorf("schema: unhandled type descriptor %T", t)
	}
}

func (c *Compiler) compileAll(types []typedoc.Type, env *Env) (openapi3.SchemaRefs, error) {
	out := make(openapi3.SchemaRefs, 0, len(types))
	for _, t := range types {
		s, err := c.compile(t, env)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func literal(v any) *openapi3.SchemaRef {
	s := &openapi3.Schema{Enum: []any{v}}
	switch v.(type) {
	case string:
		s.Type = openapi3.TypeString
	case float64, int, int64:
		s.Type = openapi3.TypeNumber
	case bool:
		s.Type = openapi3.TypeBoolean
	case nil:
		s.Type = TypeNull
	default:
		s.Type = openapi3.TypeString
		s.Enum = []any{fmt.Sprint(v)}
	}
	return openapi3.NewSchemaRef("", s)
}

func genericObject() *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeObject})
}

func (c *Compiler) compileIntrinsic(t *typedoc.Intrinsic, env *Env) (*openapi3.SchemaRef, error) {
	switch t.Name {
	case "string":
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeString}), nil
	case "number":
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeNumber}), nil
	case "boolean":
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeBoolean}), nil
	case "any":
		return genericObject(), nil
	case "undefined", "void", "null":
		return openapi3.NewSchemaRef("", &openapi3.Schema{Type: TypeNull}), nil
	}
	if shim, ok := c.shims.Lookup(t.Name); ok {
		return shim(Scope{c: c, env: env}, &typedoc.Reference{Name: t.Name})
	}
	return nil, &UnsupportedIntrinsicError{Name: t.Name}
}

func (c *Compiler) compileReference(ref *typedoc.Reference, env *Env) (*openapi3.SchemaRef, error) {
	if shim, ok := c.shims.Lookup(ref.Name); ok {
		return shim(Scope{c: c, env: env}, ref)
	}

	if c.isTypeParameter(ref, env) {
		if bound, origin, ok := env.Lookup(ref.Name); ok {
			return c.compile(bound, origin)
		}
		if ref.Target != nil && ref.Target.Default != nil {
			return c.compile(ref.Target.Default, env)
		}
		c.diags.Warn(CategoryTypeParameter, ref.Name, "type parameter has no bound argument; emitting a generic object")
		return genericObject(), nil
	}

	if decl, ok := c.declaration(ref); ok && decl.Is(typedoc.KindEnum) {
		return c.compileEnum(decl), nil
	}

	return c.resolve(ref, env)
}

// isTypeParameter reports whether ref names a type parameter, either through
// its link or because the name is bound in env and links nowhere else.
func (c *Compiler) isTypeParameter(ref *typedoc.Reference, env *Env) bool {
	if ref.TargetIs(typedoc.KindTypeParameter) || ref.TypeParameter {
		return true
	}
	if ref.Target != nil || len(ref.TypeArguments) > 0 {
		return false
	}
	_, _, bound := env.Lookup(ref.Name)
	return bound
}

// declaration finds the declaration a reference names, preferring the
// table so that same-named declarations resolve consistently.
func (c *Compiler) declaration(ref *typedoc.Reference) (*typedoc.Reflection, bool) {
	if decl, ok := c.decls.Lookup(ref.Name); ok {
		return decl, true
	}
	if ref.TargetIs(declarationKinds...) {
		return ref.Target, true
	}
	return nil, false
}

// resolve compiles the declaration behind ref into the registry, once per
// composite key, and returns a pointer to it.
func (c *Compiler) resolve(ref *typedoc.Reference, env *Env) (*openapi3.SchemaRef, error) {
	key := c.compositeKey(ref, env)
	if c.registry.Has(key) {
		return Pointer(key), nil
	}
	c.registry.Reserve(key)

	decl, ok := c.declaration(ref)
	if !ok {
		c.registry.Delete(key)
		c.reportUnresolved(key, "reference to unknown type %q", ref.Name)
		return Pointer(UnresolvedKey), nil
	}

	var bindings *Env
	for i, param := range decl.TypeParameters {
		switch {
		case i < len(ref.TypeArguments):
			bindings = bindings.Bind(param.Name, ref.TypeArguments[i], env)
		case param.Default != nil:
			bindings = bindings.Bind(param.Name, param.Default, bindings)
		default:
			c.diags.Warn(CategoryTypeParameter, key, "no argument for type parameter %q", param.Name)
		}
	}

	var (
		compiled *openapi3.SchemaRef
		err      error
	)
	switch decl.Kind {
	case typedoc.KindInterface, typedoc.KindClass:
		compiled, err = c.compileObject(decl, bindings)
	case typedoc.KindTypeAlias:
		compiled, err = c.compile(decl.Type, bindings)
	case typedoc.KindEnum:
		compiled = c.compileEnum(decl)
	default:
		c.registry.Delete(key)
		c.reportUnresolved(key, "declaration %q has unsupported kind %q", decl.Name, decl.Kind)
		return Pointer(UnresolvedKey), nil
	}
	if err != nil {
		return nil, err
	}

	c.registry.Store(key, compiled)
	c.log.WithField("schema", key).Debug("compiled named schema")
	return Pointer(key), nil
}

func (c *Compiler) reportUnresolved(key, format string, args ...any) {
	if _, seen := c.unresolved[key]; seen {
		return
	}
	c.unresolved[key] = struct{}{}
	c.diags.Error(CategoryUnresolved, key, format, args...)
}

var invalidKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// compositeKey is the registry key of a reference: its name, followed by
// the name of each type argument when there are any.
func (c *Compiler) compositeKey(ref *typedoc.Reference, env *Env) string {
	if len(ref.TypeArguments) == 0 {
		return invalidKeyChars.ReplaceAllString(ref.Name, "")
	}
	parts := make([]string, 0, len(ref.TypeArguments)+1)
	parts = append(parts, ref.Name)
	for _, arg := range ref.TypeArguments {
		parts = append(parts, c.argumentName(arg, env))
	}
	return invalidKeyChars.ReplaceAllString(strings.Join(parts, "_"), "")
}

func (c *Compiler) argumentName(t typedoc.Type, env *Env) string {
	switch t := t.(type) {
	case *typedoc.Reference:
		if c.isTypeParameter(t, env) {
			if bound, origin, ok := env.Lookup(t.Name); ok {
				return c.argumentName(bound, origin)
			}
		}
		return c.compositeKey(t, env)
	case *typedoc.Intrinsic:
		return t.Name
	case *typedoc.Literal:
		return fmt.Sprint(t.Value)
	case *typedoc.Array:
		return c.argumentName(t.Element, env) + "Array"
	case *typedoc.Union:
		return c.joinNames(t.Types, "Or", env)
	case *typedoc.Intersection:
		return c.joinNames(t.Types, "And", env)
	case *typedoc.Tuple:
		return "Tuple" + c.joinNames(t.Elements, "", env)
	case *typedoc.Inline:
		return "Object"
	default:
		return "Unknown"
	}
}

func (c *Compiler) joinNames(types []typedoc.Type, sep string, env *Env) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, c.argumentName(t, env))
	}
	return strings.Join(names, sep)
}

// compileEnum lists every member value; the schema type follows the first
// member.
func (c *Compiler) compileEnum(decl *typedoc.Reflection) *openapi3.SchemaRef {
	s := &openapi3.Schema{Enum: []any{}}
	next := 0.0
	for _, member := range decl.Children {
		if !member.Is(typedoc.KindEnumMember) {
			continue
		}
		var value any
		if lit, ok := member.Type.(*typedoc.Literal); ok {
			value = lit.Value
		} else if member.DefaultValue != "" {
			value = parseEnumInitializer(member.DefaultValue)
		} else {
			value = next
		}
		if f, ok := value.(float64); ok {
			next = f + 1
		}
		s.Enum = append(s.Enum, value)
	}

	if len(s.Enum) == 0 {
		c.diags.Warn(CategoryEmptyObject, decl.Name, "enumeration has no members")
		s.Type = openapi3.TypeString
		return openapi3.NewSchemaRef("", s)
	}
	s.Type = literal(s.Enum[0]).Value.Type
	return openapi3.NewSchemaRef("", s)
}

func parseEnumInitializer(src string) any {
	src = strings.TrimSpace(src)
	if f, err := strconv.ParseFloat(src, 64); err == nil {
		return f
	}
	return typedoc.StripQuotes(src)
}
