package schema

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// ShimFunc fully replaces the translation of a named type, type arguments
// included. It compiles nested types through the Scope it is given.
type ShimFunc func(s Scope, ref *typedoc.Reference) (*openapi3.SchemaRef, error)

// ShimRegistry maps type names to shims.
type ShimRegistry struct {
	shims map[string]ShimFunc
	diags *Diagnostics
}

func NewShimRegistry(diags *Diagnostics) *ShimRegistry {
	return &ShimRegistry{shims: make(map[string]ShimFunc), diags: diags}
}

// Register adds or replaces the shim for name. Replacing reports a
// shim-override warning.
func (r *ShimRegistry) Register(name string, fn ShimFunc) {
	if _, exists := r.shims[name]; exists {
		r.diags.Warn(CategoryShimOverride, name, "replacing registered shim")
	}
	r.shims[name] = fn
}

func (r *ShimRegistry) Lookup(name string) (ShimFunc, bool) {
	fn, ok := r.shims[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *ShimRegistry) Names() []string {
	names := make([]string, 0, len(r.shims))
	for name := range r.shims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scope is the compilation context a shim runs in: the compiler plus the
// generic bindings in effect where the shimmed type was referenced.
type Scope struct {
	c   *Compiler
	env *Env
}

// Compile translates t with the bindings of this scope.
func (s Scope) Compile(t typedoc.Type) (*openapi3.SchemaRef, error) {
	return s.c.compile(t, s.env)
}

// Resolve follows type parameter bindings until t is no longer a bound type
// parameter, returning the concrete type and the scope it belongs to.
func (s Scope) Resolve(t typedoc.Type) (typedoc.Type, Scope) {
	for {
		ref, ok := t.(*typedoc.Reference)
		if !ok || !s.c.isTypeParameter(ref, s.env) {
			return t, s
		}
		bound, origin, ok := s.env.Lookup(ref.Name)
		if !ok {
			return t, s
		}
		t, s = bound, Scope{c: s.c, env: origin}
	}
}

// Declaration returns the declaration a reference resolves to.
func (s Scope) Declaration(ref *typedoc.Reference) (*typedoc.Reflection, bool) {
	return s.c.declaration(ref)
}

// Diagnostics exposes the collector so shims can report recoverable problems.
func (s Scope) Diagnostics() *Diagnostics { return s.c.diags }

func (c *Compiler) registerBuiltinShims() {
	c.shims.Register("Moment", dateTime)
	c.shims.Register("Date", dateTime)
	c.shims.Register("unknown", genericObjectShim)
	c.shims.Register("object", genericObjectShim)
	c.shims.Register("Record", record)
	c.shims.Register("Array", arrayOf)
	c.shims.Register(c.asyncWrapper, c.unwrapResult)
	c.shims.Register(c.okResult, firstTypeArgument)
}

func dateTime(Scope, *typedoc.Reference) (*openapi3.SchemaRef, error) {
	return openapi3.NewSchemaRef("", &openapi3.Schema{Type: openapi3.TypeString, Format: "date-time"}), nil
}

func genericObjectShim(Scope, *typedoc.Reference) (*openapi3.SchemaRef, error) {
	return genericObject(), nil
}

// firstTypeArgument unwraps Wrapper<T> to T.
func firstTypeArgument(s Scope, ref *typedoc.Reference) (*openapi3.SchemaRef, error) {
	if len(ref.TypeArguments) == 0 {
		s.Diagnostics().Warn(CategoryUnsupported, ref.Name, "wrapper used without a type argument")
		return genericObject(), nil
	}
	return s.Compile(ref.TypeArguments[0])
}

// record translates Record<K, V> to an object whose values are V.
func record(s Scope, ref *typedoc.Reference) (*openapi3.SchemaRef, error) {
	obj := &openapi3.Schema{Type: openapi3.TypeObject}
	if len(ref.TypeArguments) < 2 {
		return openapi3.NewSchemaRef("", obj), nil
	}
	value, err := s.Compile(ref.TypeArguments[1])
	if err != nil {
		return nil, err
	}
	obj.AdditionalProperties = openapi3.AdditionalProperties{Schema: value}
	return openapi3.NewSchemaRef("", obj), nil
}

func arrayOf(s Scope, ref *typedoc.Reference) (*openapi3.SchemaRef, error) {
	arr := &openapi3.Schema{Type: openapi3.TypeArray}
	if len(ref.TypeArguments) == 0 {
		arr.Items = genericObject()
		return openapi3.NewSchemaRef("", arr), nil
	}
	items, err := s.Compile(ref.TypeArguments[0])
	if err != nil {
		return nil, err
	}
	arr.Items = items
	return openapi3.NewSchemaRef("", arr), nil
}
