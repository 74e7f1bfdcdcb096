package schema

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// unwrapResult finds the payload schema inside an async wrapper. Unions are
// narrowed first to successful-content wrappers, then to members that are
// not status results; when neither narrowing leaves anything the whole
// union is compiled.
func (c *Compiler) unwrapResult(s Scope, ref *typedoc.Reference) (*openapi3.SchemaRef, error) {
	if len(ref.TypeArguments) == 0 {
		s.Diagnostics().Warn(CategoryResultUnwrap, ref.Name, "async wrapper used without a type argument")
		return genericObject(), nil
	}

	inner, scope := s.Resolve(ref.TypeArguments[0])
	union, ok := inner.(*typedoc.Union)
	if !ok {
		return scope.Compile(inner)
	}

	var content []scoped
	for _, member := range union.Types {
		m, mscope := scope.Resolve(member)
		if r, isRef := m.(*typedoc.Reference); isRef && r.Name == c.okResult && len(r.TypeArguments) > 0 {
			content = append(content, scoped{t: r.TypeArguments[0], scope: mscope})
		}
	}
	if len(content) > 0 {
		return oneOfOrSingle(content)
	}

	var payload []scoped
	for _, member := range union.Types {
		if !c.isStatusResult(scope, member) {
			payload = append(payload, scoped{t: member, scope: scope})
		}
	}
	if len(payload) == 0 {
		s.Diagnostics().Warn(CategoryResultUnwrap, ref.Name, "no payload-bearing branch found in result union; using the whole union")
		return scope.Compile(union)
	}
	return oneOfOrSingle(payload)
}

type scoped struct {
	t     typedoc.Type
	scope Scope
}

func oneOfOrSingle(types []scoped) (*openapi3.SchemaRef, error) {
	if len(types) == 1 {
		return types[0].scope.Compile(types[0].t)
	}
	members := make(openapi3.SchemaRefs, 0, len(types))
	for _, st := range types {
		m, err := st.scope.Compile(st.t)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return openapi3.NewSchemaRef("", &openapi3.Schema{OneOf: members}), nil
}

// isStatusResult reports whether t resolves to a declaration implementing
// the status-result marker interface.
func (c *Compiler) isStatusResult(s Scope, t typedoc.Type) bool {
	resolved, scope := s.Resolve(t)
	ref, ok := resolved.(*typedoc.Reference)
	if !ok {
		return false
	}
	decl, ok := scope.Declaration(ref)
	if !ok {
		return false
	}
	for _, impl := range decl.ImplementedTypes {
		if r, ok := impl.(*typedoc.Reference); ok && r.Name == c.resultMarker {
			return true
		}
	}
	return false
}
