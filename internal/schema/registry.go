package schema

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

const componentPrefix = "#/components/schemas/"

// UnresolvedKey is the component name every unresolvable reference points at.
const UnresolvedKey = "ERR"

// Pointer returns a schema that refers to a named component.
func Pointer(key string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(componentPrefix+key, nil)
}

// IsPointer reports whether ref points at a component instead of carrying
// an inline schema.
func IsPointer(ref *openapi3.SchemaRef) bool {
	return ref != nil && ref.Ref != ""
}

// Registry memoizes compiled named schemas by composite key. A key is
// reserved with an empty placeholder before its declaration is compiled so
// that cyclic references resolve to a pointer.
type Registry struct {
	entries map[string]*openapi3.SchemaRef
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*openapi3.SchemaRef)}
}

func (r *Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Reserve inserts an empty placeholder for key.
func (r *Registry) Reserve(key string) {
	r.entries[key] = openapi3.NewSchemaRef("", &openapi3.Schema{})
}

// Store overwrites the entry for key.
func (r *Registry) Store(key string, s *openapi3.SchemaRef) {
	r.entries[key] = s
}

func (r *Registry) Delete(key string) {
	delete(r.entries, key)
}

// Export returns the registry as a components schema map, skipping empty
// entries.
func (r *Registry) Export() openapi3.Schemas {
	out := make(openapi3.Schemas, len(r.entries))
	for key, s := range r.entries {
		if s == nil || (s.Ref == "" && s.Value == nil) {
			continue
		}
		out[key] = s
	}
	return out
}

// DeclarationTable indexes every interface, class, alias and enumeration of
// a project by bare name. It is filled once and read-only afterwards.
type DeclarationTable struct {
	byName map[string]*typedoc.Reflection
}

// NewDeclarationTable scans the project. When two declarations share a name
// the later one wins and a declaration warning is reported.
func NewDeclarationTable(project *typedoc.Project, diags *Diagnostics) *DeclarationTable {
	t := &DeclarationTable{byName: make(map[string]*typedoc.Reflection)}
	if project == nil {
		return t
	}
	for _, decl := range typedoc.Find(project.Root, declarationKinds...) {
		if prev, ok := t.byName[decl.Name]; ok && prev != decl {
			diags.Warn(CategoryDeclaration, decl.Name,
				"declaration name registered twice (ids %v and %v); the later declaration wins", prev.ID, decl.ID)
		}
		t.byName[decl.Name] = decl
	}
	return t
}

var declarationKinds = []typedoc.Kind{
	typedoc.KindInterface,
	typedoc.KindClass,
	typedoc.KindTypeAlias,
	typedoc.KindEnum,
}

func (t *DeclarationTable) Lookup(name string) (*typedoc.Reflection, bool) {
	decl, ok := t.byName[name]
	return decl, ok
}

func (t *DeclarationTable) Len() int { return len(t.byName) }
