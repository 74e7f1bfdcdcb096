package schema

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// compileObject builds an object schema from an interface, class or type
// literal. Properties keep declaration order in Required; pointer-valued
// properties carry no title or description of their own.
func (c *Compiler) compileObject(decl *typedoc.Reflection, env *Env) (*openapi3.SchemaRef, error) {
	obj := &openapi3.Schema{
		Type:        openapi3.TypeObject,
		Description: decl.Comment.Simple(),
	}

	if decl.IndexSignature != nil && decl.IndexSignature.Type != nil {
		values, err := c.compile(decl.IndexSignature.Type, env)
		if err != nil {
			return nil, err
		}
		obj.AdditionalProperties = openapi3.AdditionalProperties{Schema: values}
	}

	props := properties(decl)
	if len(props) == 0 {
		if obj.AdditionalProperties.Schema == nil {
			c.diags.Warn(CategoryEmptyObject, decl.Name, "object has no properties and no index signature")
		}
		return openapi3.NewSchemaRef("", obj), nil
	}

	obj.Properties = make(openapi3.Schemas, len(props))
	obj.Required = []string{}
	for _, prop := range props {
		s, err := c.compile(prop.Type, env)
		if err != nil {
			return nil, err
		}
		if !IsPointer(s) {
			if doc := prop.Comment.Simple(); doc != "" {
				s.Value.Title = doc
				s.Value.Description = doc
			}
		}
		obj.Properties[prop.Name] = s
		if !prop.Flags.IsOptional {
			obj.Required = append(obj.Required, prop.Name)
		}
	}
	return openapi3.NewSchemaRef("", obj), nil
}

// properties returns the instance properties that carry a type.
func properties(decl *typedoc.Reflection) []*typedoc.Reflection {
	var out []*typedoc.Reflection
	for _, child := range decl.Children {
		if !child.Is(typedoc.KindProperty) || child.Type == nil || child.Flags.IsStatic {
			continue
		}
		out = append(out, child)
	}
	return out
}

// compileInline translates an anonymous structure. It is never registered
// under a name.
func (c *Compiler) compileInline(decl *typedoc.Reflection, env *Env) (*openapi3.SchemaRef, error) {
	switch {
	case len(properties(decl)) > 0:
		return c.compileObject(decl, env)
	case decl.IndexSignature != nil && decl.IndexSignature.Type != nil:
		values, err := c.compile(decl.IndexSignature.Type, env)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef("", &openapi3.Schema{
			Type:                 openapi3.TypeObject,
			AdditionalProperties: openapi3.AdditionalProperties{Schema: values},
		}), nil
	default:
		c.diags.Warn(CategoryEmptyObject, "", "inline structure has neither properties nor an index signature")
		return genericObject(), nil
	}
}
