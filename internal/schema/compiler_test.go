package schema

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

func loadProject(t *testing.T, name string) *typedoc.Project {
	t.Helper()
	project, err := typedoc.Load(context.Background(), filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return project
}

func newCompiler(t *testing.T, project *typedoc.Project, opts ...Option) (*Compiler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(project, opts...), hook
}

func ref(name string, args ...typedoc.Type) *typedoc.Reference {
	return &typedoc.Reference{Name: name, TypeArguments: args}
}

func component(t *testing.T, c *Compiler, key string) *openapi3.Schema {
	t.Helper()
	s, ok := c.Schemas()[key]
	require.True(t, ok, "component %q missing", key)
	require.NotNil(t, s.Value)
	return s.Value
}

func TestCompile_GettingStartedBody(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "getting_started.json"))

	out, err := c.Compile(ref("IBodyData"))
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/IBodyData", out.Ref)
	assert.Nil(t, out.Value)

	body := component(t, c, "IBodyData")
	assert.Equal(t, openapi3.TypeObject, body.Type)
	assert.Contains(t, body.Description, "{TST1}")
	assert.Equal(t, []string{"stringType", "numberType", "enumeratedLiterals", "enumeration", "inferredType", "indexedType"}, body.Required)
	assert.NotContains(t, body.Required, "boolType")
	assert.NotContains(t, body.Required, "unionType")

	str := body.Properties["stringType"].Value
	assert.Equal(t, openapi3.TypeString, str.Type)
	assert.Contains(t, str.Title, "{TST2}")
	assert.Equal(t, str.Title, str.Description)

	assert.Equal(t, openapi3.TypeNumber, body.Properties["numberType"].Value.Type)
	assert.Equal(t, openapi3.TypeBoolean, body.Properties["boolType"].Value.Type)

	literals := body.Properties["enumeratedLiterals"].Value
	require.Len(t, literals.OneOf, 3)
	assert.Equal(t, []any{"one"}, literals.OneOf[0].Value.Enum)
	assert.Equal(t, openapi3.TypeString, literals.OneOf[2].Value.Type)

	enum := body.Properties["enumeration"].Value
	assert.Equal(t, openapi3.TypeNumber, enum.Type)
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, enum.Enum)

	inferred := body.Properties["inferredType"].Value
	assert.Equal(t, openapi3.TypeObject, inferred.Type)
	assert.Contains(t, inferred.Title, "{TST6}")
	sub := inferred.Properties["subProperty2"].Value
	assert.Equal(t, openapi3.TypeString, sub.Type)
	assert.Contains(t, sub.Title, "{TST7}")
	assert.Equal(t, []string{"subProperty1", "subProperty2"}, inferred.Required)

	indexed := body.Properties["indexedType"].Value
	assert.Equal(t, openapi3.TypeObject, indexed.Type)
	require.NotNil(t, indexed.AdditionalProperties.Schema)
	assert.Equal(t, openapi3.TypeNumber, indexed.AdditionalProperties.Schema.Value.Type)
	assert.Contains(t, indexed.Title, "{TST8}")

	union := body.Properties["unionType"].Value
	require.Len(t, union.OneOf, 3)
	assert.Equal(t, openapi3.TypeString, union.OneOf[0].Value.Type)
	assert.Contains(t, union.Title, "{TST9}")

	assert.Len(t, c.Schemas(), 1, "inline structures are never registered")
}

func TestCompile_ShimmedTimestamp(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "getting_started.json"))

	_, err := c.Compile(ref("IReturnData"))
	require.NoError(t, err)

	ret := component(t, c, "IReturnData")
	ts := ret.Properties["timestamp"].Value
	assert.Equal(t, openapi3.TypeString, ts.Type)
	assert.Equal(t, "date-time", ts.Format)
	assert.Contains(t, ts.Title, "{TST11}")
	assert.Empty(t, c.Diagnostics())
}

func TestCompile_RequiredCountsMatchOptionalFlags(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	_, err := c.Compile(ref("Order"))
	require.NoError(t, err)

	order := component(t, c, "Order")
	assert.Equal(t, []string{"id", "customer", "lines", "placedAt", "status"}, order.Required)
	for _, optional := range []string{"metadata", "parent", "position"} {
		assert.NotContains(t, order.Required, optional)
		assert.Contains(t, order.Properties, optional)
	}
}

func TestCompile_CyclesResolveToPointers(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	_, err := c.Compile(ref("Order"))
	require.NoError(t, err)

	order := component(t, c, "Order")
	customer := component(t, c, "Customer")

	assert.Equal(t, openapi3.TypeObject, order.Type)
	assert.Equal(t, openapi3.TypeObject, customer.Type)
	assert.Equal(t, "#/components/schemas/Customer", order.Properties["customer"].Ref)
	assert.Equal(t, "#/components/schemas/Order", order.Properties["parent"].Ref)
	assert.Equal(t, "#/components/schemas/Order", customer.Properties["orders"].Value.Items.Ref)

	// Pointers never carry inline documentation.
	assert.Nil(t, order.Properties["customer"].Value)
}

func TestCompile_AliasesAndShims(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	_, err := c.Compile(ref("Order"))
	require.NoError(t, err)
	order := component(t, c, "Order")

	assert.Equal(t, "#/components/schemas/OrderStatus", order.Properties["status"].Ref)
	status := component(t, c, "OrderStatus")
	require.Len(t, status.OneOf, 2)
	assert.Equal(t, []any{"closed"}, status.OneOf[1].Value.Enum)

	placed := order.Properties["placedAt"].Value
	assert.Equal(t, "date-time", placed.Format)

	metadata := order.Properties["metadata"].Value
	assert.Equal(t, openapi3.TypeObject, metadata.Type)
	require.NotNil(t, metadata.AdditionalProperties.Schema)
	assert.Equal(t, openapi3.TypeObject, metadata.AdditionalProperties.Schema.Value.Type)

	position := order.Properties["position"].Value
	assert.Equal(t, openapi3.TypeArray, position.Type)
	require.Len(t, position.Items.Value.OneOf, 2)
	assert.Equal(t, openapi3.TypeNumber, position.Items.Value.OneOf[0].Value.Type)
	assert.Equal(t, openapi3.TypeString, position.Items.Value.OneOf[1].Value.Type)

	_, err = c.Compile(ref("Audited"))
	require.NoError(t, err)
	audited := component(t, c, "Audited")
	require.Len(t, audited.AllOf, 2)
	assert.Equal(t, "#/components/schemas/Order", audited.AllOf[0].Ref)
	assert.Contains(t, audited.AllOf[1].Value.Properties, "auditor")
}

func TestCompile_GenericInstantiations(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	orders, err := c.Compile(ref("Page", ref("Order")))
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/Page_Order", orders.Ref)

	customers, err := c.Compile(ref("Page", ref("Customer")))
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/Page_Customer", customers.Ref)

	pageOrder := component(t, c, "Page_Order")
	assert.Equal(t, "#/components/schemas/Order", pageOrder.Properties["items"].Value.Items.Ref)
	assert.Equal(t, "#/components/schemas/Page_Order", pageOrder.Properties["next"].Ref)
	assert.Contains(t, pageOrder.Description, "One page")

	pageCustomer := component(t, c, "Page_Customer")
	assert.Equal(t, "#/components/schemas/Customer", pageCustomer.Properties["items"].Value.Items.Ref)
	assert.Equal(t, "#/components/schemas/Page_Customer", pageCustomer.Properties["next"].Ref)

	_, hasBare := c.Schemas()["Page"]
	assert.False(t, hasBare)
}

func TestCompile_NestedGenericArgumentsKeepTheirOwnBindings(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	out, err := c.Compile(ref("Page", ref("Page", ref("OrderLine"))))
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/Page_Page_OrderLine", out.Ref)

	outer := component(t, c, "Page_Page_OrderLine")
	assert.Equal(t, "#/components/schemas/Page_OrderLine", outer.Properties["items"].Value.Items.Ref)
	inner := component(t, c, "Page_OrderLine")
	assert.Equal(t, "#/components/schemas/OrderLine", inner.Properties["items"].Value.Items.Ref)
}

func TestCompile_Intrinsics(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, nil)

	for _, name := range []string{"string", "boolean", "number"} {
		out, err := c.Compile(&typedoc.Intrinsic{Name: name})
		require.NoError(t, err)
		assert.Equal(t, name, out.Value.Type)
	}

	anyOut, err := c.Compile(&typedoc.Intrinsic{Name: "any"})
	require.NoError(t, err)
	assert.Equal(t, &openapi3.Schema{Type: openapi3.TypeObject}, anyOut.Value)

	for _, name := range []string{"void", "undefined"} {
		out, err := c.Compile(&typedoc.Intrinsic{Name: name})
		require.NoError(t, err)
		assert.Equal(t, TypeNull, out.Value.Type)
	}

	unknownOut, err := c.Compile(&typedoc.Intrinsic{Name: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, openapi3.TypeObject, unknownOut.Value.Type)

	_, err = c.Compile(&typedoc.Intrinsic{Name: "bigint"})
	var unsupported *UnsupportedIntrinsicError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "bigint", unsupported.Name)
}

func TestCompile_IntrinsicErrorAbortsThroughObjects(t *testing.T) {
	t.Parallel()
	project, err := typedoc.Decode([]byte(`{"id": 0, "name": "p", "kindString": "Project", "children": [
		{"id": 1, "name": "Weird", "kindString": "Interface", "children": [
			{"id": 2, "name": "sym", "kindString": "Property", "type": {"type": "intrinsic", "name": "symbol"}}
		]}
	]}`))
	require.NoError(t, err)
	c, _ := newCompiler(t, project)

	_, err = c.Compile(ref("Weird"))
	var unsupported *UnsupportedIntrinsicError
	assert.True(t, errors.As(err, &unsupported))
}

func TestCompile_Literals(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, nil)

	cases := []struct {
		value any
		typ   string
	}{
		{"x", openapi3.TypeString},
		{2.5, openapi3.TypeNumber},
		{true, openapi3.TypeBoolean},
		{nil, TypeNull},
	}
	for _, tc := range cases {
		out, err := c.Compile(&typedoc.Literal{Value: tc.value})
		require.NoError(t, err)
		assert.Equal(t, tc.typ, out.Value.Type)
		assert.Equal(t, []any{tc.value}, out.Value.Enum)
	}
}

func TestCompile_UnknownKindIsRecoverable(t *testing.T) {
	t.Parallel()
	c, hook := newCompiler(t, nil)

	out, err := c.Compile(&typedoc.Unknown{Raw: "conditional"})
	require.NoError(t, err)
	assert.Equal(t, &openapi3.Schema{Type: openapi3.TypeObject}, out.Value)

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, CategoryUnsupported, diags[0].Category)
	assert.False(t, c.HasErrors())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCompile_UnresolvedReference(t *testing.T) {
	t.Parallel()
	c, hook := newCompiler(t, loadProject(t, "orders.json"))

	out, err := c.Compile(ref("Missing"))
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/ERR", out.Ref)

	again, err := c.Compile(&typedoc.Array{Element: ref("Missing")})
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/ERR", again.Value.Items.Ref)

	assert.True(t, c.HasErrors())
	assert.Len(t, c.Diagnostics(), 1, "each unresolved key is reported once")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.NotContains(t, c.Schemas(), "Missing")
}

func TestCompile_EmptyDeclarationWarns(t *testing.T) {
	t.Parallel()
	c, _ := newCompiler(t, loadProject(t, "orders.json"))

	_, err := c.Compile(ref("NotFoundResult"))
	require.NoError(t, err)

	nf := component(t, c, "NotFoundResult")
	assert.Equal(t, openapi3.TypeObject, nf.Type)
	assert.Empty(t, nf.Properties)

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, CategoryEmptyObject, diags[0].Category)
	assert.Equal(t, "NotFoundResult", diags[0].Subject)
}

func TestCompile_EnumInitializers(t *testing.T) {
	t.Parallel()
	project, err := typedoc.Decode([]byte(`{"id": 0, "name": "p", "kindString": "Project", "children": [
		{"id": 1, "name": "Color", "kindString": "Enumeration", "children": [
			{"id": 2, "name": "Red", "kindString": "Enumeration member", "defaultValue": "\"red\""},
			{"id": 3, "name": "Blue", "kindString": "Enumeration member", "defaultValue": "'blue'"}
		]},
		{"id": 4, "name": "Step", "kindString": "Enumeration", "children": [
			{"id": 5, "name": "First", "kindString": "Enumeration member"},
			{"id": 6, "name": "Second", "kindString": "Enumeration member"},
			{"id": 7, "name": "Tenth", "kindString": "Enumeration member", "defaultValue": "10"},
			{"id": 8, "name": "Eleventh", "kindString": "Enumeration member"}
		]}
	]}`))
	require.NoError(t, err)
	c, _ := newCompiler(t, project)

	color, err := c.Compile(&typedoc.Reference{Name: "Color", Target: project.Root.Children[0]})
	require.NoError(t, err)
	assert.Equal(t, openapi3.TypeString, color.Value.Type)
	assert.Equal(t, []any{"red", "blue"}, color.Value.Enum)

	step, err := c.Compile(ref("Step"))
	require.NoError(t, err)
	assert.Equal(t, openapi3.TypeNumber, step.Value.Type)
	assert.Equal(t, []any{0.0, 1.0, 10.0, 11.0}, step.Value.Enum)

	assert.Empty(t, c.Schemas(), "enumerations are inlined")
}

func TestCompile_DefaultTypeArguments(t *testing.T) {
	t.Parallel()
	project, err := typedoc.Decode([]byte(`{"id": 0, "name": "p", "kindString": "Project", "children": [
		{"id": 1, "name": "Box", "kindString": "Interface",
		 "typeParameter": [{"id": 2, "name": "T", "kindString": "Type parameter", "default": {"type": "intrinsic", "name": "string"}}],
		 "children": [{"id": 3, "name": "value", "kindString": "Property", "type": {"type": "reference", "id": 2, "name": "T"}}]}
	]}`))
	require.NoError(t, err)
	c, _ := newCompiler(t, project)

	_, err = c.Compile(ref("Box"))
	require.NoError(t, err)
	box := component(t, c, "Box")
	assert.Equal(t, openapi3.TypeString, box.Properties["value"].Value.Type)

	_, err = c.Compile(ref("Box", &typedoc.Intrinsic{Name: "number"}))
	require.NoError(t, err)
	assert.Equal(t, openapi3.TypeNumber, component(t, c, "Box_number").Properties["value"].Value.Type)
}

func TestCompile_IsDeterministic(t *testing.T) {
	t.Parallel()
	project := loadProject(t, "orders.json")

	render := func() []byte {
		c, _ := newCompiler(t, project)
		_, err := c.Compile(ref("Page", ref("Order")))
		require.NoError(t, err)
		_, err = c.Compile(ref("Audited"))
		require.NoError(t, err)
		b, err := json.Marshal(c.Schemas())
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(render()), string(render()))
}

func TestEnv_BindingsDoNotLeak(t *testing.T) {
	t.Parallel()

	var root *Env
	a := root.Bind("T", &typedoc.Intrinsic{Name: "string"}, nil)
	b := root.Bind("T", &typedoc.Intrinsic{Name: "number"}, nil)
	shadow := a.Bind("T", &typedoc.Intrinsic{Name: "boolean"}, a)

	got, _, ok := a.Lookup("T")
	require.True(t, ok)
	assert.Equal(t, &typedoc.Intrinsic{Name: "string"}, got)

	got, _, _ = b.Lookup("T")
	assert.Equal(t, &typedoc.Intrinsic{Name: "number"}, got)

	got, origin, _ := shadow.Lookup("T")
	assert.Equal(t, &typedoc.Intrinsic{Name: "boolean"}, got)
	assert.Same(t, a, origin)

	_, _, ok = root.Lookup("T")
	assert.False(t, ok)
	assert.Equal(t, 0, root.Len())
	assert.Equal(t, 2, shadow.Len())
}
