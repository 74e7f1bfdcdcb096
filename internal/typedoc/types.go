package typedoc

// TypeKind discriminates Type variants. The values match TypeDoc's "type" field.
type TypeKind string

const (
	TypeLiteral      TypeKind = "literal"
	TypeReference    TypeKind = "reference"
	TypeIntrinsic    TypeKind = "intrinsic"
	TypeArray        TypeKind = "array"
	TypeInline       TypeKind = "reflection"
	TypeIntersection TypeKind = "intersection"
	TypeUnion        TypeKind = "union"
	TypeTuple        TypeKind = "tuple"
	TypeUnknown      TypeKind = "unknown"
)

// Type is a type descriptor. The set of implementations is closed; switch
// over the concrete pointer types below.
type Type interface {
	Kind() TypeKind
	isType()
}

// Literal is a literal type. Value holds a string, float64, bool or nil.
type Literal struct {
	Value any
}

// Reference names another type, optionally with type arguments. Target is
// the linked reflection when the exporter recorded one. TypeParameter is set
// by exporters that flag references to type parameters instead of linking them.
type Reference struct {
	Name          string
	TypeArguments []Type
	Target        *Reflection
	TypeParameter bool
}

// Intrinsic is a built-in such as string, number, any or void.
type Intrinsic struct {
	Name string
}

type Array struct {
	Element Type
}

// Inline is an anonymous structure declared in place.
type Inline struct {
	Declaration *Reflection
}

type Intersection struct {
	Types []Type
}

type Union struct {
	Types []Type
}

type Tuple struct {
	Elements []Type
}

// Unknown keeps a descriptor whose kind this package does not model.
type Unknown struct {
	Raw string
}

func (*Literal) Kind() TypeKind      { return TypeLiteral }
func (*Reference) Kind() TypeKind    { return TypeReference }
func (*Intrinsic) Kind() TypeKind    { return TypeIntrinsic }
func (*Array) Kind() TypeKind        { return TypeArray }
func (*Inline) Kind() TypeKind       { return TypeInline }
func (*Intersection) Kind() TypeKind { return TypeIntersection }
func (*Union) Kind() TypeKind        { return TypeUnion }
func (*Tuple) Kind() TypeKind        { return TypeTuple }
func (*Unknown) Kind() TypeKind      { return TypeUnknown }

func (*Literal) isType()      {}
func (*Reference) isType()    {}
func (*Intrinsic) isType()    {}
func (*Array) isType()        {}
func (*Inline) isType()       {}
func (*Intersection) isType() {}
func (*Union) isType()        {}
func (*Tuple) isType()        {}
func (*Unknown) isType()      {}

// TargetIs reports whether a reference links to a reflection of one of kinds.
func (r *Reference) TargetIs(kinds ...Kind) bool {
	return r != nil && r.Target.Is(kinds...)
}
