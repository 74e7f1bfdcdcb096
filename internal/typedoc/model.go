package typedoc

import "strings"

// Kind is the reflection discriminator TypeDoc writes as kindString.
type Kind string

const (
	KindProject        Kind = "Project"
	KindModule         Kind = "Module"
	KindNamespace      Kind = "Namespace"
	KindInterface      Kind = "Interface"
	KindClass          Kind = "Class"
	KindTypeAlias      Kind = "Type alias"
	KindEnum           Kind = "Enumeration"
	KindEnumMember     Kind = "Enumeration member"
	KindTypeParameter  Kind = "Type parameter"
	KindProperty       Kind = "Property"
	KindMethod         Kind = "Method"
	KindConstructor    Kind = "Constructor"
	KindCallSignature  Kind = "Call signature"
	KindParameter      Kind = "Parameter"
	KindTypeLiteral    Kind = "Type literal"
	KindIndexSignature Kind = "Index signature"
)

// Project is the decoded root of a TypeDoc JSON export.
type Project struct {
	Name string
	Root *Reflection

	byID map[int]*Reflection
}

// ByID returns the reflection registered under a TypeDoc id.
func (p *Project) ByID(id int) (*Reflection, bool) {
	if p == nil {
		return nil, false
	}
	r, ok := p.byID[id]
	return r, ok
}

// Reflection is one declaration node: interfaces, classes, aliases, enums,
// members, signatures and parameters all share this shape.
type Reflection struct {
	ID               int
	Name             string
	Kind             Kind
	Flags            Flags
	Comment          *Comment
	Decorators       []Decorator
	Children         []*Reflection
	Signatures       []*Reflection
	Parameters       []*Reflection
	TypeParameters   []*Reflection
	IndexSignature   *Reflection
	ImplementedTypes []Type

	// Type is the property or parameter type, a signature's return type,
	// an alias target or a type parameter's constraint.
	Type Type
	// Default is a type parameter's default argument.
	Default Type
	// DefaultValue is the source text of an initializer.
	DefaultValue string
}

func (r *Reflection) Is(kinds ...Kind) bool {
	if r == nil {
		return false
	}
	for _, k := range kinds {
		if r.Kind == k {
			return true
		}
	}
	return false
}

// Decorator returns the first annotation with the given name.
func (r *Reflection) Decorator(name string) (*Decorator, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Decorators {
		if r.Decorators[i].Name == name {
			return &r.Decorators[i], true
		}
	}
	return nil, false
}

type Flags struct {
	IsOptional  bool
	IsPublic    bool
	IsPrivate   bool
	IsProtected bool
	IsStatic    bool
}

type Comment struct {
	ShortText string
	Text      string
	Returns   string
	Tags      []CommentTag
}

type CommentTag struct {
	Tag  string
	Text string
}

// Short returns the first paragraph of the comment, or "" for a nil comment.
func (c *Comment) Short() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ShortText)
}

// Simple joins the short text and the body text with a blank line.
func (c *Comment) Simple() string {
	if c == nil {
		return ""
	}
	short := strings.TrimSpace(c.ShortText)
	text := strings.TrimSpace(c.Text)
	switch {
	case short == "":
		return text
	case text == "":
		return short
	default:
		return short + "\n\n" + text
	}
}

// HasTag reports whether a block tag such as "deprecated" is present.
// A leading "@" on either side is ignored.
func (c *Comment) HasTag(name string) bool {
	if c == nil {
		return false
	}
	name = strings.TrimPrefix(name, "@")
	for _, t := range c.Tags {
		if strings.EqualFold(strings.TrimPrefix(t.Tag, "@"), name) {
			return true
		}
	}
	return false
}

// Decorator is an annotation with its keyword arguments as source text.
type Decorator struct {
	Name      string
	Arguments map[string]string
}

// Argument returns the first keyword argument found among keys with any
// surrounding quotes removed. When none of the keys match and the decorator
// carries exactly one argument, that argument is returned.
func (d *Decorator) Argument(keys ...string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, k := range keys {
		if v, ok := d.Arguments[k]; ok {
			return StripQuotes(v), true
		}
	}
	if len(d.Arguments) == 1 {
		for _, v := range d.Arguments {
			return StripQuotes(v), true
		}
	}
	return "", false
}

// StripQuotes removes one pair of matching ', " or ` quotes.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '\'' || first == '"' || first == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
