package typedoc

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Raw mirrors of the TypeDoc JSON export. Both the 0.22 comment layout
// (shortText/text/returns/tags) and the 0.23+ layout (summary/blockTags)
// are accepted.

type rawReflection struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	KindString       string           `json:"kindString"`
	Flags            rawFlags         `json:"flags"`
	Comment          *rawComment      `json:"comment"`
	Decorators       []rawDecorator   `json:"decorators"`
	Children         []*rawReflection `json:"children"`
	Signatures       []*rawReflection `json:"signatures"`
	Parameters       []*rawReflection `json:"parameters"`
	TypeParameter    []*rawReflection `json:"typeParameter"`
	TypeParameters   []*rawReflection `json:"typeParameters"`
	IndexSignature   jsontext.Value   `json:"indexSignature"`
	IndexSignatures  []*rawReflection `json:"indexSignatures"`
	ImplementedTypes []*rawType       `json:"implementedTypes"`
	Type             *rawType         `json:"type"`
	Default          *rawType         `json:"default"`
	DefaultValue     string           `json:"defaultValue"`
}

type rawFlags struct {
	IsOptional  bool `json:"isOptional"`
	IsPublic    bool `json:"isPublic"`
	IsPrivate   bool `json:"isPrivate"`
	IsProtected bool `json:"isProtected"`
	IsStatic    bool `json:"isStatic"`
}

type rawComment struct {
	ShortText    string           `json:"shortText"`
	Text         string           `json:"text"`
	Returns      string           `json:"returns"`
	Tags         []rawCommentTag  `json:"tags"`
	Summary      []rawCommentPart `json:"summary"`
	BlockTags    []rawBlockTag    `json:"blockTags"`
	ModifierTags []string         `json:"modifierTags"`
}

type rawCommentTag struct {
	Tag     string `json:"tag"`
	TagName string `json:"tagName"`
	Text    string `json:"text"`
}

type rawCommentPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type rawBlockTag struct {
	Tag     string           `json:"tag"`
	Content []rawCommentPart `json:"content"`
}

type rawDecorator struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rawType struct {
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	ID            *int           `json:"id"`
	Target        any            `json:"target"`
	TypeParameter bool           `json:"refersToTypeParameter"`
	Value         any            `json:"value"`
	TypeArguments []*rawType     `json:"typeArguments"`
	ElementType   *rawType       `json:"elementType"`
	Types         []*rawType     `json:"types"`
	Elements      []*rawType     `json:"elements"`
	Declaration   *rawReflection `json:"declaration"`
}

// Decode parses a TypeDoc JSON export and links references to their
// declarations.
func Decode(data []byte) (*Project, error) {
	var root rawReflection
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ParseError, Message: fmt.Sprintf("typedoc: decode: %v", err), Cause: err}
	}
	if root.Name == "" && len(root.Children) == 0 {
		return nil, &LoadError{Code: ModelError, Message: "typedoc: document has no name and no declarations"}
	}

	d := &decoder{byID: make(map[int]*Reflection)}
	top := d.reflection(&root)
	if d.err != nil {
		return nil, d.err
	}
	if top.Kind == "" {
		top.Kind = KindProject
	}
	d.link()

	return &Project{Name: top.Name, Root: top, byID: d.byID}, nil
}

type pendingRef struct {
	ref *Reference
	id  int
}

type decoder struct {
	byID    map[int]*Reflection
	pending []pendingRef
	err     error
}

func (d *decoder) reflection(raw *rawReflection) *Reflection {
	if raw == nil {
		return nil
	}
	r := &Reflection{
		ID:           raw.ID,
		Name:         raw.Name,
		Kind:         Kind(raw.KindString),
		Flags:        Flags(raw.Flags),
		Comment:      convertComment(raw.Comment),
		DefaultValue: raw.DefaultValue,
	}
	// Id 0 is the project itself; nested reflections never reuse it.
	if raw.ID != 0 || raw.KindString == string(KindProject) {
		d.byID[raw.ID] = r
	}

	for _, dec := range raw.Decorators {
		r.Decorators = append(r.Decorators, Decorator{Name: dec.Name, Arguments: stringifyArguments(dec.Arguments)})
	}

	r.Children = d.reflections(raw.Children)
	r.Signatures = d.reflections(raw.Signatures)
	r.Parameters = d.reflections(raw.Parameters)
	typeParams := raw.TypeParameters
	if len(typeParams) == 0 {
		typeParams = raw.TypeParameter
	}
	r.TypeParameters = d.reflections(typeParams)
	r.IndexSignature = d.reflection(d.indexSignature(raw))

	for _, it := range raw.ImplementedTypes {
		r.ImplementedTypes = append(r.ImplementedTypes, d.typ(it))
	}
	r.Type = d.typ(raw.Type)
	r.Default = d.typ(raw.Default)
	return r
}

func (d *decoder) reflections(raws []*rawReflection) []*Reflection {
	if len(raws) == 0 {
		return nil
	}
	out := make([]*Reflection, 0, len(raws))
	for _, raw := range raws {
		if r := d.reflection(raw); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// indexSignature accepts a single object, a one-element array (older
// exports) or the indexSignatures list of newer exports.
func (d *decoder) indexSignature(raw *rawReflection) *rawReflection {
	if len(raw.IndexSignatures) > 0 {
		return raw.IndexSignatures[0]
	}
	if len(raw.IndexSignature) == 0 {
		return nil
	}
	switch raw.IndexSignature.Kind() {
	case '{':
		var sig rawReflection
		if err := json.Unmarshal(raw.IndexSignature, &sig); err != nil {
			d.fail(raw, err)
			return nil
		}
		return &sig
	case '[':
		var sigs []*rawReflection
		if err := json.Unmarshal(raw.IndexSignature, &sigs); err != nil {
			d.fail(raw, err)
			return nil
		}
		if len(sigs) > 0 {
			return sigs[0]
		}
	}
	return nil
}

func (d *decoder) fail(raw *rawReflection, err error) {
	if d.err != nil {
		return
	}
	d.err = &LoadError{Code: ParseError, Message: fmt.Sprintf("typedoc: index signature of %q: %v", raw.Name, err), Cause: err}
}

func (d *decoder) typ(raw *rawType) Type {
	if raw == nil {
		return nil
	}
	switch TypeKind(raw.Type) {
	case TypeLiteral:
		return &Literal{Value: literalValue(raw.Value)}
	case TypeReference:
		ref := &Reference{Name: raw.Name, TypeParameter: raw.TypeParameter}
		for _, arg := range raw.TypeArguments {
			ref.TypeArguments = append(ref.TypeArguments, d.typ(arg))
		}
		if id, ok := referenceID(raw); ok {
			d.pending = append(d.pending, pendingRef{ref: ref, id: id})
		}
		return ref
	case TypeIntrinsic:
		return &Intrinsic{Name: raw.Name}
	case TypeArray:
		return &Array{Element: d.typ(raw.ElementType)}
	case TypeInline:
		decl := d.reflection(raw.Declaration)
		if decl == nil {
			decl = &Reflection{Kind: KindTypeLiteral}
		}
		return &Inline{Declaration: decl}
	case TypeIntersection:
		return &Intersection{Types: d.types(raw.Types)}
	case TypeUnion:
		return &Union{Types: d.types(raw.Types)}
	case TypeTuple:
		return &Tuple{Elements: d.types(raw.Elements)}
	default:
		return &Unknown{Raw: raw.Type}
	}
}

func (d *decoder) types(raws []*rawType) []Type {
	out := make([]Type, 0, len(raws))
	for _, raw := range raws {
		if t := d.typ(raw); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (d *decoder) link() {
	for _, p := range d.pending {
		if target, ok := d.byID[p.id]; ok {
			p.ref.Target = target
		}
	}
	d.pending = nil
}

func referenceID(raw *rawType) (int, bool) {
	if raw.ID != nil {
		return *raw.ID, true
	}
	if f, ok := raw.Target.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// literalValue flattens bigint literals ({negative, value}) into numbers
// encoded as strings; other values pass through.
func literalValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	digits, _ := m["value"].(string)
	if neg, _ := m["negative"].(bool); neg {
		digits = "-" + digits
	}
	return digits
}

func stringifyArguments(args map[string]any) map[string]string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func convertComment(raw *rawComment) *Comment {
	if raw == nil {
		return nil
	}
	c := &Comment{
		ShortText: strings.TrimSpace(raw.ShortText),
		Text:      strings.TrimSpace(raw.Text),
		Returns:   strings.TrimSpace(raw.Returns),
	}
	for _, t := range raw.Tags {
		name := t.Tag
		if name == "" {
			name = t.TagName
		}
		c.Tags = append(c.Tags, CommentTag{Tag: strings.TrimPrefix(name, "@"), Text: strings.TrimSpace(t.Text)})
	}

	if c.ShortText == "" && len(raw.Summary) > 0 {
		c.ShortText, c.Text = splitSummary(joinParts(raw.Summary))
	}
	for _, bt := range raw.BlockTags {
		name := strings.TrimPrefix(bt.Tag, "@")
		text := strings.TrimSpace(joinParts(bt.Content))
		if name == "returns" || name == "return" {
			if c.Returns == "" {
				c.Returns = text
			}
			continue
		}
		c.Tags = append(c.Tags, CommentTag{Tag: name, Text: text})
	}
	for _, m := range raw.ModifierTags {
		c.Tags = append(c.Tags, CommentTag{Tag: strings.TrimPrefix(m, "@")})
	}
	return c
}

func joinParts(parts []rawCommentPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// splitSummary separates the first paragraph from the rest.
func splitSummary(s string) (string, string) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	short, rest, found := strings.Cut(s, "\n\n")
	if !found {
		return s, ""
	}
	return strings.TrimSpace(short), strings.TrimSpace(rest)
}
