// Package document folds the endpoint model, the compiled component schemas
// and the companion description into one OpenAPI document.
package document

import (
	"context"
	"errors"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/skywardapps/ts-openapi-gen/internal/spec"
)

// Defaults for a document built without a base.
const (
	DefaultOpenAPI = "3.0.3"
	DefaultVersion = "1"
	titlePrefix    = "OpenAPI schema for "
)

type ComposeOption func(*composeConfig)

type composeConfig struct {
	base *openapi3.T
	log  logrus.FieldLogger
}

// WithBase starts from an existing document. Generated paths, schemas and
// tags replace base entries with the same key; everything else is kept. The
// base document is modified in place.
func WithBase(doc *openapi3.T) ComposeOption {
	return func(c *composeConfig) { c.base = doc }
}

func WithLogger(log logrus.FieldLogger) ComposeOption {
	return func(c *composeConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Compose builds the document. desc may be nil.
func Compose(ctx context.Context, desc *Description, model *spec.ServiceModel, schemas openapi3.Schemas, opts ...ComposeOption) (*openapi3.T, error) {
	if model == nil {
		return nil, errors.New("document: nil service model")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := &composeConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	if desc == nil {
		desc = &Description{}
	}

	doc := cfg.base
	if doc == nil {
		doc = &openapi3.T{}
	}
	if doc.OpenAPI == "" {
		doc.OpenAPI = DefaultOpenAPI
	}
	applyInfo(doc, desc, model.Title)

	if doc.Components == nil {
		doc.Components = &openapi3.Components{}
	}
	if len(schemas) > 0 && doc.Components.Schemas == nil {
		doc.Components.Schemas = make(openapi3.Schemas, len(schemas))
	}
	for name, s := range schemas {
		doc.Components.Schemas[name] = s
	}
	if len(desc.SecuritySchemes) > 0 {
		if doc.Components.SecuritySchemes == nil {
			doc.Components.SecuritySchemes = make(openapi3.SecuritySchemes, len(desc.SecuritySchemes))
		}
		for name, ss := range desc.SecuritySchemes {
			doc.Components.SecuritySchemes[name] = ss
		}
	}
	if desc.Security != nil {
		doc.Security = desc.Security
	}

	doc.Tags = mergeTags(doc.Tags, model.Tags)
	addPaths(doc, model.Endpoints, cfg.log)
	return doc, nil
}

// applyInfo layers defaults, then the base info, then the description.
func applyInfo(doc *openapi3.T, desc *Description, project string) {
	if doc.Info == nil {
		doc.Info = &openapi3.Info{}
	}
	info := doc.Info
	if info.Title == "" {
		info.Title = titlePrefix + project
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}

	if desc.Title != "" {
		info.Title = desc.Title
	}
	if desc.Version != "" {
		info.Version = desc.Version
	}
	if desc.TermsOfService != "" {
		info.TermsOfService = desc.TermsOfService
	}
	if desc.Prose != "" {
		info.Description = desc.Prose
	}
	if desc.Contact != nil {
		info.Contact = desc.Contact
	}
	if desc.License != nil {
		info.License = desc.License
	}
}

func mergeTags(base openapi3.Tags, generated []spec.TagModel) openapi3.Tags {
	byName := make(map[string]*openapi3.Tag, len(generated))
	for _, t := range generated {
		byName[t.Name] = &openapi3.Tag{Name: t.Name, Description: t.Description}
	}
	out := make(openapi3.Tags, 0, len(base)+len(generated))
	placed := make(map[string]bool, len(generated))
	for _, t := range base {
		if t == nil {
			continue
		}
		if g, ok := byName[t.Name]; ok {
			out = append(out, g)
			placed[t.Name] = true
			continue
		}
		out = append(out, t)
	}
	for _, t := range generated {
		if !placed[t.Name] {
			out = append(out, byName[t.Name])
			placed[t.Name] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// addPaths merges endpoints into the paths map. The first endpoint on a path
// replaces any base item and contributes the shared parameter list; further
// verbs attach to the same item.
func addPaths(doc *openapi3.T, endpoints []spec.EndpointModel, log logrus.FieldLogger) {
	if doc.Paths == nil {
		doc.Paths = make(openapi3.Paths, len(endpoints))
	}
	fresh := make(map[string]bool)
	for _, ep := range endpoints {
		item := doc.Paths[ep.Path]
		if !fresh[ep.Path] {
			item = &openapi3.PathItem{Parameters: parameters(ep)}
			doc.Paths[ep.Path] = item
			fresh[ep.Path] = true
		}
		method := strings.ToUpper(string(ep.Method))
		if prev := item.GetOperation(method); prev != nil {
			log.WithFields(logrus.Fields{"path": ep.Path, "verb": ep.Method, "operation": prev.OperationID, "replacement": ep.OperationID}).
				Warn("route declared twice; the later operation wins")
		}
		item.SetOperation(method, operation(ep))
	}
}

func operation(ep spec.EndpointModel) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        append([]string(nil), ep.Tags...),
		Summary:     ep.Summary,
		Description: ep.Description,
		OperationID: ep.OperationID,
		Deprecated:  ep.Deprecated,
		Parameters:  parameters(ep),
		Responses:   make(openapi3.Responses, 1),
	}
	if ep.Body != nil {
		op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Description: ep.Body.Description,
			Required:    ep.Body.Required,
			Content:     openapi3.NewContentWithJSONSchemaRef(ep.Body.Schema),
		}}
	}

	status, desc := "200", ""
	resp := openapi3.NewResponse()
	if ep.Response != nil {
		if ep.Response.Status != "" {
			status = ep.Response.Status
		}
		desc = ep.Response.Description
		if ep.Response.Schema != nil {
			resp.Content = openapi3.NewContentWithJSONSchemaRef(ep.Response.Schema)
		}
	}
	resp.Description = &desc
	op.Responses[status] = &openapi3.ResponseRef{Value: resp}
	return op
}

func parameters(ep spec.EndpointModel) openapi3.Parameters {
	params := ep.Parameters()
	if len(params) == 0 {
		return nil
	}
	out := make(openapi3.Parameters, 0, len(params))
	for _, p := range params {
		out = append(out, &openapi3.ParameterRef{Value: &openapi3.Parameter{
			Name:        p.Name,
			In:          p.In,
			Description: p.Description,
			Required:    p.Required,
			Style:       p.Style,
			Schema:      p.Schema,
		}})
	}
	return out
}
