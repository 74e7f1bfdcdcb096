package spec

import "github.com/getkin/kin-openapi/openapi3"

// Endpoint model assembled from annotated controllers and consumed by the
// document composer.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// verbDecorators maps the recognized route annotations to their HTTP method.
var verbDecorators = map[string]HttpMethod{
	"httpGet":    GET,
	"httpPost":   POST,
	"httpPut":    PUT,
	"httpDelete": DELETE,
	"httpPatch":  PATCH,
	"httpHead":   HEAD,
}

// ParseHttpMethod accepts a method name in any case.
func ParseHttpMethod(s string) (HttpMethod, bool) {
	switch m := HttpMethod(lower(s)); m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE:
		return m, true
	}
	return "", false
}

type ServiceModel struct {
	Title     string
	Tags      []TagModel
	Endpoints []EndpointModel
}

// TagModel is one controller: its name and class documentation.
type TagModel struct {
	Name        string
	Description string
}

type EndpointModel struct {
	ID          string // method+path
	Controller  string
	Method      HttpMethod
	Prefix      string // raw, colon syntax
	Suffix      string // raw, colon syntax
	Path        string
	OperationID string
	Summary     string
	Description string
	Deprecated  bool
	Tags        []string

	PathParameters  []ParameterModel
	QueryParameters []ParameterModel
	Body            *RequestBodyModel
	Response        *ResponseModel
}

// Parameters returns path parameters followed by query parameters.
func (e EndpointModel) Parameters() []ParameterModel {
	out := make([]ParameterModel, 0, len(e.PathParameters)+len(e.QueryParameters))
	out = append(out, e.PathParameters...)
	return append(out, e.QueryParameters...)
}

type ParameterModel struct {
	Name        string
	In          string // path|query
	Description string
	Required    bool
	Style       string
	Schema      *openapi3.SchemaRef
}

type RequestBodyModel struct {
	Description string
	Required    bool
	Schema      *openapi3.SchemaRef
}

// ResponseModel is the 200 response. Schema is nil when the method returns
// nothing.
type ResponseModel struct {
	Status      string
	Description string
	Schema      *openapi3.SchemaRef
}
