package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml in any case. The empty string is
// valid and means "infer from the output path".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("emitter: unknown format %q (want json or yaml)", s)
	}
}

// InferFormat picks yaml for .yaml/.yml paths and json otherwise.
func InferFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Options controls where and how the document is written.
type Options struct {
	Out    string // required; output file
	Format Format // inferred from Out when empty
	DryRun bool   // don't write, only plan
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

type Result struct {
	Format  Format
	Planned []PlannedFile
}

// Render serializes the document. JSON is indented by two spaces; YAML keeps
// the key order of the JSON rendering. Both end with a newline.
func Render(doc *openapi3.T, format Format) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("emitter: nil document")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("emitter: marshal json: %w", err)
	}
	// kin-openapi marshals nested values with encoding/json, which always
	// escapes <, > and &. Reformatting rewrites strings in their shortest form.
	data, err := jsontext.AppendFormat(nil, raw, jsontext.EscapeForHTML(false), jsontext.WithIndent("  "))
	if err != nil {
		return nil, fmt.Errorf("emitter: format json: %w", err)
	}
	data = append(data, '\n')
	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		return toYAML(data)
	default:
		return nil, fmt.Errorf("emitter: unknown format %q", format)
	}
}

// toYAML re-encodes JSON through a node tree, which keeps mapping order.
func toYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("emitter: read json as yaml: %w", err)
	}
	plain(&node)
	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("emitter: marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// plain drops the quoted and flow styles JSON input carries.
func plain(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plain(c)
	}
}

// Emit renders the document and, unless dry-running, writes it atomically.
func Emit(ctx context.Context, doc *openapi3.T, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Out) == "" {
		return nil, fmt.Errorf("emitter: Out is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := opts.Format
	if format == "" {
		format = InferFormat(opts.Out)
	}
	data, err := Render(doc, format)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Format:  format,
		Planned: []PlannedFile{{RelPath: filepath.ToSlash(filepath.Clean(opts.Out)), Size: len(data), Mode: 0o644}},
	}
	if opts.DryRun {
		return res, nil
	}
	if err := writeFile(opts.Out, data); err != nil {
		return nil, err
	}
	return res, nil
}

func writeFile(path string, content []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), "."+filepath.Base(abs)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, abs); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
