package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

var ordersFixture = filepath.Join("..", "..", "testdata", "orders.json")

const brokenTypedoc = `{
  "id": 0, "name": "broken", "kindString": "Project", "flags": {},
  "children": [{
    "id": 1, "name": "BrokenController", "kindString": "Class", "flags": {},
    "decorators": [{"name": "controller", "arguments": {"path": "'/broken'"}}],
    "children": [{
      "id": 2, "name": "get", "kindString": "Method", "flags": {"isPublic": true},
      "decorators": [{"name": "httpGet", "arguments": {"path": "'/'"}}],
      "signatures": [{"id": 3, "name": "get", "kindString": "Call signature", "flags": {},
        "type": {"type": "reference", "name": "Missing"}}]
    }]
  }]
}`

func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func execute(args ...string) (string, error) {
	root := NewRootCmd()
	var stderr bytes.Buffer
	root.SetOut(io.Discard)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stderr.String(), err
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "api", "openapi.json")

	stdout := captureStdout(func() {
		if _, err := execute("generate", "--input", ordersFixture, "--out", out, "--dry-run"); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	if !strings.Contains(stdout, "Planned writes to") || !strings.Contains(stdout, "(1 files)") {
		t.Fatalf("expected dry-run plan output, got: %s", stdout)
	}
	if !strings.Contains(stdout, "openapi.json") {
		t.Fatalf("plan should list the output file: %s", stdout)
	}
	if _, err := os.Stat(filepath.Dir(out)); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipeline_YAMLWithDescriptionAndBase(t *testing.T) {
	dir := t.TempDir()
	descPath := filepath.Join(dir, "api.md")
	desc := "@title: Orders API\n@version 2.1.0\n@oauth2.Auth.clientCredentials.tokenUrl https://auth.example.com/token\n" +
		"@oauth2.Auth.clientCredentials.scopes.orders:read Read orders\n\nManage orders.\n"
	if err := os.WriteFile(descPath, []byte(desc), 0o600); err != nil {
		t.Fatalf("write description: %v", err)
	}
	basePath := filepath.Join(dir, "base.yaml")
	base := "openapi: 3.0.1\ninfo:\n  title: Base\n  version: '0'\nservers:\n  - url: https://api.example.com\npaths:\n  /legacy:\n    get:\n      responses:\n        '200':\n          description: ok\n"
	if err := os.WriteFile(basePath, []byte(base), 0o600); err != nil {
		t.Fatalf("write base: %v", err)
	}
	out := filepath.Join(dir, "openapi.yaml")

	if _, err := execute("generate", "--input", ordersFixture, "--description", descPath, "--base", basePath,
		"--out", out, "--methods", "get,head"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc struct {
		OpenAPI string `yaml:"openapi"`
		Info    struct {
			Title       string `yaml:"title"`
			Version     string `yaml:"version"`
			Description string `yaml:"description"`
		} `yaml:"info"`
		Servers  []map[string]any          `yaml:"servers"`
		Paths    map[string]map[string]any `yaml:"paths"`
		Security []map[string][]string     `yaml:"security"`
		Comps    map[string]map[string]any `yaml:"components"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, data)
	}

	if doc.OpenAPI != "3.0.1" || len(doc.Servers) != 1 {
		t.Errorf("base document should be kept: openapi=%q servers=%v", doc.OpenAPI, doc.Servers)
	}
	if doc.Info.Title != "Orders API" || doc.Info.Version != "2.1.0" || doc.Info.Description != "Manage orders." {
		t.Errorf("info: %+v", doc.Info)
	}
	for _, p := range []string{"/legacy", "/orders", "/orders/{orderId}", "/health"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("missing path %s in %v", p, doc.Paths)
		}
	}
	if _, ok := doc.Paths["/orders/{orderId}"]["put"]; ok {
		t.Errorf("--methods should drop put")
	}
	if _, ok := doc.Paths["/health"]["head"]; !ok {
		t.Errorf("expected head /health")
	}
	if len(doc.Security) != 1 || len(doc.Security[0]["Auth"]) != 1 || doc.Security[0]["Auth"][0] != "orders:read" {
		t.Errorf("security: %v", doc.Security)
	}
	if _, ok := doc.Comps["schemas"]["Order"]; !ok {
		t.Errorf("expected Order schema")
	}
	if _, ok := doc.Comps["securitySchemes"]["Auth"]; !ok {
		t.Errorf("expected Auth security scheme")
	}
}

func TestGeneratePipeline_Strict(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(input, []byte(brokenTypedoc), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	out := filepath.Join(dir, "openapi.json")

	stderr, err := execute("generate", "--input", input, "--out", out, "--strict")
	if err == nil {
		t.Fatalf("expected strict failure")
	}
	if !strings.Contains(err.Error(), "Missing") {
		t.Fatalf("error should name the unresolved type: %v", err)
	}
	if !strings.Contains(stderr, "level=error") {
		t.Fatalf("diagnostic should be logged, stderr: %s", stderr)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("nothing should be written in strict mode")
	}

	if _, err := execute("generate", "--input", input, "--out", out); err != nil {
		t.Fatalf("non-strict run should succeed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "#/components/schemas/ERR") {
		t.Fatalf("expected error pointer in output:\n%s", data)
	}
}

func TestGeneratePipeline_InputErrors(t *testing.T) {
	dir := t.TempDir()
	badBase := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(badBase, []byte("swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\n"), 0o600); err != nil {
		t.Fatalf("write base: %v", err)
	}
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"generate", "--input", filepath.Join(dir, "none.json")}, "Location:"},
		{"missing description", []string{"generate", "--input", ordersFixture, "--description", filepath.Join(dir, "none.md")}, "description:"},
		{"swagger base", []string{"generate", "--input", ordersFixture, "--base", badBase}, "base:"},
		{"bad pattern", []string{"generate", "--input", ordersFixture, "--paths", "("}, "build model"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(dir, tc.name+".json")
			_, err := execute(append(tc.args, "--out", out)...)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if tc.want != "build model" && !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			var le *typedoc.LoadError
			if got := errors.As(err, &le); got != (tc.name == "missing input") {
				t.Fatalf("load error in chain = %v for %v", got, err)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Fatalf("nothing should be written on failure")
			}
		})
	}
}
