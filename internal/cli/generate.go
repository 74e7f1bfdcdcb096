package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/skywardapps/ts-openapi-gen/internal/document"
	"github.com/skywardapps/ts-openapi-gen/internal/emitter"
	"github.com/skywardapps/ts-openapi-gen/internal/schema"
	"github.com/skywardapps/ts-openapi-gen/internal/spec"
	"github.com/skywardapps/ts-openapi-gen/internal/typedoc"
)

// EnvPrefix namespaces the environment variables read by generate.
const EnvPrefix = "TS_OPENAPI_GEN_"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Input       string   `flag:"input" validate:"required"`
	Description string   `flag:"description"`
	Base        string   `flag:"base"`
	Out         string   `flag:"out" validate:"required"`
	Format      string   `flag:"format" validate:"omitempty,oneof=json yaml yml"`
	IncludeTags []string `flag:"include-tags"`
	ExcludeTags []string `flag:"exclude-tags"`
	Methods     []string `flag:"methods" validate:"dive,httpmethod"`
	Paths       []string `flag:"paths"`
	Strict      bool     `flag:"strict"`
	DryRun      bool     `flag:"dry-run"`
	EnvFile     string   `flag:"env-file"`
	Verbose     bool     `flag:"verbose"`
	ConfigPath  string   `flag:"config"`

	// Log receives pipeline diagnostics; stderr at Info level when nil.
	Log logrus.FieldLogger `validate:"-"`
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Out: "openapi.json"}
}

var generateRunner = runGenerate

// setting binds one option to its config key, flag and environment variable.
type setting struct {
	flag string
	set  func(*GenerateConfig, any) error
}

func stringSetting(flag string, field func(*GenerateConfig) *string) setting {
	return setting{flag: flag, set: func(c *GenerateConfig, v any) error {
		s, err := valueAsString(v)
		if err != nil {
			return err
		}
		*field(c) = s
		return nil
	}}
}

func listSetting(flag string, field func(*GenerateConfig) *[]string) setting {
	return setting{flag: flag, set: func(c *GenerateConfig, v any) error {
		list, err := valueAsStringSlice(v)
		if err != nil {
			return err
		}
		*field(c) = sanitizeTags(list)
		return nil
	}}
}

func boolSetting(flag string, field func(*GenerateConfig) *bool) setting {
	return setting{flag: flag, set: func(c *GenerateConfig, v any) error {
		b, err := valueAsBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}}
}

var generateSettings = []setting{
	stringSetting("input", func(c *GenerateConfig) *string { return &c.Input }),
	stringSetting("description", func(c *GenerateConfig) *string { return &c.Description }),
	stringSetting("base", func(c *GenerateConfig) *string { return &c.Base }),
	stringSetting("out", func(c *GenerateConfig) *string { return &c.Out }),
	stringSetting("format", func(c *GenerateConfig) *string { return &c.Format }),
	listSetting("include-tags", func(c *GenerateConfig) *[]string { return &c.IncludeTags }),
	listSetting("exclude-tags", func(c *GenerateConfig) *[]string { return &c.ExcludeTags }),
	listSetting("methods", func(c *GenerateConfig) *[]string { return &c.Methods }),
	listSetting("paths", func(c *GenerateConfig) *[]string { return &c.Paths }),
	boolSetting("strict", func(c *GenerateConfig) *bool { return &c.Strict }),
	boolSetting("dry-run", func(c *GenerateConfig) *bool { return &c.DryRun }),
	stringSetting("env-file", func(c *GenerateConfig) *string { return &c.EnvFile }),
	boolSetting("verbose", func(c *GenerateConfig) *bool { return &c.Verbose }),
}

func lookupSetting(key string) (setting, bool) {
	key = normalizeKey(key)
	for _, s := range generateSettings {
		if normalizeKey(s.flag) == key {
			return s, true
		}
	}
	return setting{}, false
}

func envName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an OpenAPI document from a TypeDoc JSON export",
		Long: "Generate an OpenAPI 3 document from the TypeDoc JSON export of a controller-based TypeScript service. " +
			"Options can be provided via flags, " + EnvPrefix + "* environment variables, config files, or defaults.",
		Example: strings.TrimSpace(`  ts-openapi-gen generate --input docs.json --description api.md --out openapi.yaml
  ts-openapi-gen --config ts-openapi-gen.yaml generate --strict --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Log = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path to the TypeDoc JSON export")
	flags.String("description", "", "Path to the API description file (@directives and prose)")
	flags.String("base", "", "Existing OpenAPI 3 document to merge generated output into")
	flags.String("out", "", "Output file (default openapi.json)")
	flags.String("format", "", "Output format (json|yaml); inferred from --out when omitted")
	flags.StringSlice("include-tags", nil, "Only include controllers with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude controllers with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringSlice("paths", nil, "Only include routes matching these regular expressions")
	flags.Bool("strict", false, "Fail when any schema error diagnostic was reported")
	flags.Bool("dry-run", false, "Preview the planned output without writing files")
	flags.String("env-file", "", "Dotenv file with "+EnvPrefix+"* settings")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	envFile := cfg.EnvFile
	if v, ok := os.LookupEnv(envName("env-file")); ok {
		envFile = v
	}
	if flags.Changed("env-file") {
		if envFile, err = flags.GetString("env-file"); err != nil {
			return nil, err
		}
	}
	if err := applyGenerateEnv(&cfg, strings.TrimSpace(envFile)); err != nil {
		return nil, err
	}

	if err := applyGenerateFlagOverrides(flags, &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyGenerateEnv overlays TS_OPENAPI_GEN_* variables. Values from the
// process environment win over those in the env file.
func applyGenerateEnv(cfg *GenerateConfig, envFile string) error {
	fromFile := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil {
			return newUsageError(fmt.Sprintf("read env file %q: %v", envFile, err))
		}
		fromFile = m
	}
	for _, s := range generateSettings {
		name := envName(s.flag)
		value, ok := os.LookupEnv(name)
		if !ok {
			value, ok = fromFile[name]
		}
		if !ok {
			continue
		}
		if err := s.set(cfg, value); err != nil {
			return newUsageError(fmt.Sprintf("environment %s: %v", name, err))
		}
	}
	return nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	for _, s := range generateSettings {
		f := flags.Lookup(s.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := s.set(cfg, flagValue(f)); err != nil {
			return newUsageError(fmt.Sprintf("flag --%s: %v", s.flag, err))
		}
	}
	return nil
}

func flagValue(f *pflag.Flag) any {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.GetSlice()
	}
	if f.Value.Type() == "bool" {
		return f.Value.String() == "true"
	}
	return f.Value.String()
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Description = strings.TrimSpace(c.Description)
	c.Base = strings.TrimSpace(c.Base)
	c.Out = strings.TrimSpace(c.Out)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.EnvFile = strings.TrimSpace(c.EnvFile)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Paths = sanitizeTags(c.Paths)

	methods := sanitizeTags(c.Methods)
	for i, m := range methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = sanitizeTags(methods)
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("flag"); name != "" {
			return "--" + name
		}
		return f.Name
	})
	_ = v.RegisterValidation("httpmethod", func(fl validator.FieldLevel) bool {
		_, ok := spec.ParseHttpMethod(fl.Field().String())
		return ok
	})
	return v
}

func (c *GenerateConfig) validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("generate: %s %s", fe.Field(), formatValidationError(fe)))
		}
		return newUsageError(strings.Join(msgs, "\n"))
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "--input" {
			return "is required (set via flag, environment or config file)"
		}
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %q)", fe.Param(), fe.Value())
	case "httpmethod":
		return fmt.Sprintf("has unknown HTTP method %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := cfg.Log
	if log == nil {
		log = newLogger(os.Stderr, cfg.Verbose)
	}

	project, err := typedoc.Load(ctx, cfg.Input)
	if err != nil {
		var le *typedoc.LoadError
		if errors.As(err, &le) {
			return wrapUsageError("input", le.Message, err, detail{"Location", le.Location})
		}
		return err
	}
	log.WithField("input", cfg.Input).Debugf("loaded %s", project.Name)

	compiler := schema.New(project, schema.WithLogger(log))

	methods := make([]spec.HttpMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		hm, _ := spec.ParseHttpMethod(m)
		methods = append(methods, hm)
	}
	model, err := spec.BuildServiceModel(ctx, project, compiler,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(cfg.Paths),
		spec.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}
	log.Debugf("assembled %d endpoints", len(model.Endpoints))

	var desc *document.Description
	if cfg.Description != "" {
		desc, err = readDescription(cfg.Description, log)
		if err != nil {
			return err
		}
	}

	composeOpts := []document.ComposeOption{document.WithLogger(log)}
	if cfg.Base != "" {
		base, err := document.LoadBase(ctx, cfg.Base)
		if err != nil {
			var be *document.BaseError
			if errors.As(err, &be) {
				return wrapUsageError("base", be.Message, err,
					detail{"Location", be.Location}, detail{"Pointer", be.JSONPointer})
			}
			return err
		}
		composeOpts = append(composeOpts, document.WithBase(base))
	}

	doc, err := document.Compose(ctx, desc, model, compiler.Schemas(), composeOpts...)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	if cfg.Strict && compiler.HasErrors() {
		return strictError(compiler.Diagnostics())
	}

	format, _ := emitter.ParseFormat(cfg.Format)
	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}
	res, err := emitter.Emit(ctx, doc, emitter.Options{Out: cfg.Out, Format: format, DryRun: cfg.DryRun})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(filepath.Dir(absOut), len(res.Planned), paths)
		return nil
	}
	log.WithField("format", string(res.Format)).Infof("wrote %s", absOut)
	return nil
}

func readDescription(path string, log logrus.FieldLogger) (*document.Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapUsageError("description", err.Error(), err)
	}
	defer f.Close()
	desc, err := document.ParseDescription(f, log)
	if err != nil {
		return nil, fmt.Errorf("description %s: %w", path, err)
	}
	return desc, nil
}

func strictError(diags []schema.Diagnostic) error {
	var lines []string
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			lines = append(lines, "- "+d.String())
		}
	}
	return fmt.Errorf("strict: %d schema errors, nothing written:\n%s", len(lines), strings.Join(lines, "\n"))
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, out string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "create temp") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or check directory permissions.", out, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s, ok := lookupSetting(key)
		if !ok {
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err := s.set(cfg, raw[key]); err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []string:
		return val, nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
