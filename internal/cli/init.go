package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigName = "ts-openapi-gen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample ts-openapi-gen configuration file",
		Long:  "Scaffold a commented ts-openapi-gen configuration file that documents every generate option.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force})
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key generate accepts. Each key can also be
// set as TS_OPENAPI_GEN_<KEY> (e.g. TS_OPENAPI_GEN_INCLUDE_TAGS).
const sampleConfigYAML = `# ts-openapi-gen configuration (YAML or JSON)
# Precedence: defaults < this file < TS_OPENAPI_GEN_* environment < flags.

# TypeDoc JSON export of the service (typedoc --json docs.json).
# input: ./docs.json

# Description file: @title, @version, @oauth2.* directives plus prose.
# description: ./api.md

# Existing OpenAPI 3 document; generated paths, schemas and tags are merged in.
# base: ./openapi.base.yaml

# Output file. The format follows the extension unless set below.
# out: openapi.json

# Output format (json|yaml).
# format: json

# Only include controllers with these tags (comma-separated or list).
# includeTags: [OrdersController]

# Exclude controllers with these tags.
# excludeTags: [InternalController]

# Only include these HTTP methods.
# methods: [get, post]

# Only include routes matching these regular expressions.
# paths: ["^/orders"]

# Fail when any schema error diagnostic was reported.
# strict: false

# Print the planned output without writing it.
# dryRun: false

# Dotenv file with TS_OPENAPI_GEN_* settings.
# envFile: .env

# Enable debug logging.
# verbose: false
`
