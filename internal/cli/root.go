package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the ts-openapi-gen CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func usageOnFlagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ts-openapi-gen",
		Short: "Generate OpenAPI documents from TypeDoc exports of TypeScript services",
		Long: "ts-openapi-gen reads the TypeDoc JSON export of a controller-based TypeScript service " +
			"and writes an OpenAPI 3 document describing its routes, parameters and models.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Unknown flags and similar errors become usage errors carrying help text.
	cmd.SetFlagErrorFunc(usageOnFlagError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(usageOnFlagError)
		cmd.AddCommand(sub)
	}

	return cmd
}
