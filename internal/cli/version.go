package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the tabschema version and the Go runtime it was built with.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tabschema v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "built with %s\n", runtime.Version())
		},
	}
}
