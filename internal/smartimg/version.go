package smartimg

import (
	"context"
	"fmt"
	"io"

	"github.com/smartfs/tools/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd is smartimg version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print smartimg version",
	Long:  `Print smartimg version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type versionImplConfig struct{}

var versionImpl versionImplConfig

func (r *versionImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "%s\n", version.Read())
	return nil
}
