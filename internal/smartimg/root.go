package smartimg

import (
	"fmt"

	"github.com/smartfs/tools/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootCmd returns the root command of the smartimg CLI.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smartimg",
		Short: "build SmartFS filesystem images from a directory tree",
		Long: `The smartimg tool turns a directory tree on the host into a SmartFS
filesystem image that the NuttX SmartFS driver mounts directly:

1. Build an image from a directory tree (smartimg build),
2. Convert a raw image to Intel HEX for flashing tools (smartimg hex).
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionVal, err := cmd.Flags().GetBool("version")
			if err != nil {
				return fmt.Errorf("BUG: version flag declared as non-bool")
			}
			if versionVal {
				fmt.Println(version.Read())
				return nil
			}
			return pflag.ErrHelp
		},
	}
	rootCmd.Flags().Bool("version", false, "print smartimg version")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(hexCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}
