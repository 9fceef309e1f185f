package smartimg

import (
	"context"
	"io"
	"os"

	"github.com/smartfs/tools/internal/imgwrite"
	"github.com/spf13/cobra"
)

// hexCmd is smartimg hex.
var hexCmd = &cobra.Command{
	Use:   "hex <image> [<output>]",
	Short: "Convert a raw image to Intel HEX",
	Long: `Convert a raw image to Intel HEX.

With a single argument the records are written to stdout, otherwise to
the named output file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hexImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type hexImplConfig struct {
	base uint32
}

var hexImpl hexImplConfig

func init() {
	hexCmd.Flags().Uint32Var(&hexImpl.base, "base", 0, "start address of the first record")
}

func (r *hexImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	img, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		return imgwrite.WriteHexFile(args[1], img, r.base)
	}
	return imgwrite.WriteHex(stdout, img, r.base)
}
