package smartimg

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/smartfs/tools/internal/imgwrite"
	"github.com/smartfs/tools/internal/measure"
	"github.com/smartfs/tools/internal/sizeflag"
	"github.com/smartfs/tools/internal/smartfs"
	"github.com/smartfs/tools/internal/smartfs/layout"
	"github.com/smartfs/tools/internal/sourcedir"
	"github.com/smartfs/tools/internal/srchash"
	"github.com/smartfs/tools/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// buildCmd is smartimg build.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a SmartFS image from a directory tree",
	Long: `Build a SmartFS image from a directory tree.

The tree is copied into a freshly formatted volume. Builds are
reproducible: the same tree with the same flags yields a byte-identical
image.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type buildImplConfig struct {
	baseDir        string
	out            string
	storageSize    *sizeflag.Bytes
	sectorSize     *sizeflag.Bytes
	eraseBlockSize *sizeflag.Bytes
	maxNameLen     int
	crc            string
	formatVersion  int
	extraRootDirs  int
	dirMode        string
	fileMode       string
	mtime          int64
	hex            string
	hexBase        uint32
	force          bool
}

var buildImpl = buildImplConfig{
	storageSize:    sizeflag.New(0),
	sectorSize:     sizeflag.New(smartfs.DefaultSectorSize),
	eraseBlockSize: sizeflag.New(smartfs.DefaultEraseBlockSize),
}

func init() {
	buildCmd.Flags().StringVarP(&buildImpl.baseDir, "base-dir", "b", "", "directory tree to copy into the image (required)")
	buildCmd.Flags().StringVarP(&buildImpl.out, "out", "o", "smartfs.img", "output path, a regular file or a block device")
	buildCmd.Flags().VarP(buildImpl.storageSize, "storage-size", "s", "partition size in bytes, k/m/g suffixes are binary (required)")
	buildCmd.Flags().Var(buildImpl.sectorSize, "sector-size", "logical sector size in bytes, a power of two between 256 and 32768")
	buildCmd.Flags().Var(buildImpl.eraseBlockSize, "erase-block-size", "flash erase block size in bytes")
	buildCmd.Flags().IntVar(&buildImpl.maxNameLen, "max-filename-len", smartfs.DefaultMaxNameLen, "file name bytes stored per directory entry")
	buildCmd.Flags().StringVar(&buildImpl.crc, "crc", "none", "per-sector checksum, one of none or crc8")
	buildCmd.Flags().IntVar(&buildImpl.formatVersion, "format-version", 1, "SmartFS on-media format version")
	buildCmd.Flags().IntVar(&buildImpl.extraRootDirs, "extra-root-dirs", 0, "additional root directories to reserve (0..8)")
	buildCmd.Flags().StringVar(&buildImpl.dirMode, "dir-mode", "777", "permission bits stored for directories, three octal digits")
	buildCmd.Flags().StringVar(&buildImpl.fileMode, "file-mode", "666", "permission bits stored for files, three octal digits")
	buildCmd.Flags().Int64Var(&buildImpl.mtime, "mtime", 0, "modification time stored for all entries, in seconds since the epoch")
	buildCmd.Flags().StringVar(&buildImpl.hex, "hex", "", "additionally write an Intel HEX conversion to this path")
	buildCmd.Flags().Uint32Var(&buildImpl.hexBase, "hex-base", 0, "start address for the Intel HEX conversion")
	buildCmd.Flags().BoolVar(&buildImpl.force, "force", false, "overwrite --out if it already exists")
}

func (r *buildImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if r.baseDir == "" {
		return fmt.Errorf("the --base-dir flag is required")
	}
	if r.storageSize.Int64() == 0 {
		return fmt.Errorf("the --storage-size flag is required")
	}
	checksum, err := layout.ParseChecksum(r.crc)
	if err != nil {
		return err
	}
	dirMode, err := smartfs.ParseMode(r.dirMode)
	if err != nil {
		return fmt.Errorf("--dir-mode: %v", err)
	}
	fileMode, err := smartfs.ParseMode(r.fileMode)
	if err != nil {
		return fmt.Errorf("--file-mode: %v", err)
	}
	geom, err := smartfs.Compute(smartfs.Config{
		StorageSize:    r.storageSize.Int64(),
		EraseBlockSize: r.eraseBlockSize.Int(),
		SectorSize:     r.sectorSize.Int(),
		MaxNameLen:     r.maxNameLen,
		FormatVersion:  r.formatVersion,
		Checksum:       checksum,
		ExtraRootDirs:  r.extraRootDirs,
		DirMode:        dirMode,
		FileMode:       fileMode,
		MTime:          r.mtime,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "smartimg %s formatting %s as SmartFS v%d (%d sectors of %d bytes)\n\n",
		version.ReadBrief(),
		humanize.Bytes(uint64(geom.StorageSize)),
		geom.FormatVersion,
		geom.TotalSectors,
		geom.SectorSize)

	src := sourcedir.New(r.baseDir)
	defer src.Close()

	done := measure.Interactively(stdout, "building file system")
	img, err := smartfs.Build(geom, src)
	if err != nil {
		return err
	}
	stats := img.Stats()
	done(fmt.Sprintf(", %d files, %s", stats.Files, humanize.Bytes(uint64(stats.PayloadBytes))))

	var eg errgroup.Group
	eg.Go(func() error {
		return imgwrite.WriteRaw(r.out, img.Bytes(), r.force)
	})
	if r.hex != "" {
		eg.Go(func() error {
			return imgwrite.WriteHexFile(r.hex, img.Bytes(), r.hexBase)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	digest := "(unavailable)"
	if h, err := srchash.HashDir(r.baseDir); err == nil {
		digest = h
	}

	fmt.Fprintf(stdout, "\nWrote %s:\n", r.out)
	fmt.Fprintf(stdout, "  directories: %d\n", stats.Directories)
	fmt.Fprintf(stdout, "  files:       %d\n", stats.Files)
	fmt.Fprintf(stdout, "  sectors:     %d used of %d\n", stats.SectorsUsed, stats.SectorsTotal)
	fmt.Fprintf(stdout, "  source:      %s\n", digest)
	return nil
}
