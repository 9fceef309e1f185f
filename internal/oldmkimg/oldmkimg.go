// Package oldmkimg contains the code of cmd/mksmartimg, so that we can run it
// from our integration tests.
package oldmkimg

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/smartfs/tools/internal/imgwrite"
	"github.com/smartfs/tools/internal/smartfs"
	"github.com/smartfs/tools/internal/smartfs/layout"
	"github.com/smartfs/tools/internal/sourcedir"
)

var (
	baseDir = flag.String("base-dir",
		"",
		"The directory from which the image is created")

	out = flag.String("out",
		"",
		"The file name to save the image under")

	storageSize = flag.Int64("storage-size",
		0,
		"Size of the partition in bytes")

	eraseBlockSize = flag.Int("smart-erase-block-size",
		4096,
		"Size of an erase block on flash in bytes")

	sectorSize = flag.Int("smart-sector-size",
		1024,
		"Size of a SmartFS sector in bytes")

	formatVersion = flag.Int("smart-version",
		1,
		"Version of the SmartFS on-media format")

	crc = flag.String("smart-crc",
		"none",
		"Per-sector checksum (one of none, crc8)")

	maxLenFilename = flag.Int("smart-max-len-filename",
		16,
		"Maximum length of a file name in bytes")

	numberRootDir = flag.Int("smart-number-root-dir",
		0,
		"Count of additional root directories")

	dirMode = flag.String("dir-mode",
		"777",
		"Mode of directories")

	fileMode = flag.String("file-mode",
		"666",
		"Mode of files")
)

const usage = `
mksmartimg creates a SmartFS partition image from a directory.

Usage:
mksmartimg -base-dir=<dir> -out=<file> -storage-size=<bytes>

mksmartimg is the older, flag-compatible interface; smartimg build is the
preferred tool and covers the same functionality.

Flags:
`

func Main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	if *baseDir == "" || *out == "" || *storageSize == 0 {
		flag.Usage()
	}

	checksum, err := layout.ParseChecksum(*crc)
	if err != nil {
		log.Fatal(err)
	}
	dm, err := smartfs.ParseMode(*dirMode)
	if err != nil {
		log.Fatalf("-dir-mode: %v", err)
	}
	fm, err := smartfs.ParseMode(*fileMode)
	if err != nil {
		log.Fatalf("-file-mode: %v", err)
	}

	geom, err := smartfs.Compute(smartfs.Config{
		StorageSize:    *storageSize,
		EraseBlockSize: *eraseBlockSize,
		SectorSize:     *sectorSize,
		MaxNameLen:     *maxLenFilename,
		FormatVersion:  *formatVersion,
		Checksum:       checksum,
		ExtraRootDirs:  *numberRootDir,
		DirMode:        dm,
		FileMode:       fm,
	})
	if err != nil {
		log.Fatal(err)
	}

	src := sourcedir.New(*baseDir)
	defer src.Close()

	img, err := smartfs.Build(geom, src)
	if err != nil {
		log.Fatal(err)
	}

	if err := imgwrite.WriteRaw(*out, img.Bytes(), true); err != nil {
		log.Fatal(err)
	}
}
