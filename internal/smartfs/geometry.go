package smartfs

import (
	"fmt"
	"math"
	"strconv"

	"github.com/smartfs/tools/internal/smartfs/layout"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultSectorSize     = 1024
	DefaultEraseBlockSize = 4096
	DefaultMaxNameLen     = 16
	DefaultDirMode        = 0o777
	DefaultFileMode       = 0o666
)

// Config is the user-chosen shape of a volume. The zero value of every field
// except StorageSize selects the default noted on the field.
type Config struct {
	// StorageSize is the size of the flash partition in bytes. Required.
	StorageSize int64

	// EraseBlockSize is the flash erase block size in bytes (default 4096).
	EraseBlockSize int

	// SectorSize is the logical sector size in bytes (default 1024).
	SectorSize int

	// MaxNameLen is the name field length of directory entries in bytes
	// (default 16).
	MaxNameLen int

	// FormatVersion selects the on-media format (default and only defined
	// version: 1).
	FormatVersion int

	// Checksum is the per-sector checksum (default none).
	Checksum layout.Checksum

	// ExtraRootDirs reserves additional root directory sectors for
	// multi-root volumes (default 0). The tree is always built into the
	// first root.
	ExtraRootDirs int

	// DirMode and FileMode are the permission bits stored in directory
	// and file entries (defaults 777 and 666).
	DirMode  uint16
	FileMode uint16

	// MTime is the modification time stamped into every entry, in seconds
	// since the Unix epoch (default 0). Rebuilding an unchanged tree with
	// the same MTime yields a byte-identical image.
	MTime int64
}

func (c Config) withDefaults() Config {
	if c.EraseBlockSize == 0 {
		c.EraseBlockSize = DefaultEraseBlockSize
	}
	if c.SectorSize == 0 {
		c.SectorSize = DefaultSectorSize
	}
	if c.MaxNameLen == 0 {
		c.MaxNameLen = DefaultMaxNameLen
	}
	if c.FormatVersion == 0 {
		c.FormatVersion = 1
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	return c
}

// Geometry is a validated volume shape with its derived values. Obtain one
// through Compute; the zero value is unusable.
type Geometry struct {
	Config

	TotalSectors     int
	SectorsPerBlock  int
	EraseBlocks      int
	Capacity         int // payload bytes per directory or file sector
	EntrySize        int // on-media size of one directory entry
	EntriesPerSector int
	RootSector       SectorID
	FirstAllocatable SectorID

	codec layout.Codec
}

func (g Geometry) params() layout.Params {
	return layout.Params{
		SectorSize: g.SectorSize,
		MaxNameLen: g.MaxNameLen,
		Checksum:   g.Checksum,
	}
}

// DataSectors returns the number of pool-allocatable sectors.
func (g Geometry) DataSectors() int {
	return g.TotalSectors - int(g.FirstAllocatable)
}

// Compute validates cfg and derives the volume geometry. Nothing is inferred
// or rounded; any combination the format cannot represent fails with a
// ConfigError naming the violated constraint. The single exception is a
// volume of exactly 65536 sectors, which the format itself clamps to 65534
// because the top logical numbers serve as sentinels.
func Compute(cfg Config) (Geometry, error) {
	cfg = cfg.withDefaults()

	codec, err := layout.ForVersion(cfg.FormatVersion)
	if err != nil {
		return Geometry{}, &ConfigError{Reason: err.Error()}
	}
	if !codec.Supports(cfg.Checksum) {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("checksum %s does not fit a version %d sector header", cfg.Checksum, cfg.FormatVersion)}
	}
	if cfg.StorageSize <= 0 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("storage size %d must be positive", cfg.StorageSize)}
	}
	if !codec.SectorSizeValid(cfg.SectorSize) {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("sector size %d is not valid for format version %d", cfg.SectorSize, cfg.FormatVersion)}
	}
	if cfg.EraseBlockSize <= 0 || cfg.EraseBlockSize%cfg.SectorSize != 0 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("erase block size %d is not a multiple of sector size %d", cfg.EraseBlockSize, cfg.SectorSize)}
	}
	if cfg.StorageSize%int64(cfg.EraseBlockSize) != 0 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("storage size %d is not a multiple of erase block size %d", cfg.StorageSize, cfg.EraseBlockSize)}
	}

	total := cfg.StorageSize / int64(cfg.SectorSize)
	if total > int64(codec.MaxSectors()) {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("%d sectors of %d bytes exceed the format limit of %d sectors", total, cfg.SectorSize, codec.MaxSectors())}
	}
	if total == int64(codec.MaxSectors()) {
		total -= 2
	}

	if cfg.MaxNameLen < 1 || cfg.MaxNameLen > 255 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("maximum name length %d is outside 1..255", cfg.MaxNameLen)}
	}
	capacity := codec.Capacity(cfg.SectorSize)
	entrySize := codec.EntrySize(cfg.MaxNameLen)
	if entrySize > capacity {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("a directory entry of %d bytes does not fit the %d byte sector payload", entrySize, capacity)}
	}

	first := int(codec.FirstAllocatable())
	if total <= int64(first) {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("%d sectors leave no room beyond the %d reserved header sectors", total, first)}
	}
	root := int(codec.RootSector())
	if cfg.ExtraRootDirs < 0 || root+cfg.ExtraRootDirs >= first {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("%d extra root directories do not fit the reserved sectors %d..%d", cfg.ExtraRootDirs, root, first-1)}
	}

	if cfg.DirMode > 0o777 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("directory mode %o exceeds the 9 permission bits", cfg.DirMode)}
	}
	if cfg.FileMode > 0o777 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("file mode %o exceeds the 9 permission bits", cfg.FileMode)}
	}
	if cfg.MTime < 0 || cfg.MTime > math.MaxUint32 {
		return Geometry{}, &ConfigError{Reason: fmt.Sprintf("mtime %d is outside the 32 bit range of the entry timestamp", cfg.MTime)}
	}

	return Geometry{
		Config:           cfg,
		TotalSectors:     int(total),
		SectorsPerBlock:  cfg.EraseBlockSize / cfg.SectorSize,
		EraseBlocks:      int(cfg.StorageSize / int64(cfg.EraseBlockSize)),
		Capacity:         capacity,
		EntrySize:        entrySize,
		EntriesPerSector: capacity / entrySize,
		RootSector:       SectorID(codec.RootSector()),
		FirstAllocatable: SectorID(codec.FirstAllocatable()),
		codec:            codec,
	}, nil
}

// ParseMode parses a three digit octal permission string like "755".
func ParseMode(s string) (uint16, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("mode %q: want exactly three octal digits", s)
	}
	v, err := strconv.ParseUint(s, 8, 16)
	if err != nil {
		return 0, fmt.Errorf("mode %q: %v", s, err)
	}
	return uint16(v), nil
}
