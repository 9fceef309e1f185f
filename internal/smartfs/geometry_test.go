package smartfs

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/smartfs/tools/internal/smartfs/layout"
)

func TestCompute(t *testing.T) {
	got, err := Compute(Config{StorageSize: 1 << 20, EraseBlockSize: 4096, SectorSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	want := Geometry{
		Config: Config{
			StorageSize:    1 << 20,
			EraseBlockSize: 4096,
			SectorSize:     1024,
			MaxNameLen:     16,
			FormatVersion:  1,
			DirMode:        0o777,
			FileMode:       0o666,
		},
		TotalSectors:     1024,
		SectorsPerBlock:  4,
		EraseBlocks:      256,
		Capacity:         1014,
		EntrySize:        24,
		EntriesPerSector: 42,
		RootSector:       3,
		FirstAllocatable: 12,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(Geometry{})); diff != "" {
		t.Errorf("geometry diff (-want +got):\n%s", diff)
	}
	if got.DataSectors() != 1012 {
		t.Errorf("DataSectors: got %d, want 1012", got.DataSectors())
	}
}

func TestComputeDefaults(t *testing.T) {
	g, err := Compute(Config{StorageSize: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	if g.SectorSize != 1024 || g.EraseBlockSize != 4096 || g.MaxNameLen != 16 || g.FormatVersion != 1 {
		t.Errorf("defaults not applied: %+v", g.Config)
	}
}

func TestComputeClampsAddressingLimit(t *testing.T) {
	// 65536 sectors are representable minus the two top sentinel numbers.
	g, err := Compute(Config{StorageSize: 65536 * 1024, EraseBlockSize: 4096, SectorSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalSectors != 65534 {
		t.Errorf("total sectors: got %d, want 65534", g.TotalSectors)
	}
}

func TestComputeErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  Config
		want string // substring of the ConfigError reason
	}{
		{
			name: "zeroStorage",
			cfg:  Config{},
			want: "storage size",
		},
		{
			name: "negativeStorage",
			cfg:  Config{StorageSize: -4096},
			want: "storage size",
		},
		{
			name: "oddSectorSize",
			cfg:  Config{StorageSize: 1 << 20, SectorSize: 1000},
			want: "sector size",
		},
		{
			name: "sectorSizeTooSmall",
			cfg:  Config{StorageSize: 1 << 20, SectorSize: 128, EraseBlockSize: 4096},
			want: "sector size",
		},
		{
			name: "eraseBlockNotMultiple",
			cfg:  Config{StorageSize: 1 << 20, SectorSize: 1024, EraseBlockSize: 2500},
			want: "erase block size",
		},
		{
			name: "storageNotMultipleOfEraseBlock",
			cfg:  Config{StorageSize: 1<<20 + 512, SectorSize: 1024, EraseBlockSize: 4096},
			want: "not a multiple of erase block",
		},
		{
			name: "tooManySectors",
			cfg:  Config{StorageSize: 128 << 20, SectorSize: 1024, EraseBlockSize: 4096},
			want: "format limit",
		},
		{
			name: "nameLengthTooLarge",
			cfg:  Config{StorageSize: 1 << 20, MaxNameLen: 256},
			want: "name length",
		},
		{
			name: "entryLargerThanSector",
			cfg:  Config{StorageSize: 1 << 20, SectorSize: 256, EraseBlockSize: 4096, MaxNameLen: 250},
			want: "does not fit",
		},
		{
			name: "noRoomBeyondReserved",
			cfg:  Config{StorageSize: 12288, SectorSize: 1024, EraseBlockSize: 4096},
			want: "reserved header sectors",
		},
		{
			name: "crc16",
			cfg:  Config{StorageSize: 1 << 20, Checksum: layout.ChecksumCRC16},
			want: "checksum crc16",
		},
		{
			name: "unknownVersion",
			cfg:  Config{StorageSize: 1 << 20, FormatVersion: 3},
			want: "version",
		},
		{
			name: "tooManyExtraRoots",
			cfg:  Config{StorageSize: 1 << 20, ExtraRootDirs: 9},
			want: "extra root",
		},
		{
			name: "dirModeTooWide",
			cfg:  Config{StorageSize: 1 << 20, DirMode: 0o1777},
			want: "directory mode",
		},
		{
			name: "mtimeOutOfRange",
			cfg:  Config{StorageSize: 1 << 20, MTime: 1 << 40},
			want: "mtime",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("got %v, want a ConfigError", err)
			}
			if !strings.Contains(cfgErr.Reason, tt.want) {
				t.Errorf("reason %q does not mention %q", cfgErr.Reason, tt.want)
			}
		})
	}
}

func TestComputeExtraRootsAtLimit(t *testing.T) {
	g, err := Compute(Config{StorageSize: 1 << 20, ExtraRootDirs: 8})
	if err != nil {
		t.Fatal(err)
	}
	if g.ExtraRootDirs != 8 {
		t.Errorf("extra roots: got %d, want 8", g.ExtraRootDirs)
	}
}

func TestParseMode(t *testing.T) {
	for _, tt := range []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"777", 0o777, false},
		{"666", 0o666, false},
		{"754", 0o754, false},
		{"000", 0, false},
		{"77", 0, true},
		{"7777", 0, true},
		{"798", 0, true},
		{"abc", 0, true},
	} {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): got %o, want %o", tt.in, got, tt.want)
		}
	}
}
