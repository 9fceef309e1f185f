// Package layout implements the on-media SMART filesystem format: sector
// headers, chain headers, directory entries and the volume header.
//
// The engine in internal/smartfs treats the format as a pluggable codec so
// that allocation and build logic never touch raw offsets, and so that the
// byte layout can be verified in isolation against the format's reference
// values.
package layout

import (
	"fmt"
	"strings"
)

// Sentinel values used in chain headers. Erased NOR flash reads as all ones,
// so "no value" is encoded as 0xFFFF on media.
const (
	// NoSector terminates a sector chain (no next sector).
	NoSector = 0xFFFF

	// UsedErased is the used-bytes field of a directory record. Directory
	// sectors keep the field in its erased state; readers find entries by
	// their flags, not by a byte count.
	UsedErased = 0xFFFF
)

// SectorType discriminates what a serialized sector holds.
type SectorType uint8

const (
	// TypeVolume is the fixed header sector at logical number 0. It has no
	// chain header; its payload starts directly after the sector header.
	TypeVolume SectorType = 0

	// TypeDirectory and TypeFile are the chain header type codes.
	TypeDirectory SectorType = 1
	TypeFile      SectorType = 2
)

func (t SectorType) String() string {
	switch t {
	case TypeVolume:
		return "volume"
	case TypeDirectory:
		return "directory"
	case TypeFile:
		return "file"
	}
	return fmt.Sprintf("SectorType(%d)", uint8(t))
}

// Checksum selects the per-sector checksum stored in the sector header.
type Checksum int

const (
	ChecksumNone Checksum = iota
	ChecksumCRC8
	ChecksumCRC16
)

func (c Checksum) String() string {
	switch c {
	case ChecksumNone:
		return "none"
	case ChecksumCRC8:
		return "crc8"
	case ChecksumCRC16:
		return "crc16"
	}
	return fmt.Sprintf("Checksum(%d)", int(c))
}

// ParseChecksum parses a --crc flag value.
func ParseChecksum(s string) (Checksum, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ChecksumNone, nil
	case "crc8":
		return ChecksumCRC8, nil
	case "crc16":
		return ChecksumCRC16, nil
	}
	return 0, fmt.Errorf("unknown checksum %q (expected none, crc8 or crc16)", s)
}

// Params are the per-volume encoding parameters. They are fixed at format
// time and recorded in the volume header.
type Params struct {
	SectorSize int
	MaxNameLen int
	Checksum   Checksum
}

// Sector is one logical sector record as handed to the codec. Fields that a
// given sector type does not carry on media (Next and Used for TypeVolume)
// are ignored during encoding.
type Sector struct {
	Number   uint16
	Sequence uint16
	Type     SectorType
	Next     uint16 // NoSector when the chain ends
	Used     uint16 // payload bytes in use
	Payload  []byte
}

// Entry is one directory entry.
type Entry struct {
	Name        string
	Directory   bool
	FirstSector uint16
	Mode        uint16 // permission bits, owner<<6|group<<3|other
	MTime       uint32 // seconds since the Unix epoch
}

// Codec serializes sectors for one format version. Implementations are pure:
// encoding allocates and returns a fresh buffer and never mutates its inputs.
type Codec interface {
	// Version is the format version recorded in every status byte and in
	// the volume header.
	Version() int

	// ErasedByte is the fill value of unwritten media.
	ErasedByte() byte

	// RootSector is the logical number of the first root directory sector.
	RootSector() uint16

	// FirstAllocatable is the first logical number outside the reserved
	// header region. Sectors below it are claimed, never pool-allocated.
	FirstAllocatable() uint16

	// MaxSectors is the format's addressing limit, one past the largest
	// usable total (the top numbers serve as sentinels).
	MaxSectors() int

	SectorSizeValid(n int) bool
	Supports(c Checksum) bool

	SectorHeaderSize() int
	ChainHeaderSize() int

	// EntrySize is the on-media size of one directory entry for the given
	// maximum name length.
	EntrySize(maxNameLen int) int

	// Capacity is the payload capacity of one directory or file sector.
	Capacity(sectorSize int) int

	// VolumeLabel builds the payload of the volume header sector.
	VolumeLabel(p Params, extraRoots int) []byte

	EncodeSector(p Params, s Sector) ([]byte, error)
	DecodeSector(p Params, raw []byte) (Sector, error)

	EncodeEntry(p Params, e Entry) ([]byte, error)

	// DecodeEntry parses one entry slot. The second result is false when
	// the slot is in its erased state (never written).
	DecodeEntry(p Params, raw []byte) (Entry, bool, error)
}

// ForVersion returns the codec for a format version.
func ForVersion(v int) (Codec, error) {
	if v != 1 {
		return nil, fmt.Errorf("unsupported format version %d (only version 1 is defined)", v)
	}
	return v1{}, nil
}

// Entries parses the consecutive entry slots of a directory sector payload,
// stopping at the first erased slot.
func Entries(cod Codec, p Params, payload []byte) ([]Entry, error) {
	size := cod.EntrySize(p.MaxNameLen)
	var entries []Entry
	for off := 0; off+size <= len(payload); off += size {
		e, ok, err := cod.DecodeEntry(p, payload[off:off+size])
		if err != nil {
			return nil, fmt.Errorf("entry at offset %d: %v", off, err)
		}
		if !ok {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}
