package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Version 1 media facts.
const (
	v1SectorHeaderSize = 5
	v1ChainHeaderSize  = 5
	v1EntryOverhead    = 8 // flags + first sector + mtime
	v1ErasedByte       = 0xff
	v1RootSector       = 3
	v1FirstAllocatable = 12
	v1MaxSectors       = 65536
	v1MinSectorSize    = 256
	v1MaxSectorSize    = 32768
)

// Status byte bits. Erased flash reads as all ones, so the committed and
// released states are the zero states of their bits.
const (
	statusNotCommitted = 0x80
	statusNotReleased  = 0x40
	statusCRC          = 0x20
	statusSizeShift    = 2
	statusVersionMask  = 0x03
)

// Directory entry flag bits.
const (
	entryEmpty    = 0x8000 // cleared once the slot is written
	entryActive   = 0x4000
	entryTypeDir  = 0x2000
	entryDeleting = 0x1000 // set means not marked for deletion
	entryReserved = 0x0e00
	entryModeMask = 0x01ff
)

const volumeSignature = "SMRT"

type v1 struct{}

func (v1) Version() int             { return 1 }
func (v1) ErasedByte() byte         { return v1ErasedByte }
func (v1) RootSector() uint16       { return v1RootSector }
func (v1) FirstAllocatable() uint16 { return v1FirstAllocatable }
func (v1) MaxSectors() int          { return v1MaxSectors }
func (v1) SectorHeaderSize() int    { return v1SectorHeaderSize }
func (v1) ChainHeaderSize() int     { return v1ChainHeaderSize }

func (v1) SectorSizeValid(n int) bool {
	return n >= v1MinSectorSize && n <= v1MaxSectorSize && n&(n-1) == 0
}

// Supports reports whether the checksum fits a version 1 sector header,
// which has a single CRC byte.
func (v1) Supports(c Checksum) bool {
	return c == ChecksumNone || c == ChecksumCRC8
}

func (v1) EntrySize(maxNameLen int) int { return v1EntryOverhead + maxNameLen }

func (v1) Capacity(sectorSize int) int {
	return sectorSize - v1SectorHeaderSize - v1ChainHeaderSize
}

func (c v1) VolumeLabel(p Params, extraRoots int) []byte {
	label := make([]byte, 0, len(volumeSignature)+3)
	label = append(label, volumeSignature...)
	return append(label, byte(c.Version()), byte(p.MaxNameLen), byte(extraRoots))
}

// sizeCode returns the 3-bit exponent stored in the status byte
// (sectorSize = 256 << code).
func sizeCode(sectorSize int) byte {
	return byte(bits.TrailingZeros(uint(sectorSize)) - 8)
}

func (c v1) statusByte(p Params) byte {
	s := byte(statusNotReleased) | sizeCode(p.SectorSize)<<statusSizeShift | byte(c.Version())
	if p.Checksum == ChecksumCRC8 {
		s |= statusCRC
	}
	return s
}

// sectorCRC covers the sector body after the header, then header bytes 0..2
// and the status byte.
func (v1) sectorCRC(buf []byte) byte {
	crc := crc8(0, buf[v1SectorHeaderSize:])
	crc = crc8(crc, buf[0:3])
	return crc8(crc, buf[4:5])
}

func (c v1) EncodeSector(p Params, s Sector) ([]byte, error) {
	if !c.SectorSizeValid(p.SectorSize) {
		return nil, fmt.Errorf("invalid sector size %d", p.SectorSize)
	}
	if !c.Supports(p.Checksum) {
		return nil, fmt.Errorf("checksum %s does not fit a version 1 sector header", p.Checksum)
	}
	buf := bytes.Repeat([]byte{v1ErasedByte}, p.SectorSize)
	start := v1SectorHeaderSize
	switch s.Type {
	case TypeVolume:
		// No chain header; the payload follows the sector header.
	case TypeDirectory, TypeFile:
		start += v1ChainHeaderSize
		buf[v1SectorHeaderSize] = byte(s.Type)
		binary.LittleEndian.PutUint16(buf[v1SectorHeaderSize+1:], s.Next)
		used := s.Used
		if s.Type == TypeDirectory {
			// Directory records keep the field erased; readers locate
			// entries by their flags.
			used = UsedErased
		}
		binary.LittleEndian.PutUint16(buf[v1SectorHeaderSize+3:], used)
	default:
		return nil, fmt.Errorf("sector %d: unknown sector type %d", s.Number, s.Type)
	}
	if max := p.SectorSize - start; len(s.Payload) > max {
		return nil, fmt.Errorf("sector %d: payload of %d bytes exceeds capacity %d", s.Number, len(s.Payload), max)
	}
	copy(buf[start:], s.Payload)

	binary.LittleEndian.PutUint16(buf[0:2], s.Number)
	buf[4] = c.statusByte(p)
	if p.Checksum == ChecksumCRC8 {
		buf[2] = byte(s.Sequence)
		buf[3] = c.sectorCRC(buf)
	} else {
		binary.LittleEndian.PutUint16(buf[2:4], s.Sequence)
	}
	return buf, nil
}

// DecodeSector parses one committed directory or file sector (the volume
// header sector has its own fixed layout and is not chained).
func (c v1) DecodeSector(p Params, raw []byte) (Sector, error) {
	if len(raw) != p.SectorSize {
		return Sector{}, fmt.Errorf("got %d bytes, want one full sector of %d", len(raw), p.SectorSize)
	}
	status := raw[4]
	if status&statusVersionMask != byte(c.Version()) {
		return Sector{}, fmt.Errorf("not a version 1 sector (status %#02x)", status)
	}
	if status&statusNotCommitted != 0 {
		return Sector{}, fmt.Errorf("sector not committed (status %#02x)", status)
	}
	if got := 256 << (status >> statusSizeShift & 0x07); got != p.SectorSize {
		return Sector{}, fmt.Errorf("status %#02x encodes sector size %d, want %d", status, got, p.SectorSize)
	}

	var s Sector
	s.Number = binary.LittleEndian.Uint16(raw[0:2])
	if status&statusCRC != 0 {
		if p.Checksum != ChecksumCRC8 {
			return Sector{}, fmt.Errorf("sector %d carries a checksum but the volume is configured with %s", s.Number, p.Checksum)
		}
		s.Sequence = uint16(raw[2])
		if got, want := c.sectorCRC(raw), raw[3]; got != want {
			return Sector{}, fmt.Errorf("sector %d: checksum mismatch: got %#02x, want %#02x", s.Number, got, want)
		}
	} else {
		if p.Checksum != ChecksumNone {
			return Sector{}, fmt.Errorf("sector %d carries no checksum but the volume is configured with %s", s.Number, p.Checksum)
		}
		s.Sequence = binary.LittleEndian.Uint16(raw[2:4])
	}

	switch typ := SectorType(raw[v1SectorHeaderSize]); typ {
	case TypeDirectory, TypeFile:
		s.Type = typ
	default:
		return Sector{}, fmt.Errorf("sector %d: unknown chain type %d", s.Number, raw[v1SectorHeaderSize])
	}
	s.Next = binary.LittleEndian.Uint16(raw[v1SectorHeaderSize+1 : v1SectorHeaderSize+3])
	s.Used = binary.LittleEndian.Uint16(raw[v1SectorHeaderSize+3 : v1SectorHeaderSize+5])
	s.Payload = append([]byte(nil), raw[v1SectorHeaderSize+v1ChainHeaderSize:]...)
	return s, nil
}

func (c v1) EncodeEntry(p Params, e Entry) ([]byte, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("empty entry name")
	}
	if len(e.Name) > p.MaxNameLen {
		return nil, fmt.Errorf("entry name %q is %d bytes, limit is %d", e.Name, len(e.Name), p.MaxNameLen)
	}
	flags := uint16(entryActive|entryDeleting|entryReserved) | e.Mode&entryModeMask
	if e.Directory {
		flags |= entryTypeDir
	}
	buf := make([]byte, c.EntrySize(p.MaxNameLen))
	binary.LittleEndian.PutUint16(buf[0:2], flags)
	binary.LittleEndian.PutUint16(buf[2:4], e.FirstSector)
	binary.LittleEndian.PutUint32(buf[4:8], e.MTime)
	copy(buf[v1EntryOverhead:], e.Name)
	return buf, nil
}

func (c v1) DecodeEntry(p Params, raw []byte) (Entry, bool, error) {
	if want := c.EntrySize(p.MaxNameLen); len(raw) != want {
		return Entry{}, false, fmt.Errorf("got %d bytes, want %d", len(raw), want)
	}
	flags := binary.LittleEndian.Uint16(raw[0:2])
	if flags&entryEmpty != 0 {
		return Entry{}, false, nil
	}
	e := Entry{
		Directory:   flags&entryTypeDir != 0,
		Mode:        flags & entryModeMask,
		FirstSector: binary.LittleEndian.Uint16(raw[2:4]),
		MTime:       binary.LittleEndian.Uint32(raw[4:8]),
	}
	name := raw[v1EntryOverhead:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	e.Name = string(name)
	return e, true, nil
}
