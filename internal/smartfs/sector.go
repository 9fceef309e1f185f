package smartfs

import "fmt"

// SectorID addresses one logical sector. Sector id n occupies bytes
// n*sectorSize up to (n+1)*sectorSize of the image.
type SectorID uint16

// NoSector marks the end of a sector chain.
const NoSector SectorID = 0xffff

// Kind states what a sector holds.
type Kind uint8

const (
	KindVolume Kind = iota
	KindDirectory
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindVolume:
		return "volume"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Status is the lifecycle state of a sector. A sector moves from Free to
// Allocated to Committed and never back.
type Status uint8

const (
	Free Status = iota
	Allocated
	Committed
)

func (s Status) String() string {
	switch s {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Committed:
		return "committed"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Sector is one logical sector under construction.
type Sector struct {
	ID       SectorID
	Kind     Kind
	Status   Status
	Sequence uint16
	Next     SectorID // NoSector while unchained
	Used     int      // payload bytes in use
	Payload  []byte
}
