// Package smartfs builds SMART filesystem images from a directory tree.
//
// A build is all or nothing: Compute validates the volume shape, Build walks
// the source exactly once and either returns a complete image or an error
// describing the first problem. Building the same unchanged tree twice with
// the same configuration yields byte-identical images; nothing in this
// package reads the clock or depends on map iteration order.
package smartfs

import (
	"bytes"
	"io"

	"github.com/smartfs/tools/internal/smartfs/layout"
)

// Stats summarizes what a build placed into the image.
type Stats struct {
	SectorsTotal int
	SectorsUsed  int   // committed sectors, the reserved header region included
	Files        int
	Directories  int   // the root included
	PayloadBytes int64 // file content bytes stored
}

// Image is a fully assembled volume.
type Image struct {
	geom  Geometry
	buf   []byte
	stats Stats
}

// Bytes returns the image contents. The slice is owned by the Image and must
// not be modified.
func (img *Image) Bytes() []byte { return img.buf }

func (img *Image) Geometry() Geometry { return img.geom }

func (img *Image) Stats() Stats { return img.stats }

// WriteTo writes the complete image to w.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(img.buf)
	return int64(n), err
}

// Build packs the tree yielded by src into a fresh volume image. The
// geometry must come from Compute. On any error no image is returned; a
// partial build is never observable.
func Build(g Geometry, src Source) (*Image, error) {
	if g.codec == nil {
		return nil, invariantf("geometry was not produced by Compute")
	}
	alloc := newAllocator(g)

	// Reserved header region: the volume header at sector 0 and the root
	// directory sector(s). Everything else below FirstAllocatable stays
	// erased.
	vol, err := alloc.claim(0, KindVolume)
	if err != nil {
		return nil, err
	}
	vol.Payload = g.codec.VolumeLabel(g.params(), g.ExtraRootDirs)
	vol.Used = len(vol.Payload)
	if err := alloc.commit(vol); err != nil {
		return nil, err
	}

	root, err := alloc.claim(g.RootSector, KindDirectory)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= g.ExtraRootDirs; i++ {
		extra, err := alloc.claim(g.RootSector+SectorID(i), KindDirectory)
		if err != nil {
			return nil, err
		}
		if err := alloc.commit(extra); err != nil {
			return nil, err
		}
	}

	b := newBuilder(g, src, alloc)
	if err := b.run(root); err != nil {
		return nil, err
	}
	return assemble(g, alloc, b)
}

// assemble serializes every committed sector into an erased buffer at its
// identity offset (sector id times sector size).
func assemble(g Geometry, alloc *allocator, b *builder) (*Image, error) {
	if id := alloc.leaked(); id != NoSector {
		return nil, invariantf("sector %d allocated but never committed", id)
	}

	p := g.params()
	buf := bytes.Repeat([]byte{g.codec.ErasedByte()}, int(g.StorageSize))
	for _, s := range alloc.committed {
		raw, err := g.codec.EncodeSector(p, layout.Sector{
			Number:   uint16(s.ID),
			Sequence: s.Sequence,
			Type:     wireType(s.Kind),
			Next:     uint16(s.Next),
			Used:     uint16(s.Used),
			Payload:  s.Payload,
		})
		if err != nil {
			return nil, invariantf("serializing %s sector %d: %v", s.Kind, s.ID, err)
		}
		if len(raw) != g.SectorSize {
			return nil, invariantf("serialized sector %d to %d bytes, want %d", s.ID, len(raw), g.SectorSize)
		}
		copy(buf[int(s.ID)*g.SectorSize:], raw)
	}

	return &Image{
		geom: g,
		buf:  buf,
		stats: Stats{
			SectorsTotal: g.TotalSectors,
			SectorsUsed:  len(alloc.committed),
			Files:        b.files,
			Directories:  b.dirs,
			PayloadBytes: b.payload,
		},
	}, nil
}

func wireType(k Kind) layout.SectorType {
	switch k {
	case KindDirectory:
		return layout.TypeDirectory
	case KindFile:
		return layout.TypeFile
	default:
		return layout.TypeVolume
	}
}
