package smartfs

import (
	"fmt"
	"path"
	"strings"

	"github.com/smartfs/tools/internal/smartfs/layout"
)

// builder packs a source tree into sector chains. It walks the tree depth
// first with an explicit stack: a directory's entry is appended to its
// parent only once all of the directory's own content has been committed,
// so every first-sector reference points at finished data.
type builder struct {
	geom  Geometry
	p     layout.Params
	alloc *allocator
	src   Source
	real  RealPather // nil when the source cannot resolve paths

	files   int
	dirs    int
	payload int64
}

// dirFrame is one directory being filled. rec is the open record sector of
// its entry chain; earlier sectors of the chain are already committed.
type dirFrame struct {
	path     string
	realPath string
	name     string // entry name in the parent, "" for the root
	children []Child
	next     int
	first    SectorID
	rec      *Sector
	entries  int // entries in rec
}

func newBuilder(g Geometry, src Source, alloc *allocator) *builder {
	b := &builder{geom: g, p: g.params(), alloc: alloc, src: src}
	if rp, ok := src.(RealPather); ok {
		b.real = rp
	}
	return b
}

// run builds the whole tree into the record chain starting at root, which
// must be the claimed, still uncommitted root directory sector.
func (b *builder) run(root *Sector) error {
	rootReal, err := b.realPath("/")
	if err != nil {
		return err
	}
	frame, err := b.enterDir("/", "", rootReal, root)
	if err != nil {
		return err
	}
	stack := []*dirFrame{frame}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next == len(f.children) {
			// Directory exhausted: seal its record chain, then make
			// it visible in the parent.
			if err := b.alloc.commit(f.rec); err != nil {
				return err
			}
			b.dirs++
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			err := b.appendEntry(parent, layout.Entry{
				Name:        f.name,
				Directory:   true,
				FirstSector: uint16(f.first),
				Mode:        b.geom.DirMode,
				MTime:       uint32(b.geom.MTime),
			})
			if err != nil {
				return err
			}
			continue
		}

		c := f.children[f.next]
		f.next++
		cpath := path.Join(f.path, c.Name)
		if err := checkName(cpath, c.Name, b.geom.MaxNameLen); err != nil {
			return err
		}

		if c.Dir {
			real, err := b.realPath(cpath)
			if err != nil {
				return err
			}
			if err := checkCycle(stack, cpath, real); err != nil {
				return err
			}
			rec, err := b.alloc.allocate(KindDirectory)
			if err != nil {
				return spacePath(cpath, err)
			}
			sub, err := b.enterDir(cpath, c.Name, real, rec)
			if err != nil {
				return err
			}
			stack = append(stack, sub)
			continue
		}

		first, err := b.buildFile(cpath)
		if err != nil {
			return err
		}
		b.files++
		err = b.appendEntry(f, layout.Entry{
			Name:        c.Name,
			FirstSector: uint16(first),
			Mode:        b.geom.FileMode,
			MTime:       uint32(b.geom.MTime),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) enterDir(dirPath, name, realPath string, rec *Sector) (*dirFrame, error) {
	children, err := b.src.List(dirPath)
	if err != nil {
		return nil, &UnreadableSourceError{Path: dirPath, Err: err}
	}
	return &dirFrame{
		path:     dirPath,
		realPath: realPath,
		name:     name,
		children: children,
		first:    rec.ID,
		rec:      rec,
	}, nil
}

func (b *builder) realPath(dirPath string) (string, error) {
	if b.real == nil {
		return "", nil
	}
	rp, err := b.real.RealPath(dirPath)
	if err != nil {
		return "", &UnreadableSourceError{Path: dirPath, Err: err}
	}
	return rp, nil
}

// checkCycle rejects a directory that resolves to a location already being
// built further up the stack, which happens when symlinks form a loop.
func checkCycle(stack []*dirFrame, dirPath, realPath string) error {
	if realPath == "" {
		return nil
	}
	for _, f := range stack {
		if f.realPath == realPath {
			return &UnreadableSourceError{
				Path: dirPath,
				Err:  fmt.Errorf("directory cycle: already being built as %s", f.path),
			}
		}
	}
	return nil
}

// appendEntry adds one entry to a directory's record chain, spilling into a
// freshly allocated continuation sector when the open one is full.
func (b *builder) appendEntry(f *dirFrame, e layout.Entry) error {
	if f.entries == b.geom.EntriesPerSector {
		next, err := b.alloc.allocate(KindDirectory)
		if err != nil {
			return spacePath(f.path, err)
		}
		f.rec.Next = next.ID
		if err := b.alloc.commit(f.rec); err != nil {
			return err
		}
		f.rec = next
		f.entries = 0
	}
	raw, err := b.geom.codec.EncodeEntry(b.p, e)
	if err != nil {
		return invariantf("encoding entry %q: %v", e.Name, err)
	}
	f.rec.Payload = append(f.rec.Payload, raw...)
	f.rec.Used = len(f.rec.Payload)
	f.entries++
	return nil
}

// buildFile packs one file into a committed sector chain and returns its
// first sector. An empty file still occupies one sector with no used bytes.
func (b *builder) buildFile(filePath string) (SectorID, error) {
	size, err := b.src.Size(filePath)
	if err != nil {
		return 0, &UnreadableSourceError{Path: filePath, Err: err}
	}
	if size < 0 {
		return 0, invariantf("source reported size %d for %s", size, filePath)
	}

	first := NoSector
	var prev *Sector
	var off int64
	remaining := size
	for {
		s, err := b.alloc.allocate(KindFile)
		if err != nil {
			return 0, spacePath(filePath, err)
		}
		if prev == nil {
			first = s.ID
		} else {
			prev.Next = s.ID
			if err := b.alloc.commit(prev); err != nil {
				return 0, err
			}
		}

		chunk := int64(b.geom.Capacity)
		if remaining < chunk {
			chunk = remaining
		}
		if chunk > 0 {
			data, err := b.src.ReadBytes(filePath, off, int(chunk))
			if err != nil {
				return 0, &UnreadableSourceError{Path: filePath, Err: err}
			}
			if len(data) != int(chunk) {
				return 0, &UnreadableSourceError{
					Path: filePath,
					Err:  fmt.Errorf("short read: got %d bytes at offset %d, want %d", len(data), off, chunk),
				}
			}
			s.Payload = data
			s.Used = len(data)
			off += chunk
			remaining -= chunk
			b.payload += chunk
		}

		if remaining == 0 {
			if err := b.alloc.commit(s); err != nil {
				return 0, err
			}
			return first, nil
		}
		prev = s
	}
}

func checkName(entryPath, name string, limit int) error {
	if len(name) > limit {
		return &NameTooLongError{Path: entryPath, Limit: limit}
	}
	if name == "" || strings.ContainsAny(name, "\x00/") {
		return fmt.Errorf("%s: name %q cannot be stored", entryPath, name)
	}
	return nil
}

// spacePath records the source path on an out of space failure.
func spacePath(p string, err error) error {
	if oos, ok := err.(*OutOfSpaceError); ok && oos.Path == "" {
		oos.Path = p
	}
	return err
}
