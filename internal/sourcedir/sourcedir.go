// Package sourcedir adapts a host directory or an fs.FS to the traversal
// interface consumed by the image builder.
package sourcedir

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartfs/tools/internal/smartfs"
)

// Dir yields a host directory tree. Symlinks are followed, so a directory
// symlink behaves like the directory it points at and a dangling one is a
// read error; the builder breaks symlink loops through RealPath. The most
// recently read file is kept open because the builder consumes files in
// sequential chunks; Close releases it.
type Dir struct {
	base string
	file *os.File
	name string // source path of file
}

func New(base string) *Dir {
	return &Dir{base: base}
}

func (d *Dir) host(p string) string {
	return filepath.Join(d.base, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func (d *Dir) List(p string) ([]smartfs.Child, error) {
	entries, err := os.ReadDir(d.host(p))
	if err != nil {
		return nil, err
	}
	children := make([]smartfs.Child, 0, len(entries))
	for _, e := range entries {
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(d.host(p), e.Name()))
			if err != nil {
				return nil, err
			}
			mode = info.Mode().Type()
		}
		switch {
		case mode.IsDir():
			children = append(children, smartfs.Child{Name: e.Name(), Dir: true})
		case mode.IsRegular():
			children = append(children, smartfs.Child{Name: e.Name()})
		default:
			return nil, fmt.Errorf("%s: unsupported file type %v", e.Name(), mode)
		}
	}
	return children, nil
}

func (d *Dir) Size(p string) (int64, error) {
	info, err := os.Stat(d.host(p))
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file (%v)", info.Mode())
	}
	return info.Size(), nil
}

func (d *Dir) ReadBytes(p string, off int64, n int) ([]byte, error) {
	f, err := d.open(p)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Dir) open(p string) (*os.File, error) {
	if d.file != nil && d.name == p {
		return d.file, nil
	}
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
	f, err := os.Open(d.host(p))
	if err != nil {
		return nil, err
	}
	d.file, d.name = f, p
	return f, nil
}

// RealPath resolves a source directory to its host location with symlinks
// followed.
func (d *Dir) RealPath(p string) (string, error) {
	return filepath.EvalSymlinks(d.host(p))
}

// Close releases the cached file handle. The Dir stays usable.
func (d *Dir) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file, d.name = nil, ""
	return err
}

// FromFS adapts fsys for building. An fs.FS cannot express symlinks, so the
// adapter does not implement RealPath and no cycle handling applies.
func FromFS(fsys fs.FS) smartfs.Source {
	return &fsSource{fsys: fsys}
}

type fsSource struct {
	fsys fs.FS
	file fs.File
	name string // source path of file
	pos  int64
}

func fsPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

func (s *fsSource) List(p string) ([]smartfs.Child, error) {
	entries, err := fs.ReadDir(s.fsys, fsPath(p))
	if err != nil {
		return nil, err
	}
	children := make([]smartfs.Child, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.IsDir():
			children = append(children, smartfs.Child{Name: e.Name(), Dir: true})
		case e.Type().IsRegular():
			children = append(children, smartfs.Child{Name: e.Name()})
		default:
			return nil, fmt.Errorf("%s: unsupported file type %v", e.Name(), e.Type())
		}
	}
	return children, nil
}

func (s *fsSource) Size(p string) (int64, error) {
	info, err := fs.Stat(s.fsys, fsPath(p))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *fsSource) ReadBytes(p string, off int64, n int) ([]byte, error) {
	if s.file == nil || s.name != p {
		if err := s.switchTo(p); err != nil {
			return nil, err
		}
	}
	if ra, ok := s.file.(io.ReaderAt); ok {
		buf := make([]byte, n)
		if _, err := ra.ReadAt(buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	}
	if off != s.pos {
		// fs.File guarantees no Seek; rewind by reopening.
		if err := s.switchTo(p); err != nil {
			return nil, err
		}
		if _, err := io.CopyN(io.Discard, s.file, off); err != nil {
			return nil, err
		}
		s.pos = off
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.file, buf); err != nil {
		return nil, err
	}
	s.pos += int64(n)
	return buf, nil
}

func (s *fsSource) switchTo(p string) error {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	f, err := s.fsys.Open(fsPath(p))
	if err != nil {
		return err
	}
	s.file, s.name, s.pos = f, p, 0
	return nil
}
