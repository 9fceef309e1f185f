package smartfs

// Child is one directory member as yielded by a Source.
type Child struct {
	Name string
	Dir  bool
}

// Source yields the tree being packed. Paths are slash separated and rooted
// at "/". The builder makes a single pass from one goroutine and reads each
// file's bytes sequentially, so implementations may keep per-file state such
// as an open handle.
type Source interface {
	// List returns the members of the directory at path. Their order is
	// the build order and must be stable across calls.
	List(path string) ([]Child, error)

	// Size returns the byte size of the file at path.
	Size(path string) (int64, error)

	// ReadBytes returns exactly n bytes of the file at path starting at
	// offset off. Fewer available bytes are an error, not a short result.
	ReadBytes(path string, off int64, n int) ([]byte, error)
}

// RealPather is implemented by sources that can resolve a directory to a
// stable location with symlinks followed. The builder uses it to detect
// directory cycles; sources that cannot produce cycles (such as fs.FS
// adapters) do not implement it.
type RealPather interface {
	RealPath(path string) (string, error)
}
