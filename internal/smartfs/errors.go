package smartfs

import "fmt"

// ConfigError reports a volume configuration the on-media format cannot
// represent. Reason names the violated constraint.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// NameTooLongError reports a source entry whose name does not fit the
// volume's name field.
type NameTooLongError struct {
	Path  string // source path of the offending entry
	Limit int    // maximum name length in bytes
}

func (e *NameTooLongError) Error() string {
	return fmt.Sprintf("%s: name exceeds the %d byte limit", e.Path, e.Limit)
}

// OutOfSpaceError reports an exhausted sector pool. Path names the source
// entry whose sectors could not be allocated, when known.
type OutOfSpaceError struct {
	Path         string
	TotalSectors int
	Reserved     int
}

func (e *OutOfSpaceError) Error() string {
	msg := fmt.Sprintf("out of space: all %d data sectors in use (%d total, %d reserved)",
		e.TotalSectors-e.Reserved, e.TotalSectors, e.Reserved)
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return msg
}

// UnreadableSourceError reports a source tree read that failed mid-build.
type UnreadableSourceError struct {
	Path string
	Err  error
}

func (e *UnreadableSourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

func (e *UnreadableSourceError) Unwrap() error { return e.Err }

// InternalInvariantError reports a broken engine invariant. It indicates a
// bug in this package, never a problem with the input.
type InternalInvariantError struct {
	Detail string
}

func (e *InternalInvariantError) Error() string { return e.Detail }

func invariantf(format string, args ...interface{}) *InternalInvariantError {
	return &InternalInvariantError{Detail: "BUG: " + fmt.Sprintf(format, args...)}
}
