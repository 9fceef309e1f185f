// Package imgwrite writes finished filesystem images to regular files, block
// devices, or the Intel HEX text format that flashing tools consume.
package imgwrite

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/marcinbor85/gohex"
)

// WriteRaw writes img to path. Regular files are replaced atomically, and
// only when force is set or path does not exist yet. Block devices are
// written in place after verifying that the image fits.
func WriteRaw(path string, img []byte, force bool) error {
	if st, err := os.Stat(path); err == nil {
		if st.Mode()&os.ModeDevice != 0 {
			return writeDevice(path, img)
		}
		if !st.Mode().IsRegular() {
			return fmt.Errorf("refusing to write to %s: neither a regular file nor a device", path)
		}
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return replaceFile(path, img, 0644)
}

func writeDevice(path string, img []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	// A deviceSize of 0 means the platform cannot tell; write anyway and
	// let the kernel report ENOSPC.
	if devsize, err := deviceSize(f.Fd()); err == nil && devsize > 0 && devsize < uint64(len(img)) {
		f.Close()
		return fmt.Errorf("device %s holds %d bytes, but the image needs %d bytes", path, devsize, len(img))
	}
	if _, err := f.Write(img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteHex converts img to Intel HEX records starting at address base and
// writes them to w.
func WriteHex(w io.Writer, img []byte, base uint32) error {
	mem := gohex.NewMemory()
	mem.AddBinary(base, img)
	return mem.DumpIntelHex(w, 16)
}

// WriteHexFile writes the Intel HEX conversion of img to path, replacing an
// existing file atomically.
func WriteHexFile(path string, img []byte, base uint32) error {
	var buf bytes.Buffer
	if err := WriteHex(&buf, img, base); err != nil {
		return err
	}
	return replaceFile(path, buf.Bytes(), 0644)
}
