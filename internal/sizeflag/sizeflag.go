// Package sizeflag provides a pflag.Value for byte counts that understands
// the k, m and g suffixes commonly used when describing flash partitions.
package sizeflag

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bytes is a byte count flag. Values are plain integers (base prefixes like
// 0x work) with an optional k, m or g suffix in binary multiples.
type Bytes int64

// New returns a Bytes flag initialized to def, for use with pflag.Var.
func New(def int64) *Bytes {
	b := Bytes(def)
	return &b
}

func (b *Bytes) String() string {
	return strconv.FormatInt(int64(*b), 10)
}

func (b *Bytes) Set(s string) error {
	n, err := Parse(s)
	if err != nil {
		return err
	}
	*b = Bytes(n)
	return nil
}

func (b *Bytes) Type() string { return "bytes" }

func (b *Bytes) Int64() int64 { return int64(*b) }

func (b *Bytes) Int() int { return int(*b) }

// Parse converts a size argument like 960, 64k, 1M or 0x100000 into a byte
// count. Suffixes are case-insensitive and binary: k is 1024 bytes.
func Parse(s string) (int64, error) {
	digits := strings.TrimSpace(s)
	if digits == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch digits[len(digits)-1] {
	case 'k', 'K':
		mult = 1 << 10
		digits = digits[:len(digits)-1]
	case 'm', 'M':
		mult = 1 << 20
		digits = digits[:len(digits)-1]
	case 'g', 'G':
		mult = 1 << 30
		digits = digits[:len(digits)-1]
	}
	n, err := strconv.ParseInt(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("invalid size %q: out of range", s)
	}
	return n * mult, nil
}
