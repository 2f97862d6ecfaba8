// Package repository persists named documents atomically.
//
// A document is an opaque byte payload addressed by a slash-separated key.
// Every backend guarantees that Commit either fully replaces the stored
// payload or leaves the previous one intact.
package repository

import (
	"context"
	"strings"
)

// Store provides atomic load/commit of whole documents.
type Store interface {
	// Load returns the last committed payload for key, or nil when the key
	// has never been committed. Absence is not an error.
	Load(ctx context.Context, key string) ([]byte, error)
	// Commit atomically replaces the payload for key.
	Commit(ctx context.Context, key string, data []byte) error
	// Close releases backend resources.
	Close() error
}

// ValidateKey checks key against the shared key syntax: non-empty
// slash-separated segments of [A-Za-z0-9._~%-], none of them "." or "..".
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
		for i := 0; i < len(seg); i++ {
			if !keyByte(seg[i]) {
				return ErrInvalidKey
			}
		}
	}
	return nil
}

func keyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '~', c == '%', c == '-':
		return true
	}
	return false
}

// EscapeSegment turns an arbitrary name into a valid key segment. Bytes
// outside [A-Za-z0-9._~-] become %XX; a name made only of dots is fully
// escaped so it can never address a parent segment.
func EscapeSegment(name string) string {
	const hex = "0123456789ABCDEF"
	allDots := strings.Trim(name, ".") == ""
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if keyByte(c) && c != '%' && !(allDots && c == '.') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}
