// Package confloader provides the in-memory koanf provider.
package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider loads configuration from a map of dotted keys.
type mapProvider map[string]any

// ReadBytes implements koanf.Provider.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read implements koanf.Provider. Dotted keys are expanded into nested maps.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		insertDotted(out, key, value)
	}
	return out, nil
}

func insertDotted(dst map[string]any, key string, value any) {
	for {
		i := strings.IndexByte(key, '.')
		if i < 0 {
			dst[key] = value
			return
		}
		child, ok := dst[key[:i]].(map[string]any)
		if !ok {
			child = make(map[string]any)
			dst[key[:i]] = child
		}
		dst, key = child, key[i+1:]
	}
}
