package protocol

import (
	"encoding/base64"
	"strings"
)

// Metadata is an insertion ordered key/value mapping sent in the Upload-Metadata header.
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata ...
func NewMetadata() *Metadata {
	return &Metadata{values: map[string]string{}}
}

// Set adds a key or replaces the value of an existing one, keeping its original position.
func (m *Metadata) Set(key, value string) {
	if m.values == nil {
		m.values = map[string]string{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get ...
func (m *Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Clone returns an independent copy of m. A nil m gives an empty Metadata.
func (m *Metadata) Clone() *Metadata {
	clone := NewMetadata()
	for _, key := range m.Keys() {
		clone.Set(key, m.values[key])
	}
	return clone
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len ...
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// EncodeMetadata serializes m as "key base64(value)" pairs joined by commas, in insertion order.
func EncodeMetadata(m *Metadata) string {
	if m.Len() == 0 {
		return ""
	}

	pairs := make([]string, 0, len(m.keys))
	for _, key := range m.keys {
		value := base64.StdEncoding.EncodeToString([]byte(m.values[key]))
		pairs = append(pairs, key+" "+value)
	}
	return strings.Join(pairs, ",")
}
