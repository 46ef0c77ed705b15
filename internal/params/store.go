// Package params loads model parameters from a directory of raw float32
// blobs described by a YAML manifest. The store is an opaque key-value view:
// the model looks arrays up by dotted key and owns their interpretation.
package params

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Entry describes one parameter array in the manifest.
type Entry struct {
	Key   string `yaml:"key"`
	File  string `yaml:"file"`
	Shape []int  `yaml:"shape"`
}

type manifest struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// Store is a read-only map from parameter key to flat float64 array. Safe
// for concurrent lookups once loaded.
type Store struct {
	values map[string][]float64
	shapes map[string][]int
}

// NewStore builds an in-memory store, mainly for tests.
func NewStore(values map[string][]float64) *Store {
	s := &Store{
		values: make(map[string][]float64, len(values)),
		shapes: make(map[string][]int, len(values)),
	}
	for k, v := range values {
		s.values[k] = v
		s.shapes[k] = []int{len(v)}
	}
	return s
}

// Load reads manifest.yaml from dir and every blob it references.
func Load(dir string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	s := &Store{
		values: make(map[string][]float64, len(m.Entries)),
		shapes: make(map[string][]int, len(m.Entries)),
	}
	for _, e := range m.Entries {
		if e.Key == "" || e.File == "" {
			return nil, fmt.Errorf("manifest entry missing key or file (key=%q)", e.Key)
		}
		if _, dup := s.values[e.Key]; dup {
			return nil, fmt.Errorf("duplicate parameter key %q", e.Key)
		}
		blob, err := os.ReadFile(filepath.Join(dir, e.File))
		if err != nil {
			return nil, fmt.Errorf("read blob for %q: %w", e.Key, err)
		}
		if len(blob)%4 != 0 {
			return nil, fmt.Errorf("blob for %q is %d bytes, not a float32 array", e.Key, len(blob))
		}
		values := make([]float64, len(blob)/4)
		for i := range values {
			bits := binary.LittleEndian.Uint32(blob[i*4:])
			values[i] = float64(math.Float32frombits(bits))
		}
		if want := product(e.Shape); len(e.Shape) > 0 && want != len(values) {
			return nil, fmt.Errorf("blob for %q holds %d values, manifest shape %v wants %d",
				e.Key, len(values), e.Shape, want)
		}
		s.values[e.Key] = values
		s.shapes[e.Key] = e.Shape
	}
	return s, nil
}

// Lookup returns the array for key, reporting whether it exists.
func (s *Store) Lookup(key string) ([]float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Shape returns the manifest shape for key, if any.
func (s *Store) Shape(key string) []int {
	return s.shapes[key]
}

// Len returns the number of stored arrays.
func (s *Store) Len() int { return len(s.values) }

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
