// Package memory provides an in-memory raw-input source.
//
// A Source bundles the raw values of one invocation so drivers can build
// them up incrementally and apply them to a kiln in one step.
package memory

import (
	"github.com/aretw0/kiln"
)

// Source collects raw node values for one invocation.
// It is not safe for concurrent use; build it in the driver, then Apply.
type Source struct {
	values map[string]any
}

// NewSource creates an empty source.
func NewSource() *Source {
	return &Source{values: make(map[string]any)}
}

// NewSourceFrom creates a source pre-filled with the given values.
func NewSourceFrom(values map[string]any) *Source {
	s := NewSource()
	for name, value := range values {
		s.values[name] = value
	}
	return s
}

// Set stores a raw value under the node name, replacing any previous one.
func (s *Source) Set(name string, value any) *Source {
	s.values[name] = value
	return s
}

// Apply supplies every collected value into the kiln.
// It stops at the first failure (unknown node, derived node, closed kiln).
func (s *Source) Apply(k *kiln.Kiln) error {
	for name, value := range s.values {
		if err := k.Supply(name, value); err != nil {
			return err
		}
	}
	return nil
}
