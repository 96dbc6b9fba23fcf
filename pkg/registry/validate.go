package registry

import (
	"errors"
	"fmt"

	"github.com/aretw0/kiln/pkg/domain"
)

// Validate checks graph integrity over the declared dependency lists:
// every declared dependency must be defined, and the declared graph must be
// acyclic. Resolution detects cycles at runtime regardless; validating the
// static shape up front gives drivers an earlier, aggregated report.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error

	for name, def := range r.defs {
		for _, dep := range def.Deps {
			if _, ok := r.defs[dep]; !ok {
				errs = append(errs, fmt.Errorf("node '%s' depends on '%s': %w", name, dep, domain.ErrNodeNotFound))
			}
		}
	}

	// Colors: 0 unvisited, 1 on stack, 2 done.
	colors := make(map[string]int, len(r.defs))
	var path []string
	var visit func(string) *domain.CycleError
	visit = func(n string) *domain.CycleError {
		switch colors[n] {
		case 1:
			return &domain.CycleError{Node: n, Path: append(append([]string{}, path...), n)}
		case 2:
			return nil
		}
		colors[n] = 1
		path = append(path, n)
		if def, ok := r.defs[n]; ok {
			for _, dep := range def.Deps {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		colors[n] = 2
		return nil
	}

	for name := range r.defs {
		if cycle := visit(name); cycle != nil {
			errs = append(errs, cycle)
			break
		}
	}

	return errors.Join(errs...)
}
