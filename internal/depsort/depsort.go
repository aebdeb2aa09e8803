// Package depsort topologically orders the fields loaded by
// internal/registry into the engine's flat update_order, by iterative
// fixed-point resolution.
package depsort

import "fmt"

// Sort returns fieldNames ordered so that every name's dependency (looked
// up via dependsOf) precedes it. It fails if a pass makes no further
// progress — a cycle or a dependency on a name outside fieldNames, both
// of which are fatal to engine initialization per the registry contract.
func Sort(fieldNames []string, dependsOf func(name string) []string) ([]string, error) {
	total := len(fieldNames)
	resolved := make(map[string]bool, total)
	order := make([]string, 0, total)

	known := make(map[string]bool, total)
	for _, name := range fieldNames {
		known[name] = true
	}

	maxPasses := total * 2
	for pass := 0; len(order) < total && pass < maxPasses; pass++ {
		progressed := false
		for _, name := range fieldNames {
			if resolved[name] {
				continue
			}
			if hasUnresolvedDependency(dependsOf(name), resolved, known) {
				continue
			}
			resolved[name] = true
			order = append(order, name)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if len(order) != total {
		return nil, fmt.Errorf("dependency resolution stalled: %d of %d fields resolved (cycle or dangling dependency)", len(order), total)
	}

	return order, nil
}

// hasUnresolvedDependency reports whether any dependency of a field is
// either unknown (not present in the loaded field set at all) or not yet
// resolved in this pass. Both cases block the field from being ordered.
func hasUnresolvedDependency(deps []string, resolved, known map[string]bool) bool {
	for _, dep := range deps {
		if !known[dep] {
			return true
		}
		if !resolved[dep] {
			return true
		}
	}
	return false
}
