// Package registry parses per-component configuration files into the
// field table the engine advances. Loading is tolerant: a broken file or
// field is warned about and skipped, the rest still load.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Algorithm names an evaluation strategy. The registry carries these
// verbatim as strings — the sum-type dispatch lives in the engine package,
// which is the only consumer that needs to switch on them.
type Algorithm string

const (
	AlgoPeriodicOscillation Algorithm = "periodic-oscillation"
	AlgoLinearRampDown      Algorithm = "linear-ramp-decreasing"
	AlgoLinearRampUp        Algorithm = "linear-ramp-increasing"
	AlgoRapidRampDown       Algorithm = "rapid-ramp-decreasing"
	AlgoRapidRampUp         Algorithm = "rapid-ramp-increasing"
	AlgoDerivedFormula      Algorithm = "derived-formula"
	AlgoExternallySourced   Algorithm = "externally-sourced"
	AlgoFastLinearDown      Algorithm = "fast-linear-decrease-at-constant-rate"
	AlgoFastLinearUp        Algorithm = "fast-linear-increase-at-constant-rate"
)

// componentFile is the on-disk shape of a component configuration file.
type componentFile struct {
	ComponentName string                    `json:"component_name"`
	Fields        map[string]rawFieldConfig `json:"fields"`
}

// rawFieldConfig captures every key alongside algorithm/depends_on so
// algorithm-specific parameters (base_value, duration_seconds, formula,
// ...) can be preserved verbatim without a closed param schema.
type rawFieldConfig map[string]json.RawMessage

// Field is a fully registered, not-yet-sorted field: its configuration
// plus the identity fields the engine and dependency sorter need.
type Field struct {
	Name              string
	ComponentName     string
	Algorithm         Algorithm
	StartingAlgorithm Algorithm
	Params            map[string]json.RawMessage
	DependsOn         []string
}

// Key returns the field's table key. Field names are unique only within
// their component (eva1 and eva2 both carry a primary_battery_level), so
// the table is keyed component-qualified.
func (f *Field) Key() string { return f.ComponentName + "." + f.Name }

// Component is a named collection of fields sharing a run/stop/reset
// lifecycle. Field order here is load order, not dependency order; the
// dependency sorter (internal/depsort) produces the engine's update_order
// separately.
type Component struct {
	Name   string
	Fields []string // field keys (Field.Key), load order
}

// Table is the result of loading every predefined configuration file: all
// registered fields keyed by Field.Key, and the components that own them.
type Table struct {
	Fields     map[string]*Field
	Components map[string]*Component
}

// DependencyKeys resolves a field's depends_on names into table keys: a
// bare dependency name resolves to the same component's field when one
// exists, otherwise to the first component (in name order) that carries
// it. An unresolvable name is passed through bare, which the dependency
// sorter then reports as dangling — strict validation over silent
// zero-substitution.
func (t *Table) DependencyKeys(key string) []string {
	f, ok := t.Fields[key]
	if !ok {
		return nil
	}
	if len(f.DependsOn) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f.DependsOn))
	for _, dep := range f.DependsOn {
		keys = append(keys, t.resolveDependency(f.ComponentName, dep))
	}
	return keys
}

func (t *Table) resolveDependency(fromComponent, dep string) string {
	if _, ok := t.Fields[fromComponent+"."+dep]; ok {
		return fromComponent + "." + dep
	}

	names := make([]string, 0, len(t.Components))
	for name := range t.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := t.Fields[name+"."+dep]; ok {
			return name + "." + dep
		}
	}
	return dep
}

func newTable() *Table {
	return &Table{
		Fields:     make(map[string]*Field),
		Components: make(map[string]*Component),
	}
}

// LoadDir loads every "<component>.json" file named in names from dir into
// a single Table. A file that cannot be opened or parsed, or is missing
// component_name/fields, is logged and skipped — loading continues with
// the remaining files. A field missing its algorithm key is skipped, its
// siblings still load. The returned error is always nil; when no file
// contributed a field, LoadDir logs a warning and returns an empty Table.
func LoadDir(dir string, names []string) (*Table, error) {
	table := newTable()
	loadedAny := false

	for _, name := range names {
		path := filepath.Join(dir, name+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Warning: cannot open component config %s: %v\n", path, err)
			continue
		}

		var cf componentFile
		if err := json.Unmarshal(data, &cf); err != nil {
			fmt.Printf("Warning: invalid JSON in component config %s: %v\n", path, err)
			continue
		}

		if cf.ComponentName == "" {
			fmt.Printf("Warning: component config %s missing component_name\n", path)
			continue
		}
		if cf.Fields == nil {
			fmt.Printf("Warning: component config %s missing fields\n", path)
			continue
		}

		comp := &Component{Name: cf.ComponentName}
		for fieldName, raw := range cf.Fields {
			algoRaw, ok := raw["algorithm"]
			if !ok {
				fmt.Printf("Warning: field %s in %s missing algorithm, skipping\n", fieldName, path)
				continue
			}
			var algo Algorithm
			if err := json.Unmarshal(algoRaw, &algo); err != nil {
				fmt.Printf("Warning: field %s in %s has non-string algorithm, skipping\n", fieldName, path)
				continue
			}

			var dependsOn []string
			if depRaw, ok := raw["depends_on"]; ok {
				if err := json.Unmarshal(depRaw, &dependsOn); err != nil {
					fmt.Printf("Warning: field %s in %s has invalid depends_on, ignoring\n", fieldName, path)
					dependsOn = nil
				}
			}

			params := make(map[string]json.RawMessage, len(raw))
			for key, value := range raw {
				if key == "algorithm" || key == "depends_on" {
					continue
				}
				params[key] = value
			}

			field := &Field{
				Name:              fieldName,
				ComponentName:     comp.Name,
				Algorithm:         algo,
				StartingAlgorithm: algo,
				Params:            params,
				DependsOn:         dependsOn,
			}
			table.Fields[field.Key()] = field
			comp.Fields = append(comp.Fields, field.Key())
			loadedAny = true
		}

		table.Components[comp.Name] = comp
	}

	if !loadedAny {
		fmt.Println("Warning: no fields loaded from any component config")
	}

	return table, nil
}

// ParamFloat reads a numeric parameter, returning defaultValue if the key
// is absent or not a number.
func ParamFloat(params map[string]json.RawMessage, key string, defaultValue float64) float64 {
	raw, ok := params[key]
	if !ok {
		return defaultValue
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return defaultValue
	}
	return f
}

// ParamString reads a string parameter, returning defaultValue if the key
// is absent or not a string.
func ParamString(params map[string]json.RawMessage, key, defaultValue string) string {
	raw, ok := params[key]
	if !ok {
		return defaultValue
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return defaultValue
	}
	return s
}

// ParamStringOK reads a string parameter, reporting whether it was present
// and well-typed.
func ParamStringOK(params map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := params[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
