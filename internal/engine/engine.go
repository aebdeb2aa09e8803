// Package engine advances the field simulation: dependency-ordered
// per-tick evaluation of pluggable algorithms, gated by operator switch
// state, with run/stop/reset lifecycle per component.
//
// Engine is not safe for concurrent use. The bounding server loop is
// expected to serialize every call to it through a single goroutine (see
// internal/clock and cmd/stationd).
package engine

import (
	"fmt"
	"math"

	"github.com/tss-groundstation/stationd/internal/faults"
	"github.com/tss-groundstation/stationd/internal/formula"
	"github.com/tss-groundstation/stationd/internal/jsonview"
	"github.com/tss-groundstation/stationd/internal/registry"
)

// field is the runtime state of one simulated variable, a superset of its
// loaded registry.Field configuration.
type field struct {
	cfg *registry.Field

	algorithm registry.Algorithm // mutable: reclassified by faults

	startTime float64
	runTime   float64
	active    bool

	rapidInitialized bool
	rapidStartValue  float64

	initialized bool

	current  float64
	previous float64
}

// component is the runtime state of one named field group.
type component struct {
	name           string
	running        bool
	simulationTime float64
	fieldNames     []string
}

// Switches is the operator panel switch bag gating which of several
// competing fields a suit is "using."
type Switches struct {
	BatteryLU bool
	BatteryPS bool
	O2        bool
	Fan       bool
	Pump      bool
	CO2       bool
}

// Engine is the top-level simulation container.
type Engine struct {
	components  map[string]*component
	fields      map[string]*field
	updateOrder []string
	nameIndex   map[string]string // bare field name -> first key in update order

	totalFieldCount int
	initialized     bool

	switches Switches

	store *jsonview.Store

	faultScheduler            *faults.Scheduler
	taskBoardCompletionLatched bool
	taskBoardCompletionSeconds float64

	faultSeed int64
}

// New constructs an uninitialized Engine bound to the given view store. Call
// LoadAndInitialize to populate it from configuration.
func New(store *jsonview.Store, faultSeed int64) *Engine {
	return &Engine{
		components: make(map[string]*component),
		fields:     make(map[string]*field),
		store:      store,
		faultSeed:  faultSeed,
	}
}

// LoadAndInitialize loads a registry.Table, builds the runtime field/
// component state, takes order (already resolved by internal/depsort) as
// update_order, and seeds every field to its algorithm's starting value.
// The returned error is always nil: an unresolvable dependency graph is
// reported by depsort.Sort before this is called.
func LoadAndInitialize(store *jsonview.Store, faultSeed int64, table *registry.Table, order []string) (*Engine, error) {
	e := New(store, faultSeed)

	for name, comp := range table.Components {
		e.components[name] = &component{name: name, fieldNames: append([]string(nil), comp.Fields...)}
	}

	for name, cfg := range table.Fields {
		e.fields[name] = &field{cfg: cfg, algorithm: cfg.Algorithm}
	}

	e.updateOrder = order
	e.totalFieldCount = len(order)
	e.faultScheduler = faults.NewScheduler(faultSeed)

	// Formulas reference fields by bare name, resolved across the whole
	// engine; the first key in update order wins. Built once here instead
	// of scanning per lookup on the tick's hot path.
	e.nameIndex = make(map[string]string, len(order))
	for _, key := range order {
		f := e.fields[key]
		if f == nil {
			continue
		}
		if _, ok := e.nameIndex[f.cfg.Name]; !ok {
			e.nameIndex[f.cfg.Name] = key
		}
	}

	for _, name := range order {
		e.seedField(e.fields[name])
	}

	e.initialized = true
	return e, nil
}

// TotalFieldCount returns the number of registered fields.
func (e *Engine) TotalFieldCount() int { return e.totalFieldCount }

// UpdateOrder returns the dependency-resolved field evaluation order.
func (e *Engine) UpdateOrder() []string { return e.updateOrder }

// Initialized reports whether the engine has completed LoadAndInitialize.
func (e *Engine) Initialized() bool { return e.initialized }

// Switches returns a copy of the current operator switch bag.
func (e *Engine) Switches() Switches { return e.switches }

// SetSwitches replaces the operator switch bag; active-gating is
// recomputed on the next tick.
func (e *Engine) SetSwitches(s Switches) { e.switches = s }

// SetSwitch flips a single named switch in the bag by its wire/JSON-view
// name (battery_lu, battery_ps, o2, fan, pump, co2), leaving the rest of
// the bag untouched. Unknown names are ignored. This is the entry point
// the command router uses so operator DCU writes reach gating state
// without replacing switches it didn't touch.
func (e *Engine) SetSwitch(name string, on bool) {
	switch name {
	case "battery_lu":
		e.switches.BatteryLU = on
	case "battery_ps":
		e.switches.BatteryPS = on
	case "o2":
		e.switches.O2 = on
	case "fan":
		e.switches.Fan = on
	case "pump":
		e.switches.Pump = on
	case "co2":
		e.switches.CO2 = on
	}
}

// ComponentNames returns the names of every loaded component.
func (e *Engine) ComponentNames() []string {
	names := make([]string, 0, len(e.components))
	for name := range e.components {
		names = append(names, name)
	}
	return names
}

// Running reports whether the named component is running.
func (e *Engine) Running(name string) bool {
	c, ok := e.components[name]
	return ok && c.running
}

// SimulationTime returns the named component's component-local time.
func (e *Engine) SimulationTime(name string) float64 {
	c, ok := e.components[name]
	if !ok {
		return 0
	}
	return c.simulationTime
}

// Start sets a component to running=true; simulation_time continues from
// its current value. Calling Start twice with no intervening tick is
// idempotent.
func (e *Engine) Start(name string) {
	if c, ok := e.components[name]; ok {
		c.running = true
	}
}

// Stop sets a component to running=false, preserving simulation_time.
func (e *Engine) Stop(name string) {
	if c, ok := e.components[name]; ok {
		c.running = false
	}
}

// Reset stops the component, zeros its simulation_time, restores every
// field's starting algorithm, clears rapid-algorithm latches, and
// re-seeds current_value per the algorithm's defined starting value. For
// externally-sourced fields with a reset_value parameter, that value is
// written back through the JSON view before the in-memory value is
// zeroed. If name is "eva1", the fault scheduler also redraws.
func (e *Engine) Reset(name string) {
	c, ok := e.components[name]
	if !ok {
		return
	}
	c.running = false
	c.simulationTime = 0

	for _, fname := range c.fieldNames {
		f := e.fields[fname]
		if f == nil {
			continue
		}
		f.algorithm = f.cfg.StartingAlgorithm
		f.rapidInitialized = false
		f.rapidStartValue = 0
		f.runTime = 0
		f.startTime = 0
		f.initialized = false

		if f.algorithm == registry.AlgoExternallySourced {
			if resetValue, ok := registry.ParamStringOK(f.cfg.Params, "reset_value"); ok {
				e.writeExternalReset(f, resetValue)
			}
		}
		e.seedField(f)
	}

	if name == "eva1" {
		e.faultScheduler.Reset()
		e.taskBoardCompletionLatched = false
		e.taskBoardCompletionSeconds = 0
	}
}

func (e *Engine) writeExternalReset(f *field, resetValue string) {
	filePath := registry.ParamString(f.cfg.Params, "file_path", "")
	fieldPath := registry.ParamString(f.cfg.Params, "field_path", "")
	if filePath == "" || fieldPath == "" {
		return
	}
	fileName := externalFileName(filePath)
	section, subPath := splitFirst(fieldPath)
	if section == "" {
		return
	}
	if err := e.store.UpdateField(fileName, section, subPath, resetValue); err != nil {
		fmt.Printf("Warning: failed to write reset_value for %s: %v\n", f.cfg.Name, err)
	}
}

// seedField computes and stores each algorithm's defined starting value:
// base_value for periodic-oscillation, start_value for the ramp family,
// 0 otherwise (derived-formula and externally-sourced fields settle to
// their true values on the first real tick).
func (e *Engine) seedField(f *field) {
	var start float64
	switch f.algorithm {
	case registry.AlgoPeriodicOscillation:
		start = registry.ParamFloat(f.cfg.Params, "base_value", 0)
	case registry.AlgoLinearRampDown:
		start = registry.ParamFloat(f.cfg.Params, "start_value", 100)
	case registry.AlgoLinearRampUp:
		start = registry.ParamFloat(f.cfg.Params, "start_value", 0)
	default:
		start = 0
	}
	f.current = start
	f.previous = start
	f.active = true
}

// lookupField resolves name as either a component-qualified key or a
// bare field name (first match in update order).
func (e *Engine) lookupField(name string) *field {
	if f, ok := e.fields[name]; ok {
		return f
	}
	if key, ok := e.nameIndex[name]; ok {
		return e.fields[key]
	}
	return nil
}

// FieldValue returns a field's current value by name; an absent name
// yields 0.
func (e *Engine) FieldValue(name string) float64 {
	f := e.lookupField(name)
	if f == nil {
		return 0
	}
	return f.current
}

// FieldValueOK is FieldValue plus a presence flag.
func (e *Engine) FieldValueOK(name string) (float64, bool) {
	f := e.lookupField(name)
	if f == nil {
		return 0, false
	}
	return f.current, true
}

// SetTaskBoardCompletion latches the wall-time at which the operator task
// board completed, seeding the fault scheduler's firing condition. Only
// the first call after boot/reset takes effect.
func (e *Engine) SetTaskBoardCompletion(seconds float64) {
	if e.taskBoardCompletionLatched {
		return
	}
	e.taskBoardCompletionLatched = true
	e.taskBoardCompletionSeconds = seconds
}

// gatingActive implements the suit-field gating table.
// Fields not named here are always active.
func (e *Engine) gatingActive(name string) (active bool, gated bool) {
	switch name {
	case "primary_battery_level":
		return !e.switches.BatteryLU && e.switches.BatteryPS, true
	case "secondary_battery_level":
		return !e.switches.BatteryLU && !e.switches.BatteryPS, true
	case "oxy_pri_storage":
		return !e.switches.O2, true
	case "oxy_sec_storage":
		return e.switches.O2, true
	case "fan_pri_rpm":
		return !e.switches.Fan, true
	case "fan_sec_rpm":
		return e.switches.Fan, true
	case "coolant_liquid_pressure":
		return !e.switches.Pump, true
	case "scrubber_a_co2_storage":
		return !e.switches.CO2, true
	case "scrubber_b_co2_storage":
		return e.switches.CO2, true
	default:
		return false, false
	}
}

// Tick advances the engine by delta seconds of wall time.
func (e *Engine) Tick(delta float64) {
	for _, c := range e.components {
		if c.running {
			c.simulationTime += delta
		}
	}

	// The fault override only applies once the scheduled fault has fired;
	// until then the drawn type is merely pending.
	faultType := faults.None
	if e.faultScheduler.NumTaskBoardErrors > 0 {
		faultType = e.faultScheduler.ErrorType
	}

	for _, f := range e.fields {
		active, gated := e.gatingActive(f.cfg.Name)
		if !gated {
			active = true
		}

		if f.cfg.ComponentName == "eva1" {
			if f.cfg.Name == "oxy_pri_storage" && (faultType == faults.SuitOxyLow || faultType == faults.SuitOxyHigh) {
				active = true
			}
			if f.cfg.Name == "fan_pri_rpm" && (faultType == faults.FanHigh || faultType == faults.FanLow) {
				active = true
			}
		}

		f.active = active
	}

	for _, c := range e.components {
		if !c.running {
			continue
		}
		for _, fname := range c.fieldNames {
			f := e.fields[fname]
			if f != nil && f.active {
				f.runTime += delta
			}
		}
	}

	if eva1, ok := e.components["eva1"]; ok && eva1.running && e.taskBoardCompletionLatched {
		if e.faultScheduler.ShouldFire(eva1.simulationTime, e.taskBoardCompletionSeconds) {
			e.applyFault(e.faultScheduler.Fire())
		}
	}

	lookup := formula.LookupFunc(e.FieldValue)
	for _, name := range e.updateOrder {
		f := e.fields[name]
		if f == nil {
			continue
		}
		comp := e.components[f.cfg.ComponentName]
		if comp == nil || !comp.running {
			continue
		}

		f.previous = f.current
		f.current = e.evaluate(f, lookup)
	}
}

// Project writes the engine's current state into the JSON view: for each
// running component, every field in update_order whose component_name
// matches lands at telemetry.<eva1|eva2>.<field_name> in EVA.json or
// pr_telemetry.<field_name> in ROVER.json, skipping rover's
// externally-sourced fields (they are inputs, not outputs). It also
// mirrors EVA.json's status.started and ROVER.json's
// pr_telemetry.sim_running from the components' actual running state.
// Called once per engine tick, after Tick, so the view a GET or Redis
// subscriber observes reflects the tick that just ran.
func (e *Engine) Project() {
	eva, err := e.store.Load("EVA")
	if err != nil {
		fmt.Printf("Warning: failed to load EVA view for projection: %v\n", err)
		eva = map[string]any{}
	}
	rover, err := e.store.Load("ROVER")
	if err != nil {
		fmt.Printf("Warning: failed to load ROVER view for projection: %v\n", err)
		rover = map[string]any{}
	}

	for _, name := range e.updateOrder {
		f := e.fields[name]
		if f == nil {
			continue
		}
		comp := e.components[f.cfg.ComponentName]
		if comp == nil || !comp.running {
			continue
		}

		switch f.cfg.ComponentName {
		case "eva1", "eva2":
			setTreeLeaf(eva, []string{"telemetry", f.cfg.ComponentName, f.cfg.Name}, f.current)
		case "rover":
			if f.algorithm == registry.AlgoExternallySourced {
				continue
			}
			setTreeLeaf(rover, []string{"pr_telemetry", f.cfg.Name}, f.current)
		}
	}

	setTreeLeaf(eva, []string{"status", "started"}, e.Running("eva1") || e.Running("eva2"))
	setTreeLeaf(rover, []string{"pr_telemetry", "sim_running"}, e.Running("rover"))

	if err := e.store.Save("EVA", eva); err != nil {
		fmt.Printf("Warning: failed to project EVA view: %v\n", err)
	}
	if err := e.store.Save("ROVER", rover); err != nil {
		fmt.Printf("Warning: failed to project ROVER view: %v\n", err)
	}
}

// setTreeLeaf walks parts inside tree, creating any missing intermediate
// object nodes, and replaces the leaf with value.
func setTreeLeaf(tree map[string]any, parts []string, value any) {
	cur := tree
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
}

func (e *Engine) applyFault(action faults.Action) {
	f, ok := e.fields[action.ComponentName+"."+action.FieldName]
	if !ok {
		f = e.lookupField(action.FieldName)
	}
	if f == nil {
		return
	}
	f.algorithm = action.Algorithm
	// The field begins a new algorithm phase now: its phase clock restarts
	// at the current run_time so the rapid ramp spans rapid_duration_seconds
	// from the injection, not from the start of the run.
	f.startTime = f.runTime
	f.rapidInitialized = false
	f.active = true
}

// evaluate dispatches to the algorithm named on f.algorithm.
func (e *Engine) evaluate(f *field, lookup formula.FieldLookup) float64 {
	switch f.algorithm {
	case registry.AlgoPeriodicOscillation:
		return e.sineWave(f)
	case registry.AlgoLinearRampDown:
		return e.linearRampDown(f)
	case registry.AlgoLinearRampUp:
		return e.linearRampUp(f)
	case registry.AlgoRapidRampDown:
		return e.rapidRampDown(f)
	case registry.AlgoRapidRampUp:
		return e.rapidRampUp(f)
	case registry.AlgoFastLinearDown:
		return e.fastLinearDown(f)
	case registry.AlgoFastLinearUp:
		return e.fastLinearUp(f)
	case registry.AlgoDerivedFormula:
		return e.derivedFormula(f, lookup)
	case registry.AlgoExternallySourced:
		return e.externallySourced(f)
	default:
		return f.current
	}
}

func (e *Engine) sineWave(f *field) float64 {
	base := registry.ParamFloat(f.cfg.Params, "base_value", 0)
	amplitude := registry.ParamFloat(f.cfg.Params, "amplitude", 1)
	frequency := registry.ParamFloat(f.cfg.Params, "frequency", 1)
	phase := registry.ParamFloat(f.cfg.Params, "phase_offset", 0)

	elapsed := f.runTime - f.startTime
	return base + amplitude*math.Sin(elapsed*frequency+phase)
}

func (e *Engine) linearRampDown(f *field) float64 {
	start := registry.ParamFloat(f.cfg.Params, "start_value", 100)
	end := registry.ParamFloat(f.cfg.Params, "end_value", 0)
	duration := registry.ParamFloat(f.cfg.Params, "duration_seconds", 1)

	progress := clamp01((f.runTime - f.startTime) / duration)
	return start + (end-start)*progress
}

func (e *Engine) linearRampUp(f *field) float64 {
	start := registry.ParamFloat(f.cfg.Params, "start_value", 0)
	rate := registry.ParamFloat(f.cfg.Params, "growth_rate", 1)
	maxValue := registry.ParamFloat(f.cfg.Params, "max_value", math.Inf(1))

	elapsed := f.runTime - f.startTime
	value := start + rate*elapsed
	if value > maxValue {
		value = maxValue
	}
	return value
}

func (e *Engine) rapidRampDown(f *field) float64 {
	if !f.rapidInitialized {
		f.rapidStartValue = f.current
		f.rapidInitialized = true
	}
	end := registry.ParamFloat(f.cfg.Params, "end_value", 0)
	duration := registry.ParamFloat(f.cfg.Params, "rapid_duration_seconds", 1)

	progress := clamp01((f.runTime - f.startTime) / duration)
	return f.rapidStartValue + (end-f.rapidStartValue)*progress
}

func (e *Engine) rapidRampUp(f *field) float64 {
	if !f.rapidInitialized {
		f.rapidStartValue = f.current
		f.rapidInitialized = true
	}
	rate := registry.ParamFloat(f.cfg.Params, "rapid_growth_rate", 1)
	maxValue := registry.ParamFloat(f.cfg.Params, "max_value", math.Inf(1))

	elapsed := f.runTime - f.startTime
	value := f.rapidStartValue + rate*elapsed
	if value > maxValue {
		value = maxValue
	}
	return value
}

func (e *Engine) fastLinearDown(f *field) float64 {
	if !f.rapidInitialized {
		f.rapidStartValue = f.current
		f.rapidInitialized = true
	}
	rate := registry.ParamFloat(f.cfg.Params, "rate", 1)
	minValue := registry.ParamFloat(f.cfg.Params, "min_value", 0)

	elapsed := f.runTime - f.startTime
	value := f.rapidStartValue - rate*elapsed
	if value < minValue {
		value = minValue
	}
	return value
}

func (e *Engine) fastLinearUp(f *field) float64 {
	if !f.rapidInitialized {
		f.rapidStartValue = f.current
		f.rapidInitialized = true
	}
	rate := registry.ParamFloat(f.cfg.Params, "rate", 1)
	maxValue := registry.ParamFloat(f.cfg.Params, "max_value", math.Inf(1))

	elapsed := f.runTime - f.startTime
	value := f.rapidStartValue + rate*elapsed
	if value > maxValue {
		value = maxValue
	}
	return value
}

func (e *Engine) derivedFormula(f *field, lookup formula.FieldLookup) float64 {
	expr, ok := registry.ParamStringOK(f.cfg.Params, "formula")
	if !ok {
		fmt.Printf("Warning: no formula specified for dependent field %s\n", f.cfg.Name)
		return f.current
	}
	return formula.Evaluate(expr, lookup)
}

func (e *Engine) externallySourced(f *field) float64 {
	filePath := registry.ParamString(f.cfg.Params, "file_path", "")
	fieldPath := registry.ParamString(f.cfg.Params, "field_path", "")
	if filePath == "" || fieldPath == "" {
		fmt.Printf("Warning: no file_path/field_path specified for external field %s\n", f.cfg.Name)
		return 0
	}
	fileName := externalFileName(filePath)
	return e.store.GetField(fileName, fieldPath, 0)
}

// externalFileName strips a trailing ".json" from a configured file_path;
// the store already scopes into the data root and appends ".json".
func externalFileName(filePath string) string {
	const suffix = ".json"
	if len(filePath) > len(suffix) && filePath[len(filePath)-len(suffix):] == suffix {
		return filePath[:len(filePath)-len(suffix)]
	}
	return filePath
}

func splitFirst(dotted string) (first, rest string) {
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			return dotted[:i], dotted[i+1:]
		}
	}
	return dotted, ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
