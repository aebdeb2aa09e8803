package router

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tss-groundstation/stationd/internal/jsonview"
)

// Engine is the subset of internal/engine.Engine the router needs for the
// sentinel-path side effects operator writes can trigger, plus the
// switch-bag updates the DCU panel codes carry.
type Engine interface {
	Start(component string)
	Stop(component string)
	Reset(component string)
	SetSwitch(name string, on bool)
}

// Router applies operator writes (from HTTP form POSTs or UDP POSTs) to
// the JSON view and triggers the engine side effects the sentinel paths
// carry.
type Router struct {
	store *jsonview.Store
	eng   Engine

	dustAddr     string
	dustRegistered bool
}

// New constructs a Router bound to a view store and an engine.
func New(store *jsonview.Store, eng Engine) *Router {
	return &Router{store: store, eng: eng}
}

// ApplyPath applies an operator write expressed as "file.section.rest=value"
// (the dots already split from the value). A route with fewer than two
// dot-separated parts, or whose file prefix is not one of the JSON view
// files, is rejected.
func (r *Router) ApplyPath(fullPath, valueString string) (applied bool) {
	parts := strings.Split(fullPath, ".")
	if len(parts) < 2 {
		return false
	}

	file := strings.ToUpper(parts[0])
	switch file {
	case "EVA", "ROVER", "LTV", "UIA", "DCU", "IMU", "COMM", "ERROR":
	default:
		return false
	}
	section := parts[1]
	subPath := strings.Join(parts[2:], ".")

	if err := r.store.UpdateField(file, section, subPath, valueString); err != nil {
		return false
	}

	r.applySentinel(file, section, subPath, valueString)
	return true
}

// ApplyCode applies a UDP/HTTP POST command code by resolving it through
// the command table and synthesizing the same "path=value" the HTTP form
// handler consumes, so every write-side operation shares one canonical
// code path.
func (r *Router) ApplyCode(code uint16, valueString string) (applied bool) {
	entry, ok := LookupPost(code)
	if !ok {
		return false
	}
	fullPath := strings.ToLower(entry.File) + "." + entry.Path
	return r.ApplyPath(fullPath, valueString)
}

// applySentinel implements the engine side effects of the sentinel
// paths: ROVER.pr_telemetry.sim_running starts/resets the rover
// component, EVA.status.started starts/resets both eva1 and eva2
// together, and a dcu.* write re-derives the operator switch bag
// (battery_lu, battery_ps, o2, fan, pump, co2). UIA panel writes (uia.*)
// have no switch-bag counterpart, so they only ever land in the JSON
// view.
func (r *Router) applySentinel(file, section, subPath, valueString string) {
	switch {
	case file == "ROVER" && section == "pr_telemetry" && subPath == "sim_running":
		r.toggleComponent("rover", valueString)
	case file == "EVA" && section == "status" && subPath == "started":
		r.toggleComponent("eva1", valueString)
		r.toggleComponent("eva2", valueString)
		if !isTrue(valueString) {
			r.resetEVAStationTimers()
		}
	case file == "EVA" && section == "dcu":
		if name, ok := dcuSwitchName(subPath); ok {
			r.eng.SetSwitch(name, isTrue(valueString))
		}
	}
}

// dcuSwitchName maps a dcu.<suit>.<rest> sub-path to the switch-bag field
// it drives. Only eva1's DCU panel is wired into the table (postTable has
// no eva2 equivalents), matching the engine's single, suit-wide switch
// bag.
func dcuSwitchName(subPath string) (name string, ok bool) {
	switch subPath {
	case "eva1.batt.lu":
		return "battery_lu", true
	case "eva1.batt.ps":
		return "battery_ps", true
	case "eva1.o2":
		return "o2", true
	case "eva1.fan":
		return "fan", true
	case "eva1.pump":
		return "pump", true
	case "eva1.co2":
		return "co2", true
	default:
		return "", false
	}
}

func (r *Router) toggleComponent(name, valueString string) {
	if isTrue(valueString) {
		r.eng.Start(name)
		return
	}
	r.eng.Reset(name)
}

func isTrue(valueString string) bool {
	return valueString == "true" || valueString == "1"
}

// resetEVAStationTimers zeros the uia/dcu/spec station-timing tuples in
// EVA.json.
func (r *Router) resetEVAStationTimers() {
	tree, err := r.store.Load("EVA")
	if err != nil {
		return
	}
	status, _ := tree["status"].(map[string]any)
	if status == nil {
		status = map[string]any{}
		tree["status"] = status
	}
	for _, station := range []string{"uia", "dcu", "spec"} {
		status[station] = map[string]any{
			"started":   false,
			"time":      0.0,
			"completed": false,
		}
	}
	_ = r.store.Save("EVA", tree)
}

// TickStationTimers advances EVA.json's per-station timers by delta
// seconds and reports whether the "spec" (task board) station transitioned
// to completed this tick, along with its latched completion time — the
// seed for the fault scheduler's firing condition.
func (r *Router) TickStationTimers(delta float64) (specJustCompleted bool, specTime float64) {
	tree, err := r.store.Load("EVA")
	if err != nil {
		return false, 0
	}
	status, _ := tree["status"].(map[string]any)
	if status == nil {
		return false, 0
	}

	for _, station := range []string{"uia", "dcu", "spec"} {
		raw, ok := status[station].(map[string]any)
		if !ok {
			continue
		}
		started, _ := raw["started"].(bool)
		completed, _ := raw["completed"].(bool)
		t, _ := raw["time"].(float64)

		if started {
			t += delta
		} else if !completed && t > 0 {
			completed = true
			if station == "spec" {
				specJustCompleted = true
				specTime = t
			}
		}
		raw["time"] = t
		raw["completed"] = completed
	}

	_ = r.store.Save("EVA", tree)
	return specJustCompleted, specTime
}

// DustAddr returns the registered visual-simulator address, or "" if none
// has registered yet.
func (r *Router) DustAddr() string { return r.dustAddr }

// Registered reports whether a visual simulator has registered.
func (r *Router) Registered() bool { return r.dustRegistered }

// Register records addr as the visual simulator's endpoint and sets
// ROVER.pr_telemetry.dust_connected := true.
func (r *Router) Register(addr string) {
	r.dustAddr = addr
	r.dustRegistered = true
	r.setDustConnected(true)
}

// ClearRegistration clears dust_connected after an outbound send failure.
func (r *Router) ClearRegistration() {
	r.dustRegistered = false
	r.setDustConnected(false)
}

func (r *Router) setDustConnected(connected bool) {
	tree, err := r.store.Load("ROVER")
	if err != nil {
		return
	}
	pr, _ := tree["pr_telemetry"].(map[string]any)
	if pr == nil {
		pr = map[string]any{}
		tree["pr_telemetry"] = pr
	}
	pr["dust_connected"] = connected
	_ = r.store.Save("ROVER", tree)
}

// DumpFile serializes the named JSON view file to text for a GET
// response.
func (r *Router) DumpFile(file string) ([]byte, error) {
	tree, err := r.store.Load(file)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// FormatFloat renders a float64 the way UpdateField expects to receive an
// operator-supplied value string.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
