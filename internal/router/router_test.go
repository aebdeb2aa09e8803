package router

import (
	"testing"

	"github.com/tss-groundstation/stationd/internal/jsonview"
)

type fakeEngine struct {
	started  []string
	stopped  []string
	reset    []string
	switches map[string]bool
}

func (f *fakeEngine) Start(name string) { f.started = append(f.started, name) }
func (f *fakeEngine) Stop(name string)  { f.stopped = append(f.stopped, name) }
func (f *fakeEngine) Reset(name string) { f.reset = append(f.reset, name) }
func (f *fakeEngine) SetSwitch(name string, on bool) {
	if f.switches == nil {
		f.switches = make(map[string]bool)
	}
	f.switches[name] = on
}

func newTestRouter(t *testing.T) (*Router, *fakeEngine, *jsonview.Store) {
	t.Helper()
	store := jsonview.NewStore(t.TempDir(), nil)
	eng := &fakeEngine{}
	return New(store, eng), eng, store
}

func TestApplyPathRejectsShortPaths(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if r.ApplyPath("onlyonepart", "1") {
		t.Error("a path with fewer than two dot-separated parts must be rejected")
	}
}

func TestApplyPathWritesValueThroughStore(t *testing.T) {
	r, _, store := newTestRouter(t)
	if !r.ApplyPath("rover.pr_telemetry.throttle_position", "0.5") {
		t.Fatal("expected ApplyPath to succeed")
	}
	if got := store.GetField("ROVER", "pr_telemetry.throttle_position", 0); got != 0.5 {
		t.Errorf("throttle_position = %v, want 0.5", got)
	}
}

func TestApplyCodeResolvesThroughTable(t *testing.T) {
	r, _, store := newTestRouter(t)
	if !r.ApplyCode(2011, "true") {
		t.Fatal("expected ApplyCode(2011) to succeed")
	}
	if got := store.GetField("EVA", "dcu.eva1.batt.lu", 0); got != 1 {
		t.Errorf("dcu.eva1.batt.lu = %v, want 1 (true)", got)
	}
}

func TestApplyCodeDCUSwitchReachesEngineSwitchBag(t *testing.T) {
	r, eng, _ := newTestRouter(t)
	if !r.ApplyCode(2014, "true") {
		t.Fatal("expected ApplyCode(2014) to succeed")
	}
	if !eng.switches["fan"] {
		t.Errorf("expected the fan switch to reach the engine, got %+v", eng.switches)
	}
}

func TestApplyPathUIASwitchDoesNotReachEngine(t *testing.T) {
	r, eng, store := newTestRouter(t)
	if !r.ApplyPath("uia.uia.eva1.power", "true") {
		t.Fatal("expected ApplyPath to succeed")
	}
	if got := store.GetField("UIA", "uia.eva1.power", 0); got != 1 {
		t.Errorf("uia.eva1.power = %v, want 1", got)
	}
	if len(eng.switches) != 0 {
		t.Errorf("expected UIA writes to never touch the engine switch bag, got %+v", eng.switches)
	}
}

func TestApplyCodeUnknownCodeFails(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if r.ApplyCode(9999, "1") {
		t.Error("an unknown code must not apply")
	}
}

func TestSentinelRoverSimRunningStartsAndResetsRover(t *testing.T) {
	r, eng, _ := newTestRouter(t)

	r.ApplyPath("rover.pr_telemetry.sim_running", "true")
	if len(eng.started) != 1 || eng.started[0] != "rover" {
		t.Errorf("expected rover to be started, got %v", eng.started)
	}

	r.ApplyPath("rover.pr_telemetry.sim_running", "false")
	if len(eng.reset) != 1 || eng.reset[0] != "rover" {
		t.Errorf("expected rover to be reset, got %v", eng.reset)
	}
}

func TestSentinelEvaStatusStartedStartsBothCrewAndResetsTimersOnStop(t *testing.T) {
	r, eng, store := newTestRouter(t)
	store.Save("EVA", map[string]any{
		"status": map[string]any{
			"spec": map[string]any{"started": false, "time": 42.0, "completed": true},
		},
	})

	r.ApplyPath("eva.status.started", "true")
	if len(eng.started) != 2 || eng.started[0] != "eva1" || eng.started[1] != "eva2" {
		t.Errorf("expected eva1 and eva2 to be started, got %v", eng.started)
	}

	r.ApplyPath("eva.status.started", "false")
	if len(eng.reset) != 2 {
		t.Errorf("expected eva1 and eva2 to be reset, got %v", eng.reset)
	}

	tree, _ := store.Load("EVA")
	status := tree["status"].(map[string]any)
	spec := status["spec"].(map[string]any)
	if spec["time"] != 0.0 || spec["completed"] != false {
		t.Errorf("expected spec station timer to be zeroed on EVA reset, got %+v", spec)
	}
}

func TestTickStationTimersAdvancesStartedStations(t *testing.T) {
	r, _, store := newTestRouter(t)
	store.Save("EVA", map[string]any{
		"status": map[string]any{
			"uia":  map[string]any{"started": true, "time": 0.0, "completed": false},
			"dcu":  map[string]any{"started": false, "time": 0.0, "completed": false},
			"spec": map[string]any{"started": false, "time": 0.0, "completed": false},
		},
	})

	_, _ = r.TickStationTimers(5)

	if got := store.GetField("EVA", "status.uia.time", -1); got != 5.0 {
		t.Errorf("uia.time = %v, want 5", got)
	}
}

func TestTickStationTimersReportsSpecCompletion(t *testing.T) {
	r, _, store := newTestRouter(t)
	store.Save("EVA", map[string]any{
		"status": map[string]any{
			"spec": map[string]any{"started": false, "time": 30.0, "completed": false},
		},
	})

	completed, specTime := r.TickStationTimers(1)
	if !completed {
		t.Fatal("expected spec station to report completion")
	}
	if specTime != 30.0 {
		t.Errorf("specTime = %v, want 30", specTime)
	}
}

func TestRegisterAndClearRegistrationTrackDustConnected(t *testing.T) {
	r, _, store := newTestRouter(t)

	r.Register("127.0.0.1:9000")
	if !r.Registered() || r.DustAddr() != "127.0.0.1:9000" {
		t.Fatal("expected Register to record the address and mark registered")
	}
	if got := store.GetField("ROVER", "pr_telemetry.dust_connected", 0); got != 1 {
		t.Errorf("dust_connected = %v, want 1 after Register", got)
	}

	r.ClearRegistration()
	if r.Registered() {
		t.Error("expected ClearRegistration to clear registered state")
	}
	if got := store.GetField("ROVER", "pr_telemetry.dust_connected", 1); got != 0 {
		t.Errorf("dust_connected = %v, want 0 after ClearRegistration", got)
	}
}

func TestDumpFileMarshalsTheStoredTree(t *testing.T) {
	r, _, store := newTestRouter(t)
	store.Save("ROVER", map[string]any{"pr_telemetry": map[string]any{"battery_soc": 87.5}})

	blob, err := r.DumpFile("ROVER")
	if err != nil {
		t.Fatalf("DumpFile returned error: %v", err)
	}
	if len(blob) == 0 {
		t.Fatal("expected a non-empty JSON blob")
	}
}

func TestFormatFloatRendersWithoutTrailingZeros(t *testing.T) {
	if got := FormatFloat(0.5); got != "0.5" {
		t.Errorf("FormatFloat(0.5) = %q, want \"0.5\"", got)
	}
}

func TestLookupGetAndLookupPost(t *testing.T) {
	if file, ok := LookupGet(2); !ok || file != "EVA" {
		t.Errorf("LookupGet(2) = (%q, %v), want (EVA, true)", file, ok)
	}
	if _, ok := LookupGet(999); ok {
		t.Error("LookupGet(999) should be unknown")
	}

	entry, ok := LookupPost(2011)
	if !ok || entry.File != "EVA" || entry.Path != "dcu.eva1.batt.lu" {
		t.Errorf("LookupPost(2011) = %+v, %v", entry, ok)
	}
}
