package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScenarioWithBlankPathReturnsNilWithoutError(t *testing.T) {
	s, err := LoadScenario("")
	if err != nil {
		t.Fatalf("LoadScenario(\"\") returned error: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil scenario for a blank path, got %+v", s)
	}
}

func TestLoadScenarioParsesSwitchesAndSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := "switches:\n  fan: true\n  o2: false\nfault_seed: 42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario returned error: %v", err)
	}
	if !s.Switches.Fan {
		t.Error("expected switches.fan == true")
	}
	if s.FaultSeed != 42 {
		t.Errorf("FaultSeed = %d, want 42", s.FaultSeed)
	}
}

func TestLoadScenarioMissingFileErrors(t *testing.T) {
	if _, err := LoadScenario("/nonexistent/scenario.yaml"); err == nil {
		t.Fatal("expected an error for a missing scenario file")
	}
}
