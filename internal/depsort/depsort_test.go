package depsort

import "testing"

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestSortOrdersDependenciesBeforeDependents(t *testing.T) {
	deps := map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	}
	order, err := Sort([]string{"c", "b", "a"}, func(name string) []string { return deps[name] })
	if err != nil {
		t.Fatalf("Sort returned error: %v", err)
	}
	if indexOf(order, "a") >= indexOf(order, "b") || indexOf(order, "b") >= indexOf(order, "c") {
		t.Errorf("expected a < b < c in %v", order)
	}
}

func TestSortHandlesFieldsWithNoDependencies(t *testing.T) {
	order, err := Sort([]string{"x", "y", "z"}, func(string) []string { return nil })
	if err != nil {
		t.Fatalf("Sort returned error: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 fields in order, got %d", len(order))
	}
}

func TestSortFailsOnCycle(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	_, err := Sort([]string{"a", "b"}, func(name string) []string { return deps[name] })
	if err == nil {
		t.Fatal("expected an error for a dependency cycle")
	}
}

func TestSortFailsOnDanglingDependency(t *testing.T) {
	deps := map[string][]string{
		"a": {"nonexistent"},
	}
	_, err := Sort([]string{"a"}, func(name string) []string { return deps[name] })
	if err == nil {
		t.Fatal("expected an error for a dependency outside the loaded field set")
	}
}
