package formula

import "testing"

func TestEvaluateArithmeticPrecedence(t *testing.T) {
	got := Evaluate("2 + 3 * 4", LookupFunc(func(string) float64 { return 0 }))
	if got != 14 {
		t.Errorf("Evaluate(2 + 3 * 4) = %v, want 14", got)
	}
}

func TestEvaluateParentheses(t *testing.T) {
	got := Evaluate("( 2 + 3 ) * 4", LookupFunc(func(string) float64 { return 0 }))
	if got != 20 {
		t.Errorf("Evaluate((2+3)*4) = %v, want 20", got)
	}
}

func TestEvaluateDivisionByZeroYieldsZero(t *testing.T) {
	got := Evaluate("5 / 0", LookupFunc(func(string) float64 { return 0 }))
	if got != 0 {
		t.Errorf("Evaluate(5/0) = %v, want 0", got)
	}
}

func TestEvaluateResolvesFieldNames(t *testing.T) {
	lookup := LookupFunc(func(name string) float64 {
		if name == "suit_heart_rate" {
			return 90
		}
		return 0
	})
	got := Evaluate("suit_heart_rate * 2.5", lookup)
	if got != 225 {
		t.Errorf("Evaluate(suit_heart_rate * 2.5) = %v, want 225", got)
	}
}

func TestEvaluateUnknownFieldResolvesToZero(t *testing.T) {
	got := Evaluate("unknown_field + 5", LookupFunc(func(string) float64 { return 0 }))
	if got != 5 {
		t.Errorf("Evaluate(unknown_field + 5) = %v, want 5", got)
	}
}

func TestEvaluateMixedOperatorOrder(t *testing.T) {
	got := Evaluate("10 - 2 * 3 + 4 / 2", LookupFunc(func(string) float64 { return 0 }))
	if got != 6 {
		t.Errorf("Evaluate(10 - 2*3 + 4/2) = %v, want 6", got)
	}
}
