package mathutil

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		x        float64
		places   int
		expected float64
	}{
		{66.666, 1, 66.7},
		{1.25, 1, 1.3},
		{-8.65, 1, -8.7},
		{3.14159, 2, 3.14},
		{2.5, 0, 3},
	}

	for _, tt := range tests {
		result := Round(tt.x, tt.places)
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.x, tt.places, result, tt.expected)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(25, -20, 20); got != 20 {
		t.Errorf("Clamp(25) = %v, want 20", got)
	}
	if got := Clamp(-25, -20, 20); got != -20 {
		t.Errorf("Clamp(-25) = %v, want -20", got)
	}
	if got := Clamp(7, -20, 20); got != 7 {
		t.Errorf("Clamp(7) = %v, want 7", got)
	}
	if got := ClampInt(2, 5, 90); got != 5 {
		t.Errorf("ClampInt(2) = %v, want 5", got)
	}
	if got := ClampInt(95, 5, 90); got != 90 {
		t.Errorf("ClampInt(95) = %v, want 90", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	if got := Mean([]float64{1.9, 2.0, 2.1}); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("Mean = %v, want 2.0", got)
	}
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(3, 0, 0.5); got != 0.5 {
		t.Errorf("SafeDiv by zero = %v, want fallback 0.5", got)
	}
	if got := SafeDiv(3, 4, 0.5); got != 0.75 {
		t.Errorf("SafeDiv(3,4) = %v, want 0.75", got)
	}
}
