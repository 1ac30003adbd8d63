package analysis

import (
	"math"
	"testing"
)

func TestCalculateKellyDecimal(t *testing.T) {
	tests := []struct {
		name        string
		trueProb    float64
		decimalOdds float64
		fraction    float64
		expectedMin float64
		expectedMax float64
	}{
		{
			name:        "2.0 odds with 55% edge",
			trueProb:    0.55,
			decimalOdds: 2.0, // Even money
			fraction:    1.0,
			expectedMin: 0.05,
			expectedMax: 0.15,
		},
		{
			name:        "3.0 odds with 40% true prob",
			trueProb:    0.40,
			decimalOdds: 3.0, // Implied 33%
			fraction:    1.0,
			expectedMin: 0.05,
			expectedMax: 0.15,
		},
		{
			name:        "quarter Kelly",
			trueProb:    0.55,
			decimalOdds: 2.0,
			fraction:    0.25,
			expectedMin: 0.02,
			expectedMax: 0.03,
		},
		{
			name:        "negative edge floors at zero",
			trueProb:    0.30,
			decimalOdds: 2.0,
			fraction:    1.0,
			expectedMin: 0,
			expectedMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateKellyDecimal(tt.trueProb, tt.decimalOdds, tt.fraction)

			if result < tt.expectedMin || result > tt.expectedMax {
				t.Errorf("CalculateKellyDecimal(%v, %v, %v) = %v, expected between %v and %v",
					tt.trueProb, tt.decimalOdds, tt.fraction, result, tt.expectedMin, tt.expectedMax)
			}
		})
	}
}

func TestCalculateKellyDecimalEdgeCases(t *testing.T) {
	// Invalid inputs should return 0
	cases := []struct {
		trueProb    float64
		decimalOdds float64
	}{
		{0.5, 1.0}, // no payout
		{0.5, 0},
		{0, 2.0},
		{1, 2.0},
	}

	for _, c := range cases {
		if got := CalculateKellyDecimal(c.trueProb, c.decimalOdds, 1); got != 0 {
			t.Errorf("CalculateKellyDecimal(%v, %v) = %v, want 0", c.trueProb, c.decimalOdds, got)
		}
	}
}

func TestExpectedValue(t *testing.T) {
	tests := []struct {
		p, odds  float64
		expected float64
	}{
		{0.5, 2.0, 0},
		{0.63, 2.0, 0.26},
		{0.25, 3.0, -0.25},
		{0.5, 1.0, 0},
	}

	for _, tt := range tests {
		if got := ExpectedValue(tt.p, tt.odds); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("ExpectedValue(%v, %v) = %v, want %v", tt.p, tt.odds, got, tt.expected)
		}
	}
}

func TestSizeStake(t *testing.T) {
	s := sizeStake("home", 63, 2.0, DefaultKellyFraction)
	if s == nil {
		t.Fatal("expected a stake")
	}
	if s.ExpectedValue != 26 || s.Kelly != 0.065 {
		t.Errorf("stake = %+v, want EV 26 and Kelly 0.065", s)
	}

	if s := sizeStake("away", 25, 4.0, DefaultKellyFraction); s != nil {
		t.Errorf("break-even price should not be staked, got %+v", s)
	}
}
