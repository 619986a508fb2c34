package money

import "testing"

func TestRound(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{2.344, 2.34},
		{-3.455, -3.46},
		{100, 100},
	}
	for _, tc := range cases {
		if got := Round(tc.in); got != tc.want {
			t.Fatalf("Round(%v)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSplitPartsSumToRoundedTotal(t *testing.T) {
	first, second := Split(17123.456, 3424.6912)
	if first != 3424.69 {
		t.Fatalf("first=%v, want 3424.69", first)
	}
	if Sum(first, second) != 17123.46 {
		t.Fatalf("first+second=%v, want 17123.46", Sum(first, second))
	}
}
