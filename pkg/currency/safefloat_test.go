package currency

import "testing"

func TestSafeFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"₦5,000.00", 5000},
		{"₦ 500", 500},
		{"500", 500},
		{"500.5", 500.5},
		{"$10.50", 10.5},
		{"N1,234", 1234},
		{"NGN 100", 100},
		{"  1,000.00  ", 1000},
		{nil, 0},
		{"", 0},
		{100, 100},
		{100.5, 100.5},
		{"invalid", 0},
		{"NGN 3,020.00", 3020},
		{"3020N", 3020},
		{"-250", -250},
		{true, 0},
	}
	for _, tc := range cases {
		if got := SafeFloat(tc.in); got != tc.want {
			t.Errorf("SafeFloat(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRevenueFor(t *testing.T) {
	if got := RevenueFor(30.2); got != 3020 {
		t.Errorf("RevenueFor(30.2) = %v, want 3020", got)
	}
	if got := RevenueFor(0.1 + 0.2); got != 30 {
		t.Errorf("RevenueFor(0.3) = %v, want 30", got)
	}
	if got := PointsFor(2000); got != 20 {
		t.Errorf("PointsFor(2000) = %v, want 20", got)
	}
}

func TestNaira(t *testing.T) {
	cases := map[float64]string{
		0:         "NGN 0.00",
		5:         "NGN 5.00",
		3020:      "NGN 3,020.00",
		1234567.5: "NGN 1,234,567.50",
		-2000:     "-NGN 2,000.00",
	}
	for in, want := range cases {
		if got := Naira(in); got != want {
			t.Errorf("Naira(%v) = %q, want %q", in, got, want)
		}
		if SafeFloat(want) != Round2(in) && in >= 0 {
			t.Errorf("SafeFloat(Naira(%v)) did not round trip", in)
		}
	}
}
