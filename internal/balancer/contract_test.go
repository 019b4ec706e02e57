package balancer

import "testing"

func TestRoundDown100k(t *testing.T) {
	cases := []struct {
		in, want Bitrate
	}{
		{6_000_000, 6_000_000},
		{6_049_999, 6_000_000},
		{6_099_999, 6_000_000},
		{0, 0},
		{99_999, 0},
		{-50_000, -100_000},
	}
	for _, c := range cases {
		if got := RoundDown100k(c.in); got != c.want {
			t.Errorf("RoundDown100k(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(50, 100, 200); got != 100 {
		t.Errorf("Clamp(50,100,200) = %d, want 100", got)
	}
	if got := Clamp(250, 100, 200); got != 200 {
		t.Errorf("Clamp(250,100,200) = %d, want 200", got)
	}
	if got := Clamp(150, 100, 200); got != 150 {
		t.Errorf("Clamp(150,100,200) = %d, want 150", got)
	}
}
