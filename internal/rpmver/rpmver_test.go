package rpmver

import "testing"

func epoch(v int32) *int32 { return &v }

func TestVercmp(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0", "1.0.1", -1},
		{"1.a", "1.b", -1},
		{"1.0~rc1", "1.0", -1},
		{"1.0^git1", "1.0", 1},
		{"1.0", "1.0^git1", -1},
		{"5.5p1", "5.5p2", -1},
		{"5.5p10", "5.5p2", 1},
		{"10xyz", "9xyz", 1},
		{"xyz10", "xyz10.1", -1},
		{"xyz.4", "xyz.4", 0},
		{"2a", "2.0", -1},
		{"1.0", "1.fc4", 1},
		{"3.0.0_fc", "3.0.0.fc", 0},
	}
	for _, c := range cases {
		got := Vercmp(c.a, c.b)
		if got != c.want {
			t.Errorf("Vercmp(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareEpoch(t *testing.T) {
	lo := EVR{Epoch: nil, Version: "9", Release: "9"}
	hi := EVR{Epoch: epoch(1), Version: "0", Release: "0"}
	if Compare(lo, hi) >= 0 {
		t.Fatalf("missing epoch must sort below any concrete epoch")
	}
	same := EVR{Epoch: epoch(2), Version: "1.0", Release: "1"}
	if Compare(same, same) != 0 {
		t.Fatalf("identical EVR must compare equal")
	}
}
