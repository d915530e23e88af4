package graph

import (
	"errors"
	"testing"
)

func TestIsPeakHour(t *testing.T) {
	peaks := map[int]bool{
		6: false, 7: true, 8: true, 9: true, 10: false,
		16: false, 17: true, 18: true, 19: true, 20: false,
		0: false, 12: false, 23: false,
	}
	for hour, want := range peaks {
		if got := IsPeakHour(hour); got != want {
			t.Errorf("IsPeakHour(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestApplyCongestionRecomputesTimeCost(t *testing.T) {
	g := New(1)
	g.AddNode(0, "a")
	g.AddNode(1, "b")
	_ = g.AddEdge(0, 1, 12, 40, 0, true)

	peak, err := ApplyCongestion(g, 8)
	if err != nil {
		t.Fatalf("ApplyCongestion: %v", err)
	}
	e, _ := peak.Edge(0, 1)
	if !almostEqual(e.SpeedKph, 24) {
		t.Fatalf("peak speed = %v, want 24", e.SpeedKph)
	}
	if !almostEqual(e.TimeCost, 12.0/24) {
		t.Fatalf("peak time cost = %v, want %v", e.TimeCost, 12.0/24)
	}

	off, err := ApplyCongestion(g, 12)
	if err != nil {
		t.Fatalf("ApplyCongestion off-peak: %v", err)
	}
	e, _ = off.Edge(0, 1)
	if !almostEqual(e.SpeedKph, 40) || !almostEqual(e.TimeCost, 12.0/40) {
		t.Fatalf("off-peak edge changed: %+v", e)
	}
}

func TestApplyCongestionBadHour(t *testing.T) {
	g := New(1)
	for _, hour := range []int{-1, 24, 99} {
		if _, err := ApplyCongestion(g, hour); !errors.Is(err, ErrBadHour) {
			t.Errorf("hour %d: err = %v, want ErrBadHour", hour, err)
		}
	}
}
