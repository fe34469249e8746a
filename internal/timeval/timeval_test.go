package timeval

import "testing"

func TestAddSub(t *testing.T) {
	a := FromInt(10)
	b := FromInt(3)
	if got := a.Add(b).ToInt(); got != 13 {
		t.Fatalf("Add: got %d, want 13", got)
	}
	if got := a.SubSaturating(b).ToInt(); got != 7 {
		t.Fatalf("SubSaturating: got %d, want 7", got)
	}
	if got := b.SubSaturating(a); got.Compare(Zero) != 0 {
		t.Fatalf("SubSaturating should clamp to zero, got %+v", got)
	}
}

func TestMulIntDivFloor(t *testing.T) {
	period := FromInt(7)
	budget := period.MulInt(5)
	if got := budget.ToInt(); got != 35 {
		t.Fatalf("MulInt: got %d, want 35", got)
	}
	if got := budget.DivFloor(period); got != 5 {
		t.Fatalf("DivFloor: got %d, want 5", got)
	}
	// Non-exact division floors.
	if got := FromInt(17).DivFloor(FromInt(5)); got != 3 {
		t.Fatalf("DivFloor floor: got %d, want 3", got)
	}
}

func TestCompareMin(t *testing.T) {
	a, b := FromInt(4), FromInt(9)
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if got := a.Min(b); got.Compare(a) != 0 {
		t.Fatalf("Min should return the smaller operand")
	}
}

func TestReciprocalRoundTrip(t *testing.T) {
	// 1 / (1/4) == 4
	quarter := FromFloat32(0.25)
	recip := quarter.Reciprocal()
	if got := recip.ToInt(); got != 4 {
		t.Fatalf("Reciprocal: got %d, want 4", got)
	}
}

func TestFrequencyPeriod(t *testing.T) {
	freq := NewFrequency(1_000_000) // 1 MHz
	period := freq.Period()
	// one cycle at 1 MHz is 1 microsecond == 1e-6 units when the caller's
	// base unit is seconds; verify it's small but non-zero.
	if period.Compare(Zero) <= 0 {
		t.Fatalf("expected a positive period")
	}
	if period.Int != 0 {
		t.Fatalf("expected sub-unit period for a 1MHz frequency, got Int=%d", period.Int)
	}
}
