package limits

import "testing"

func TestSysatomicTakenGivenRoundTrip(t *testing.T) {
	var s Sysatomic_t
	s.Given(3)
	if !s.Taken(2) {
		t.Fatalf("Taken(2) on a limit of 3 should succeed")
	}
	if s.Taken(2) {
		t.Fatalf("Taken(2) on a limit of 1 should fail")
	}
	s.Given(1)
	if !s.Take() {
		t.Fatalf("Take() after Given(1) should succeed")
	}
}

func TestSysatomicTakenFailureLeavesLimitUnchanged(t *testing.T) {
	var s Sysatomic_t
	s.Given(1)
	if s.Taken(5) {
		t.Fatalf("Taken(5) on a limit of 1 should fail")
	}
	if !s.Take() {
		t.Fatalf("limit should still hold its original 1 after the failed Taken(5)")
	}
}

func TestMkSysLimitDefaults(t *testing.T) {
	sl := MkSysLimit()
	if sl.Handles != 16 {
		t.Fatalf("Handles default = %d, want 16", sl.Handles)
	}
	if !sl.Tasks.Taken(4096) {
		t.Fatalf("Tasks default should allow taking the full 4096 budget")
	}
	if sl.Tasks.Taken(1) {
		t.Fatalf("Tasks limit should be exhausted after taking all 4096")
	}
}
