package affinity

import "testing"

// TestNumCPU_ReportsPositiveCount verifies NumCPU never returns a
// nonsensical count, regardless of platform backend.
func TestNumCPU_ReportsPositiveCount(t *testing.T) {
	n, err := NumCPU()
	if err != nil {
		t.Fatalf("NumCPU() error = %v", err)
	}
	if n <= 0 {
		t.Fatalf("NumCPU() = %d, want > 0", n)
	}
}
