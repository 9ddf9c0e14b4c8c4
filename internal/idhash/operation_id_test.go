package idhash

import "testing"

func TestComputeOperationID(t *testing.T) {
	sig := "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

	got := ComputeOperationID(sig, 0)
	if len(got) != 64 {
		t.Fatalf("ComputeOperationID() length = %d, want 64", len(got))
	}

	if again := ComputeOperationID(sig, 0); again != got {
		t.Errorf("ComputeOperationID() not deterministic: %s != %s", again, got)
	}

	if other := ComputeOperationID(sig, 1); other == got {
		t.Error("ComputeOperationID() same hash for different index")
	}

	if other := ComputeOperationID(sig[:len(sig)-1], 0); other == got {
		t.Error("ComputeOperationID() same hash for different signature")
	}
}

func TestComputeOperationID_KnownValue(t *testing.T) {
	// sha256("sig|3")
	const want = "dd61ea3b723ac73ccdeba309779b00a839cd24188132a5fe66a97034df41a0b9"
	if got := ComputeOperationID("sig", 3); got != want {
		t.Errorf("ComputeOperationID() = %s, want %s", got, want)
	}
}
