package store

import "testing"

func TestVectorEncodingRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.125, 0}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("length %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("element %d = %f, want %f", i, got[i], vec[i])
		}
	}

	if encodeVector(nil) != nil {
		t.Error("nil vector must encode to nil")
	}
	if decodeVector(nil) != nil {
		t.Error("nil blob must decode to nil")
	}
}

func TestMatrixEncodingRejectsRaggedRows(t *testing.T) {
	_, _, err := encodeMatrix([][]float32{{1, 2}, {3}})
	if err == nil {
		t.Fatal("expected error for ragged rows")
	}

	blob, dim, err := encodeMatrix([][]float32{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if dim != 2 {
		t.Fatalf("dim = %d, want 2", dim)
	}
	rows := decodeMatrix(blob, dim)
	if len(rows) != 3 || rows[2][1] != 6 {
		t.Fatalf("round trip mismatch: %v", rows)
	}
}
