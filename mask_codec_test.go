package fdp

import (
	"testing"

	"github.com/TheBitDrifter/mask"
)

// TestEncodeDecodeMask256RoundTrip exercises EncodeMask256/DecodeMask256
// against an arbitrary set of marked bits, including the first, last, and
// some interior byte boundaries.
func TestEncodeDecodeMask256RoundTrip(t *testing.T) {
	var m mask.Mask256
	bits := []uint32{0, 1, 7, 8, 63, 64, 128, 255}
	for _, b := range bits {
		m.Mark(b)
	}

	encoded := EncodeMask256(m)
	decoded := DecodeMask256(encoded)

	for _, b := range bits {
		if !hasBit(decoded, TypeID(b)) {
			t.Fatalf("decoded mask missing bit %d", b)
		}
	}
	for bit := 0; bit < maxComponentTypes; bit++ {
		want := false
		for _, b := range bits {
			if uint32(bit) == b {
				want = true
				break
			}
		}
		if hasBit(decoded, TypeID(bit)) != want {
			t.Fatalf("decoded mask bit %d = %v, want %v", bit, hasBit(decoded, TypeID(bit)), want)
		}
	}
}

// TestEncodeMask256EmptyMask exercises the zero-value case: an empty mask
// encodes to all-zero bytes and decodes back to an empty mask.
func TestEncodeMask256EmptyMask(t *testing.T) {
	var m mask.Mask256
	encoded := EncodeMask256(m)
	for i, b := range encoded {
		if b != 0 {
			t.Fatalf("encoded[%d] = %d, want 0 for an empty mask", i, b)
		}
	}
	decoded := DecodeMask256(encoded)
	if !decoded.IsEmpty() {
		t.Fatal("decoded empty mask is not empty")
	}
}
