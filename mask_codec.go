package fdp

import "github.com/TheBitDrifter/mask"

// EncodeMask256 serializes m to 32 bytes, one bit per component type-id,
// for the recorder's entity section (spec §6 "mask"). mask.Mask256 has no
// exported byte view, so this walks every possible bit via the same
// membership-test idiom hasBit uses rather than reaching into its layout.
func EncodeMask256(m mask.Mask256) [32]byte {
	var out [32]byte
	for bit := 0; bit < maxComponentTypes; bit++ {
		if hasBit(m, TypeID(bit)) {
			out[bit/8] |= 1 << uint(bit%8)
		}
	}
	return out
}

// DecodeMask256 is EncodeMask256's inverse.
func DecodeMask256(data [32]byte) mask.Mask256 {
	var m mask.Mask256
	for bit := 0; bit < maxComponentTypes; bit++ {
		if data[bit/8]&(1<<uint(bit%8)) != 0 {
			m.Mark(uint32(bit))
		}
	}
	return m
}
