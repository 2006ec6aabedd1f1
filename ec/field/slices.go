package field

import "crypto/subtle"

// Byte-slice kernels. Each one processes len(in) bytes; out must be at least
// that long. in and out may be the same slice.

// MulSlice sets out[i] = c * in[i].
func MulSlice(c byte, in, out []byte) {
	out = out[:len(in)]
	switch c {
	case 0:
		clear(out)
	case 1:
		copy(out, in)
	default:
		mt := &mulTable[c]
		for i, v := range in {
			out[i] = mt[v]
		}
	}
}

// MulAddSlice sets out[i] ^= c * in[i].
func MulAddSlice(c byte, in, out []byte) {
	switch c {
	case 0:
		return
	case 1:
		XorSlice(in, out)
		return
	}
	out = out[:len(in)]
	mt := &mulTable[c]
	for i, v := range in {
		out[i] ^= mt[v]
	}
}

// XorSlice sets out[i] ^= in[i].
func XorSlice(in, out []byte) {
	subtle.XORBytes(out, out[:len(in)], in)
}
