package hashindex

// Codec converts a Go value of type T to and from the fixed uint64 slots a
// bucket page actually stores. Values go through the table's value Codec;
// keys go through the table's hash function, which defaults to the key
// Codec's Encode.
type Codec[T any] struct {
	Encode func(T) uint64
	Decode func(uint64) T
}

// Uint64Codec is the identity codec for keys/values that are already
// uint64, the common case for a teaching index keyed by integer id.
func Uint64Codec() Codec[uint64] {
	return Codec[uint64]{
		Encode: func(v uint64) uint64 { return v },
		Decode: func(v uint64) uint64 { return v },
	}
}

// Int64Codec rides uint64's wraparound bit pattern for signed keys/values.
func Int64Codec() Codec[int64] {
	return Codec[int64]{
		Encode: func(v int64) uint64 { return uint64(v) },
		Decode: func(v uint64) int64 { return int64(v) },
	}
}

// StringCodec stores strings up to 8 bytes packed into a uint64 (no
// allocation, no collision table) — enough for short fixed-width keys such
// as 8-character codes. Longer strings are truncated to their first 8
// bytes; for those, pass a string hash function as New's hashKey argument.
func StringCodec() Codec[string] {
	return Codec[string]{
		Encode: func(s string) uint64 {
			var buf [8]byte
			copy(buf[:], s)
			var v uint64
			for i, b := range buf {
				v |= uint64(b) << (8 * uint(i))
			}
			return v
		},
		Decode: func(v uint64) string {
			var buf [8]byte
			for i := range buf {
				buf[i] = byte(v >> (8 * uint(i)))
			}
			n := len(buf)
			for n > 0 && buf[n-1] == 0 {
				n--
			}
			return string(buf[:n])
		},
	}
}
