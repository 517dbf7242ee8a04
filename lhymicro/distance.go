package lhymicro

import "fmt"

// Distance encodes a non-negative motor-step count as a LhyMicro-GL
// distance token: `z` is prepended once per full 255 units, the
// remainder is then rendered as a one-or-two letter code for small
// values, a three-digit zero-padded decimal for values 52..254, or
// nothing at all for a remainder of zero.
func Distance(v int) []byte {
	if v < 0 {
		panic(fmt.Errorf("lhymicro: distance must be non-negative, got %d", v))
	}
	var out []byte
	for i := 0; i < v/255; i++ {
		out = append(out, 'z')
	}
	v %= 255
	switch {
	case v == 0:
	case v <= 25:
		out = append(out, 'a'+byte(v-1))
	case v <= 51:
		out = append(out, '|', 'a'+byte(v-26))
	default:
		out = append(out, []byte(fmt.Sprintf("%03d", v))...)
	}
	return out
}
