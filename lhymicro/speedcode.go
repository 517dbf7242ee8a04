package lhymicro

import "fmt"

// Speedcode renders the vendor speed/mode preamble the board reads
// when entering COMPACT mode: board identity, a scaled speed value,
// an optional raster row stride, an optional diagonal distance ratio,
// and an optional acceleration factor, packed into one deterministic
// byte string.
//
// Only the "M2" (M2-Nano) board table is implemented; this driver
// core targets that board exclusively. speedcode is otherwise a pure
// function of its inputs: same board/speed/rasterStep/dRatio/accel
// always renders the same bytes.
func Speedcode(board string, speed float64, rasterStep int, dRatio *float64, accel *int) []byte {
	if board != "M2" {
		panic(fmt.Errorf("lhymicro: unsupported board %q", board))
	}
	out := []byte{'C', 'V'}
	out = append(out, speedValue(speed)...)
	if rasterStep > 0 {
		out = append(out, 'G')
		out = append(out, Distance(rasterStep)...)
	}
	if dRatio != nil {
		out = append(out, 'D')
		out = append(out, speedValue(*dRatio)...)
	}
	if accel != nil {
		a := *accel
		if a < 0 {
			a = 0
		} else if a > 4 {
			a = 4
		}
		out = append(out, 'A', '0'+byte(a))
	}
	return out
}

// speedValue renders a speed (steps/unit-time, fractional) as a fixed
// six-digit decimal of its value scaled by 1000, the precision the
// board's speed table steps in.
func speedValue(v float64) []byte {
	scaled := int(v*1000 + 0.5)
	if scaled < 0 {
		scaled = 0
	}
	return []byte(fmt.Sprintf("%06d", scaled))
}
