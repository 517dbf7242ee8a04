package lhymicro

// Mode is the interpreter's machine-level operating mode.
type Mode int

const (
	Default Mode = iota
	Concat
	Compact
)

func (m Mode) String() string {
	switch m {
	case Default:
		return "DEFAULT"
	case Concat:
		return "CONCAT"
	case Compact:
		return "COMPACT"
	default:
		return "UNKNOWN"
	}
}

// DirectionFlags records which axes the last committed move engaged
// and the sign of each, the way the original dispatcher's
// direction_flag bitset does.
type DirectionFlags uint8

const (
	Left DirectionFlags = 1 << iota
	Top
	XEngaged
	YEngaged
)

func (f DirectionFlags) Has(bit DirectionFlags) bool { return f&bit != 0 }

func (f DirectionFlags) with(bit DirectionFlags, set bool) DirectionFlags {
	if set {
		return f | bit
	}
	return f &^ bit
}

// axisCodes is the nominal board byte alphabet for the four
// step-axis directions, before any swap_xy/flip_x/flip_y permutation
// is applied.
type axisCodes struct {
	right, left, top, bottom byte
}

var nominalAxisCodes = axisCodes{right: 'B', left: 'T', top: 'L', bottom: 'R'}

// swappedAxisCodes is the byte table a swap_xy board uses: the nominal
// table with its X entries (right/left) and Y entries (bottom/top)
// exchanged.
var swappedAxisCodes = axisCodes{right: 'R', left: 'L', top: 'T', bottom: 'B'}

// Board captures the per-device wiring toggles that permute the
// nominal axis byte table: swapXY exchanges the X/Y step axes,
// flipX/flipY invert which byte means "away from home" on each axis.
type Board struct {
	SwapXY, FlipX, FlipY bool
}

// axisCodes returns this board's permuted right/left/top/bottom byte
// table, recomputed at mode-reload time the way the original
// dispatcher re-derives it from the three toggles: swap_xy selects
// between two distinct literal tables, then flip_x and flip_y each
// exchange one pair of bytes in whichever table was selected.
func (b Board) axisCodes() axisCodes {
	var c axisCodes
	if b.SwapXY {
		c = swappedAxisCodes
	} else {
		c = nominalAxisCodes
	}
	if b.FlipX {
		c.right, c.left = c.left, c.right
	}
	if b.FlipY {
		c.top, c.bottom = c.bottom, c.top
	}
	return c
}
