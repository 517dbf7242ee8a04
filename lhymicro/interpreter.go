// Package lhymicro implements the stateful translator from
// high-level geometric commands into the LhyMicro-GL byte dialect
// spoken by M2-Nano class laser cutter boards: mode state machine
// (DEFAULT/CONCAT/COMPACT), direction-flag tracking, distance-token
// and speedcode formatting, and pen/position/power bookkeeping.
package lhymicro

import (
	"image"
	"time"

	"lhymicro.dev/plot"
)

// Pipe is what the interpreter writes board bytes to. The controller
// package's Controller implements it.
type Pipe interface {
	Write(p []byte)
	RealtimeWrite(p []byte)
	Len() int
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Options configures an Interpreter at construction time. The zero
// value is a usable M2-Nano board; with Autolock false, as in the zero
// value, every DEFAULT-mode burst is followed by an IS2P rail release.
type Options struct {
	Board       Board
	Autolock    bool
	HomeCorner  image.Point
	HomeAdjust  image.Point
	BufferMax   int
	BufferLimit bool
}

// Interpreter is a stateful translator from cut/move/raster commands
// into board bytes, one per open device connection.
type Interpreter struct {
	pipe Pipe
	opt  Options

	mode           Mode
	position       image.Point
	directionFlags DirectionFlags
	penOn          bool
	isRelative     bool

	rasterStep   int
	speed        float64
	power        float64
	dRatio       *float64
	acceleration *int

	grouper plot.Grouper

	bboxMin, bboxMax image.Point
	bboxValid        bool

	extraHold func() bool
}

// NewInterpreter returns an Interpreter in DEFAULT mode at (0,0)
// writing board bytes to pipe.
func NewInterpreter(pipe Pipe, opt Options) *Interpreter {
	return &Interpreter{
		pipe: pipe,
		opt:  opt,
		mode: Default,
	}
}

// Mode reports the interpreter's current machine-level mode.
func (ip *Interpreter) Mode() Mode { return ip.mode }

// Position reports the head's predicted current position.
func (ip *Interpreter) Position() image.Point { return ip.position }

// Bounds reports the traversal envelope accumulated since the last
// reset. ok is false if the head has not moved yet.
func (ip *Interpreter) Bounds() (min, max image.Point, ok bool) {
	return ip.bboxMin, ip.bboxMax, ip.bboxValid
}

func (ip *Interpreter) updateBounds() {
	p := ip.position
	if !ip.bboxValid {
		ip.bboxMin, ip.bboxMax = p, p
		ip.bboxValid = true
		return
	}
	if p.X < ip.bboxMin.X {
		ip.bboxMin.X = p.X
	}
	if p.Y < ip.bboxMin.Y {
		ip.bboxMin.Y = p.Y
	}
	if p.X > ip.bboxMax.X {
		ip.bboxMax.X = p.X
	}
	if p.Y > ip.bboxMax.Y {
		ip.bboxMax.Y = p.Y
	}
}

// SetExtraHold installs a one-shot gate Hold consults in addition to
// the buffer-depth check. Pass nil to clear it.
func (ip *Interpreter) SetExtraHold(pred func() bool) { ip.extraHold = pred }

// Hold reports whether the execution loop driving this interpreter
// should suspend before issuing the next command.
func (ip *Interpreter) Hold() bool {
	if ip.extraHold != nil && ip.extraHold() {
		return true
	}
	if ip.opt.BufferLimit && ip.opt.BufferMax > 0 && ip.pipe.Len() > ip.opt.BufferMax {
		return true
	}
	return false
}

func (ip *Interpreter) xDirByte(dx int) (b byte, emit bool) {
	codes := ip.opt.Board.axisCodes()
	left := dx < 0
	emit = left != ip.directionFlags.Has(Left) || !ip.directionFlags.Has(XEngaged)
	if left {
		b = codes.left
	} else {
		b = codes.right
	}
	ip.directionFlags = ip.directionFlags.with(Left, left).with(XEngaged, true)
	return b, emit
}

func (ip *Interpreter) yDirByte(dy int) (b byte, emit bool) {
	codes := ip.opt.Board.axisCodes()
	top := dy < 0
	emit = top != ip.directionFlags.Has(Top) || !ip.directionFlags.Has(YEngaged)
	if top {
		b = codes.top
	} else {
		b = codes.bottom
	}
	ip.directionFlags = ip.directionFlags.with(Top, top).with(YEngaged, true)
	return b, emit
}

func (ip *Interpreter) xLeg(dx int) []byte {
	var out []byte
	if b, emit := ip.xDirByte(dx); emit {
		out = append(out, b)
	}
	return append(out, Distance(abs(dx))...)
}

func (ip *Interpreter) yLeg(dy int) []byte {
	var out []byte
	if b, emit := ip.yDirByte(dy); emit {
		out = append(out, b)
	}
	return append(out, Distance(abs(dy))...)
}

// diagonalMove renders a COMPACT-mode angle move: direction bytes for
// any axis whose flag changed, Y before X, then `M` and the shared
// distance token.
func (ip *Interpreter) diagonalMove(dx, dy int) []byte {
	var out []byte
	if dy != 0 {
		if b, emit := ip.yDirByte(dy); emit {
			out = append(out, b)
		}
	}
	if dx != 0 {
		if b, emit := ip.xDirByte(dx); emit {
			out = append(out, b)
		}
	}
	out = append(out, 'M')
	return append(out, Distance(abs(dx))...)
}

// Move commits a relative motion of (dx,dy) motor steps, rendering it
// per the current mode's dialect.
func (ip *Interpreter) Move(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	switch ip.mode {
	case Default:
		out := []byte{'I'}
		if dx != 0 {
			out = append(out, ip.xLeg(dx)...)
		}
		if dy != 0 {
			out = append(out, ip.yLeg(dy)...)
		}
		out = append(out, "S1P\n"...)
		if !ip.opt.Autolock {
			out = append(out, "IS2P\n"...)
		}
		ip.pipe.Write(out)
	case Concat:
		var out []byte
		if dx != 0 {
			out = append(out, ip.xLeg(dx)...)
		}
		if dy != 0 {
			out = append(out, ip.yLeg(dy)...)
		}
		out = append(out, 'N')
		ip.pipe.Write(out)
	case Compact:
		ax, ay := abs(dx), abs(dy)
		switch {
		case ax == ay:
			ip.pipe.Write(ip.diagonalMove(dx, dy))
		case dx == 0 || dy == 0:
			if dx != 0 {
				ip.pipe.Write(ip.xLeg(dx))
			} else {
				ip.pipe.Write(ip.yLeg(dy))
			}
		default:
			ip.movePlanned(dx, dy)
			return
		}
	}
	ip.position.X += dx
	ip.position.Y += dy
	ip.updateBounds()
}

// movePlanned handles a mixed, non-diagonal COMPACT move by
// re-planning it through the pixel plotter and grouper, then
// recursing over each resulting orthogonal/diagonal sub-step — the
// board cannot encode an arbitrary vector directly.
func (ip *Interpreter) movePlanned(dx, dy int) {
	start := ip.position
	line := plot.Line(start.X, start.Y, start.X+dx, start.Y+dy)
	on := ip.penOn
	withPower := func(yield func(plot.Step) bool) {
		line(func(s plot.Step) bool {
			return yield(plot.Step{X: s.X, Y: s.Y, On: on})
		})
	}
	g := &plot.Grouper{}
	for s := range g.Group(start, withPower) {
		ip.Move(s.X-ip.position.X, s.Y-ip.position.Y)
	}
}

// MoveAbsolute commits a move to absolute position (x,y).
func (ip *Interpreter) MoveAbsolute(x, y int) {
	ip.Move(x-ip.position.X, y-ip.position.Y)
}

// Shift is an unpowered travel move: it forces PPI pulse modulation
// off and lifts the pen for the duration of the move, restoring the
// prior modulation setting afterward.
func (ip *Interpreter) Shift(dx, dy int) {
	was := ip.grouper.PulseModulation
	ip.grouper.PulseModulation = false
	ip.Up()
	ip.Move(dx, dy)
	ip.grouper.PulseModulation = was
}

// Down arms the laser (emits `D`), a no-op if already armed.
func (ip *Interpreter) Down() { ip.emitPen('D') }

// Up disarms the laser (emits `U`), a no-op if already disarmed.
func (ip *Interpreter) Up() { ip.emitPen('U') }

func (ip *Interpreter) emitPen(code byte) {
	on := code == 'D'
	if ip.penOn == on {
		return
	}
	switch ip.mode {
	case Default:
		ip.pipe.Write([]byte{'I', code, 'S', '1', 'P', '\n'})
		if !ip.opt.Autolock {
			ip.pipe.Write([]byte("IS2P\n"))
		}
	case Concat:
		ip.pipe.Write([]byte{code, 'N'})
	case Compact:
		ip.pipe.Write([]byte{code})
	}
	ip.penOn = on
}

// Cut is a powered straight move: arm the laser, then move.
func (ip *Interpreter) Cut(dx, dy int) {
	ip.Down()
	ip.Move(dx, dy)
}

func (ip *Interpreter) cutSeq(seq plot.Seq) {
	ip.Down()
	start := ip.position
	g := &plot.Grouper{Power: ip.power, PulseModulation: ip.grouper.PulseModulation, GroupModulation: ip.grouper.GroupModulation}
	for s := range g.Group(start, seq) {
		ip.Move(s.X-ip.position.X, s.Y-ip.position.Y)
	}
}

// CutQuadBezier cuts a quadratic Bézier curve from the current
// position through (cx,cy) to (x1,y1).
func (ip *Interpreter) CutQuadBezier(cx, cy, x1, y1 int) {
	p := ip.position
	ip.cutSeq(plot.QuadBezier(p.X, p.Y, cx, cy, x1, y1))
}

// CutCubicBezier cuts a cubic Bézier curve from the current position
// through (c1x,c1y) and (c2x,c2y) to (x1,y1).
func (ip *Interpreter) CutCubicBezier(c1x, c1y, c2x, c2y, x1, y1 int) {
	p := ip.position
	ip.cutSeq(plot.CubicBezier(p.X, p.Y, c1x, c1y, c2x, c2y, x1, y1))
}

// Plot moves to path's first point, then streams it as a sequence of
// grouped, power-modulated cuts and travels — the generalization of
// Cut to an arbitrary compound path.
func (ip *Interpreter) Plot(path plot.Seq) {
	pts := plot.Collect(path)
	if len(pts) == 0 {
		return
	}
	ip.MoveAbsolute(pts[0].X, pts[0].Y)
	seq := func(yield func(plot.Step) bool) {
		for _, p := range pts {
			if !yield(p) {
				return
			}
		}
	}
	start := ip.position
	g := &plot.Grouper{Power: ip.power, PulseModulation: ip.grouper.PulseModulation, GroupModulation: ip.grouper.GroupModulation}
	for s := range g.Group(start, seq) {
		if s.On {
			ip.Down()
		} else {
			ip.Up()
		}
		ip.Move(s.X-ip.position.X, s.Y-ip.position.Y)
	}
}

// Raster sweeps b in a boustrophedon pattern, switching horizontal
// direction at the end of each row and stepping down by RasterStep
// between rows, firing the laser per-pixel according to b.At. Rows
// with nothing lit are skipped outright; when that skip leaves a
// larger gap than RasterStep, hSwitchTo realigns with an explicit
// CONCAT-mode move before the next HSwitch.
func (ip *Interpreter) Raster(b plot.Bitmap) {
	r := b.Bounds()
	if r.Empty() {
		return
	}
	if ip.rasterStep == 0 {
		ip.SetStep(1)
	}
	ip.MoveAbsolute(r.Min.X, r.Min.Y)
	leftToRight := true
	for y := r.Min.Y; y < r.Max.Y; {
		row := func(yield func(plot.Step) bool) {
			if leftToRight {
				for x := r.Min.X; x < r.Max.X; x++ {
					if !yield(plot.Step{X: x, Y: y, On: b.At(x, y)}) {
						return
					}
				}
			} else {
				for x := r.Max.X - 1; x >= r.Min.X; x-- {
					if !yield(plot.Step{X: x, Y: y, On: b.At(x, y)}) {
						return
					}
				}
			}
		}
		g := &plot.Grouper{Power: ip.power, PulseModulation: ip.grouper.PulseModulation, GroupModulation: ip.grouper.GroupModulation}
		for s := range g.Group(ip.position, row) {
			if s.On {
				ip.Down()
			} else {
				ip.Up()
			}
			ip.Move(s.X-ip.position.X, s.Y-ip.position.Y)
		}
		next := nextRasterLine(b, r, y, false)
		if next >= r.Max.Y {
			break
		}
		ip.hSwitchTo(next - y)
		y = next
		leftToRight = !leftToRight
	}
	ip.Up()
}

// RasterVertical is Raster's column-scan analog: it sweeps b column
// by column, switching vertical direction at the end of each column
// and stepping across by RasterStep via VSwitch, for boards wired to
// engage the Y axis as the scan direction.
func (ip *Interpreter) RasterVertical(b plot.Bitmap) {
	r := b.Bounds()
	if r.Empty() {
		return
	}
	if ip.rasterStep == 0 {
		ip.SetStep(1)
	}
	ip.MoveAbsolute(r.Min.X, r.Min.Y)
	topToBottom := true
	for x := r.Min.X; x < r.Max.X; {
		col := func(yield func(plot.Step) bool) {
			if topToBottom {
				for y := r.Min.Y; y < r.Max.Y; y++ {
					if !yield(plot.Step{X: x, Y: y, On: b.At(x, y)}) {
						return
					}
				}
			} else {
				for y := r.Max.Y - 1; y >= r.Min.Y; y-- {
					if !yield(plot.Step{X: x, Y: y, On: b.At(x, y)}) {
						return
					}
				}
			}
		}
		g := &plot.Grouper{Power: ip.power, PulseModulation: ip.grouper.PulseModulation, GroupModulation: ip.grouper.GroupModulation}
		for s := range g.Group(ip.position, col) {
			if s.On {
				ip.Down()
			} else {
				ip.Up()
			}
			ip.Move(s.X-ip.position.X, s.Y-ip.position.Y)
		}
		next := nextRasterLine(b, r, x, true)
		if next >= r.Max.X {
			break
		}
		ip.vSwitchTo(next - x)
		x = next
		topToBottom = !topToBottom
	}
	ip.Up()
}

// nextRasterLine returns the next row (or, if vertical, column) after
// pos that has any lit pixel within bounds r, or the matching bound
// edge if none remains. Blank lines are skipped entirely rather than
// stepped through one at a time.
func nextRasterLine(b plot.Bitmap, r image.Rectangle, pos int, vertical bool) int {
	if vertical {
		for nx := pos + 1; nx < r.Max.X; nx++ {
			for y := r.Min.Y; y < r.Max.Y; y++ {
				if b.At(nx, y) {
					return nx
				}
			}
		}
		return r.Max.X
	}
	for ny := pos + 1; ny < r.Max.Y; ny++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if b.At(x, ny) {
				return ny
			}
		}
	}
	return r.Max.Y
}

// HSwitch flips the LEFT direction bit, emits the new horizontal
// direction byte, advances Y by ±RasterStep per the TOP bit, and
// resets pen state — the nominal single-row switch between
// horizontal raster rows.
func (ip *Interpreter) HSwitch() {
	codes := ip.opt.Board.axisCodes()
	ip.directionFlags = ip.directionFlags.with(Left, !ip.directionFlags.Has(Left)).with(XEngaged, true)
	b := codes.right
	if ip.directionFlags.Has(Left) {
		b = codes.left
	}
	ip.pipe.Write([]byte{b})
	dy := ip.rasterStep
	if ip.directionFlags.Has(Top) {
		dy = -dy
	}
	ip.position.Y += dy
	ip.penOn = false
	ip.updateBounds()
}

// VSwitch is HSwitch's analog for vertical raster sweeps.
func (ip *Interpreter) VSwitch() {
	codes := ip.opt.Board.axisCodes()
	ip.directionFlags = ip.directionFlags.with(Top, !ip.directionFlags.Has(Top)).with(YEngaged, true)
	b := codes.bottom
	if ip.directionFlags.Has(Top) {
		b = codes.top
	}
	ip.pipe.Write([]byte{b})
	dx := ip.rasterStep
	if ip.directionFlags.Has(Left) {
		dx = -dx
	}
	ip.position.X += dx
	ip.penOn = false
	ip.updateBounds()
}

// hSwitchTo performs the drift-corrected row switch used between
// raster rows: drift is the actual Y gap to the next row, which may
// exceed RasterStep when blank rows were skipped. HSwitch always
// advances by exactly ±RasterStep, so any excess is made up first
// with an explicit CONCAT-mode move, the sign following the TOP flag
// exactly as the board's own raster dispatcher does.
func (ip *Interpreter) hSwitchTo(drift int) {
	if abs(drift) > ip.rasterStep {
		adjust := drift - ip.rasterStep
		if ip.directionFlags.Has(Top) {
			adjust = drift + ip.rasterStep
		}
		ip.ToConcatMode()
		ip.Move(0, adjust)
		ip.ToCompactMode()
	}
	ip.HSwitch()
}

// vSwitchTo is hSwitchTo's analog for RasterVertical, correcting
// drift on the X axis ahead of the nominal VSwitch.
func (ip *Interpreter) vSwitchTo(drift int) {
	if abs(drift) > ip.rasterStep {
		adjust := drift - ip.rasterStep
		if ip.directionFlags.Has(Left) {
			adjust = drift + ip.rasterStep
		}
		ip.ToConcatMode()
		ip.Move(adjust, 0)
		ip.ToCompactMode()
	}
	ip.VSwitch()
}

// ToDefaultMode forces the interpreter back to DEFAULT, writing the
// mode-exit sequence if it wasn't already there.
func (ip *Interpreter) ToDefaultMode() {
	switch ip.mode {
	case Default:
		return
	case Concat, Compact:
		ip.pipe.Write([]byte("FNSE-\n"))
	}
	ip.mode = Default
	ip.directionFlags = 0
}

// ToConcatMode enters CONCAT, exiting COMPACT with `@NSE` if needed.
func (ip *Interpreter) ToConcatMode() {
	if ip.mode == Concat {
		return
	}
	if ip.mode == Compact {
		ip.pipe.Write([]byte("@NSE"))
	} else {
		ip.pipe.Write([]byte{'I'})
	}
	ip.mode = Concat
}

// ToCompactMode enters COMPACT: speedcode, `N`, an explicit
// direction baseline declaration (bottom, then right), then `S1E`.
func (ip *Interpreter) ToCompactMode() {
	if ip.mode == Compact {
		return
	}
	ip.ToConcatMode()
	ip.pipe.Write(Speedcode("M2", ip.speed, ip.rasterStep, ip.dRatio, ip.acceleration))
	ip.pipe.Write([]byte{'N'})
	codes := ip.opt.Board.axisCodes()
	ip.pipe.Write([]byte{codes.bottom, codes.right})
	ip.directionFlags = XEngaged | YEngaged
	ip.pipe.Write([]byte("S1E"))
	ip.mode = Compact
}

// leaveCompactForReconfigure drops back to CONCAT so the next COMPACT
// entry re-renders the speedcode with the new parameter: the board
// only reads speed/d_ratio/step/accel at COMPACT entry.
func (ip *Interpreter) leaveCompactForReconfigure() {
	if ip.mode == Compact {
		ip.ToConcatMode()
	}
}

// SetSpeed sets the cut/move speed, leaving COMPACT mode if the value
// changed so the next entry re-renders the speedcode.
func (ip *Interpreter) SetSpeed(v float64) {
	if v == ip.speed {
		return
	}
	ip.speed = v
	ip.leaveCompactForReconfigure()
}

// SetPower sets the PPI power level in [0,1000]; unlike speed, this
// only affects the grouper's accumulator and never requires leaving
// COMPACT mode.
func (ip *Interpreter) SetPower(v float64) { ip.power = v }

// SetPulseModulation enables or disables PPI power modulation.
func (ip *Interpreter) SetPulseModulation(on bool) { ip.grouper.PulseModulation = on }

// SetGroupModulation enables or disables the extended-on-run PPI
// variant (see plot.Grouper.GroupModulation).
func (ip *Interpreter) SetGroupModulation(on bool) { ip.grouper.GroupModulation = on }

// SetDRatio sets the diagonal distance ratio, or clears it if nil.
func (ip *Interpreter) SetDRatio(v *float64) {
	ip.dRatio = v
	ip.leaveCompactForReconfigure()
}

// SetAcceleration sets the acceleration factor, or clears it if nil.
func (ip *Interpreter) SetAcceleration(v *int) {
	ip.acceleration = v
	ip.leaveCompactForReconfigure()
}

// SetStep sets the raster row stride in motor steps.
func (ip *Interpreter) SetStep(v int) {
	if v == ip.rasterStep {
		return
	}
	ip.rasterStep = v
	ip.leaveCompactForReconfigure()
}

// Home forces DEFAULT mode, homes the axes, and resets position to
// the configured home corner, applying — then erasing from the
// logical coordinate — any fixed home offset.
func (ip *Interpreter) Home() {
	ip.ToDefaultMode()
	ip.pipe.Write([]byte("IPP\n"))
	ip.position = ip.opt.HomeCorner
	ip.bboxValid = false
	if ip.opt.HomeAdjust != (image.Point{}) {
		ip.Move(ip.opt.HomeAdjust.X, ip.opt.HomeAdjust.Y)
		ip.position = ip.opt.HomeCorner
	}
	ip.directionFlags = 0
	ip.updateBounds()
}

// LockRail locks the rail motors.
func (ip *Interpreter) LockRail() {
	ip.ToDefaultMode()
	ip.pipe.Write([]byte("IS1P\n"))
}

// UnlockRail releases the rail motors.
func (ip *Interpreter) UnlockRail() {
	ip.ToDefaultMode()
	ip.pipe.Write([]byte("IS2P\n"))
}

// EmergencyStop writes the emergency reset as a realtime preempt and
// forces interpreter state back to DEFAULT, laser off.
func (ip *Interpreter) EmergencyStop() {
	ip.pipe.RealtimeWrite([]byte("I*\n"))
	ip.mode = Default
	ip.directionFlags = 0
	ip.penOn = false
}

// Wait blocks the calling goroutine until the given deadline, the
// contract COMMAND_WAIT's stored deadline is expected to drive.
func (ip *Interpreter) Wait(until time.Time) {
	if d := time.Until(until); d > 0 {
		time.Sleep(d)
	}
}
