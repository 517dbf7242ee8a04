// Package plot implements the pure, allocation-light pixel-stepping
// routines that feed the LhyMicro interpreter: Bresenham lines, Bézier
// rasterization, compound-path splicing, raster-row traversal, and the
// grouping/ungrouping transducers that translate between single-step
// and run-length encoded motion.
//
// Nothing here touches I/O. Every routine is a pull-based iterator in
// the style of engrave.Plan: a function over a yield callback that the
// caller can stop early by returning false.
package plot

import (
	"fmt"
	"image"

	"golang.org/x/image/math/fixed"
)

// Step is one pixel of motion: a motor-step coordinate and whether the
// laser fires while arriving there.
type Step struct {
	X, Y int
	On   bool
}

// Seq is a pull-based, possibly infinite sequence of Steps.
type Seq func(yield func(Step) bool)

func step(x, y int, on bool) Step { return Step{X: x, Y: y, On: on} }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func manhattan(a, b image.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Line walks every integer coordinate between (x0,y0) and (x1,y1)
// inclusive, in order, using the Zingl-Bresenham integer line
// algorithm (the same one the original interpreter's move_xy_line
// names in comment, here generalized into a standalone iterator).
func Line(x0, y0, x1, y1 int) Seq {
	return func(yield func(Step) bool) {
		dx := abs(x1 - x0)
		dy := -abs(y1 - y0)
		sx, sy := sign(x1-x0), sign(y1-y0)
		if sx == 0 {
			sx = 1
		}
		if sy == 0 {
			sy = 1
		}
		err := dx + dy
		x, y := x0, y0
		for {
			if !yield(step(x, y, true)) {
				return
			}
			if x == x1 && y == y1 {
				return
			}
			e2 := 2 * err
			if e2 >= dy {
				err += dy
				x += sx
			}
			if e2 <= dx {
				err += dx
				y += sy
			}
		}
	}
}

type fixedPt struct{ X, Y fixed.Int26_6 }

// lerpFixed interpolates a..b at num/den, num and den plain integer
// step counts, keeping the result exact to the half-step that rounding
// to motor steps allows.
func lerpFixed(a, b fixed.Int26_6, num, den int) fixed.Int26_6 {
	delta := int64(b - a)
	return a + fixed.Int26_6(delta*int64(num)/int64(den))
}

// deCasteljau samples a Bézier curve of arbitrary degree at num/den
// via repeated linear interpolation of the control polygon.
func deCasteljau(pts []image.Point, num, den int) image.Point {
	work := make([]fixedPt, len(pts))
	for i, p := range pts {
		work[i] = fixedPt{fixed.I(p.X), fixed.I(p.Y)}
	}
	for n := len(work); n > 1; n-- {
		for i := 0; i < n-1; i++ {
			work[i].X = lerpFixed(work[i].X, work[i+1].X, num, den)
			work[i].Y = lerpFixed(work[i].Y, work[i+1].Y, num, den)
		}
	}
	return image.Pt(work[0].X.Round(), work[0].Y.Round())
}

func polyLen(pts []image.Point) int {
	total := 0
	for i := 1; i < len(pts); i++ {
		total += manhattan(pts[i], pts[i-1])
	}
	return total
}

// bezierSteps rasterizes the Bézier curve whose control polygon is
// pts by oversampling its parameter and connecting successive samples
// with Line, which both fills in the unit steps the contract requires
// and collapses coincident samples for free.
func bezierSteps(pts []image.Point) Seq {
	return func(yield func(Step) bool) {
		if len(pts) == 0 {
			return
		}
		length := polyLen(pts)
		if length == 0 {
			yield(step(pts[0].X, pts[0].Y, true))
			return
		}
		// Oversample well past the Nyquist rate of the control
		// polygon's own length so no motor step is skipped.
		steps := length * 2
		prev := pts[0]
		if !yield(step(prev.X, prev.Y, true)) {
			return
		}
		for i := 1; i <= steps; i++ {
			p := deCasteljau(pts, i, steps)
			if p == prev {
				continue
			}
			cont := true
			first := true
			Line(prev.X, prev.Y, p.X, p.Y)(func(s Step) bool {
				if first {
					// Already emitted as the previous segment's end.
					first = false
					return true
				}
				if !yield(s) {
					cont = false
					return false
				}
				return true
			})
			prev = p
			if !cont {
				return
			}
		}
	}
}

// QuadBezier rasterizes a quadratic Bézier curve from (x0,y0) through
// control point (cx,cy) to (x1,y1).
func QuadBezier(x0, y0, cx, cy, x1, y1 int) Seq {
	return bezierSteps([]image.Point{{X: x0, Y: y0}, {X: cx, Y: cy}, {X: x1, Y: y1}})
}

// CubicBezier rasterizes a cubic Bézier curve from (x0,y0) through
// control points (c1x,c1y) and (c2x,c2y) to (x1,y1).
func CubicBezier(x0, y0, c1x, c1y, c2x, c2y, x1, y1 int) Seq {
	return bezierSteps([]image.Point{
		{X: x0, Y: y0}, {X: c1x, Y: c1y}, {X: c2x, Y: c2y}, {X: x1, Y: y1},
	})
}

// SegmentKind identifies a PathSegment's shape.
type SegmentKind int

const (
	MoveTo SegmentKind = iota
	LineTo
	QuadTo
	CubicTo
)

// PathSegment is one element of a compound path. Ctrl2 is unused for
// QuadTo.
type PathSegment struct {
	Kind         SegmentKind
	Ctrl1, Ctrl2 image.Point
	To           image.Point
}

// Path iterates the sub-segments of a compound path, starting at
// start, splicing each sub-segment's plot into one sequence. MoveTo
// segments reposition the pen without emitting any steps.
func Path(start image.Point, segs []PathSegment) Seq {
	return func(yield func(Step) bool) {
		cur := start
		for _, seg := range segs {
			var sub Seq
			switch seg.Kind {
			case MoveTo:
				cur = seg.To
				continue
			case LineTo:
				sub = Line(cur.X, cur.Y, seg.To.X, seg.To.Y)
			case QuadTo:
				sub = QuadBezier(cur.X, cur.Y, seg.Ctrl1.X, seg.Ctrl1.Y, seg.To.X, seg.To.Y)
			case CubicTo:
				sub = CubicBezier(cur.X, cur.Y, seg.Ctrl1.X, seg.Ctrl1.Y, seg.Ctrl2.X, seg.Ctrl2.Y, seg.To.X, seg.To.Y)
			default:
				panic(fmt.Errorf("plot: unknown segment kind %d", seg.Kind))
			}
			stop := false
			sub(func(s Step) bool {
				if !yield(s) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
			cur = seg.To
		}
	}
}

// Bitmap is a source of on/off pixels for Raster, e.g. a burned raster
// image.
type Bitmap interface {
	Bounds() image.Rectangle
	At(x, y int) bool
}

// Raster walks a bitmap row by row in a boustrophedon (serpentine)
// pattern: even rows left-to-right, odd rows right-to-left, the shape
// a raster engrave sweeps the head in to avoid wasted travel.
func Raster(b Bitmap) Seq {
	return func(yield func(Step) bool) {
		r := b.Bounds()
		for y := r.Min.Y; y < r.Max.Y; y++ {
			leftToRight := (y-r.Min.Y)%2 == 0
			if leftToRight {
				for x := r.Min.X; x < r.Max.X; x++ {
					if !yield(step(x, y, b.At(x, y))) {
						return
					}
				}
			} else {
				for x := r.Max.X - 1; x >= r.Min.X; x-- {
					if !yield(step(x, y, b.At(x, y))) {
						return
					}
				}
			}
		}
	}
}

// Grouper compacts a single-step sequence into a run-length encoded
// one (the board only accepts orthogonal/diagonal runs) while folding
// in PPI (pulses-per-inch) power modulation.
//
// Zero value is ready to use with PulseModulation disabled; set Power
// and PulseModulation to enable the accumulator.
type Grouper struct {
	// Power is the laser power in [0,1000] applied to every fired
	// step while accumulating pulses.
	Power float64
	// PulseModulation enables the PPI accumulator. When false, On is
	// passed through unchanged.
	PulseModulation bool
	// GroupModulation extends an emitted on-run: once a pulse has
	// fired, the threshold for the next one drops to zero until the
	// accumulator is exhausted, producing longer continuous-on runs
	// at moderate power.
	GroupModulation bool

	pulseAccumulator float64
}

// Group consumes single-step points from in and emits a compacted
// sequence: consecutive steps with the same (dx,dy,on) triple
// collapse, and a point is yielded only when the triple changes.
// start is the position the first incoming step is relative to.
//
// Group panics if in ever steps more than one motor unit on either
// axis between points: the upstream plotter is required to emit unit
// steps, and a larger jump means it is broken.
func (g *Grouper) Group(start image.Point, in Seq) Seq {
	return func(yield func(Step) bool) {
		lastX, lastY := start.X, start.Y
		lastOn := false
		dx, dy := 0, 0
		cont := true
		in(func(s Step) bool {
			on := s.On
			if g.PulseModulation {
				if s.On {
					g.pulseAccumulator += g.Power
				}
				if g.GroupModulation && lastOn {
					if g.pulseAccumulator > 0 {
						on = true
						g.pulseAccumulator -= 1000
					} else {
						on = false
					}
				} else {
					if g.pulseAccumulator >= 1000 {
						on = true
						g.pulseAccumulator -= 1000
					} else {
						on = false
					}
				}
			}
			if s.X == lastX+dx && s.Y == lastY+dy && on == lastOn {
				lastX, lastY = s.X, s.Y
				return true
			}
			if !yield(step(lastX, lastY, lastOn)) {
				cont = false
				return false
			}
			dx = s.X - lastX
			dy = s.Y - lastY
			if abs(dx) > 1 || abs(dy) > 1 {
				panic(fmt.Errorf("plot: dx(%d) or dy(%d) exceeds 1: upstream plotter is broken", dx, dy))
			}
			lastX, lastY, lastOn = s.X, s.Y, on
			return true
		})
		if cont {
			yield(step(lastX, lastY, lastOn))
		}
	}
}

// Ungroup is the inverse of Group: it consumes long orthogonal or
// diagonal runs and yields the unit-step points between them.
//
// Ungroup panics if consecutive points are neither purely orthogonal
// nor exactly diagonal (|dx|==|dy|): the board's COMPACT mode motion
// encoding cannot express any other vector.
func Ungroup(in Seq) Seq {
	return func(yield func(Step) bool) {
		curX, curY := 0, 0
		have := false
		cont := true
		in(func(s Step) bool {
			if !have {
				curX, curY = s.X, s.Y
				have = true
				if !yield(step(curX, curY, s.On)) {
					cont = false
					return false
				}
				return true
			}
			dx := sign(s.X - curX)
			dy := sign(s.Y - curY)
			totalDx := s.X - curX
			totalDy := s.Y - curY
			if totalDy*dx != totalDx*dy {
				panic(fmt.Errorf("plot: must be uniformly diagonal or orthogonal: (%d, %d) is not", totalDx, totalDy))
			}
			for curX != s.X || curY != s.Y {
				curX += dx
				curY += dy
				if !yield(step(curX, curY, s.On)) {
					cont = false
					return false
				}
			}
			return true
		})
		_ = cont
	}
}

// Collect drains a Seq into a slice. Intended for tests and small,
// known-finite sequences — never call it on an unbounded Seq.
func Collect(s Seq) []Step {
	var out []Step
	s(func(st Step) bool {
		out = append(out, st)
		return true
	})
	return out
}
