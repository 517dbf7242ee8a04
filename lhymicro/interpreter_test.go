package lhymicro

import (
	"image"
	"testing"
)

// sparseBitmap lights exactly the (x,y) pairs in on, leaving every
// other pixel within bounds dark — used to force Raster/RasterVertical
// to skip blank lines and exercise the drift-correction path.
type sparseBitmap struct {
	bounds image.Rectangle
	on     map[image.Point]bool
}

func (b sparseBitmap) Bounds() image.Rectangle { return b.bounds }
func (b sparseBitmap) At(x, y int) bool        { return b.on[image.Point{X: x, Y: y}] }

type fakePipe struct {
	buf []byte
	rt  []byte
}

func (p *fakePipe) Write(b []byte)         { p.buf = append(p.buf, b...) }
func (p *fakePipe) RealtimeWrite(b []byte) { p.rt = append(p.rt, b...) }
func (p *fakePipe) Len() int               { return len(p.buf) }

func TestDefaultModeSimpleMove(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{Autolock: false})
	ip.MoveAbsolute(10, 0)
	want := "IB" + string(Distance(10)) + "S1P\n" + "IS2P\n"
	if got := string(p.buf); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultModeAutolockSkipsRelease(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{Autolock: true})
	ip.MoveAbsolute(10, 0)
	want := "IB" + string(Distance(10)) + "S1P\n"
	if got := string(p.buf); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompactDiagonalMove(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.MoveAbsolute(5, 5)
	codes := ip.opt.Board.axisCodes()
	want := string([]byte{codes.bottom, codes.right, 'M'}) + string(Distance(5))
	if got := string(p.buf); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if ip.Position() != (image.Point{X: 5, Y: 5}) {
		t.Errorf("position = %v, want (5,5)", ip.Position())
	}
}

func TestCompactOrthogonalMoveOmitsRedundantDirection(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.Move(5, 0)
	ip.Move(3, 0)
	codes := ip.opt.Board.axisCodes()
	want := string([]byte{codes.right}) + string(Distance(5)) + string(Distance(3))
	if got := string(p.buf); got != want {
		t.Errorf("got %q, want %q (direction byte should not repeat)", got, want)
	}
}

func TestPenNoOpWhenAlreadySet(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.Down()
	ip.Down()
	if got := string(p.buf); got != "D" {
		t.Errorf("Down() twice wrote %q, want a single D", got)
	}
}

func TestHomeResetsPositionAndBounds(t *testing.T) {
	p := &fakePipe{}
	home := image.Pt(1000, 2000)
	ip := NewInterpreter(p, Options{HomeCorner: home})
	ip.mode = Compact
	ip.Move(10, 10)
	ip.Home()
	if ip.Position() != home {
		t.Errorf("position after Home = %v, want %v", ip.Position(), home)
	}
	if ip.Mode() != Default {
		t.Errorf("mode after Home = %v, want DEFAULT", ip.Mode())
	}
	min, max, ok := ip.Bounds()
	if !ok || min != home || max != home {
		t.Errorf("bounds after Home = [%v,%v] ok=%v, want [%v,%v] ok=true", min, max, ok, home, home)
	}
}

func TestBoundsTracksEnvelope(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.Move(10, 0)
	ip.Move(-20, 5)
	min, max, ok := ip.Bounds()
	if !ok {
		t.Fatal("Bounds() not ok after moves")
	}
	if min != (image.Point{X: -10, Y: 0}) || max != (image.Point{X: 10, Y: 5}) {
		t.Errorf("bounds = [%v,%v], want [(-10,0),(10,5)]", min, max)
	}
}

func TestMovePlannedMixedVectorReachesTarget(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.Move(7, 20)
	if ip.Position() != (image.Point{X: 7, Y: 20}) {
		t.Errorf("position after mixed move = %v, want (7,20)", ip.Position())
	}
}

func TestToCompactModeEntersAndReenters(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.ToCompactMode()
	if ip.Mode() != Compact {
		t.Fatalf("mode = %v, want COMPACT", ip.Mode())
	}
	ip.SetSpeed(30)
	if ip.Mode() != Concat {
		t.Fatalf("changing speed should drop to CONCAT, mode = %v", ip.Mode())
	}
	ip.ToCompactMode()
	if ip.Mode() != Compact {
		t.Fatalf("mode after re-entry = %v, want COMPACT", ip.Mode())
	}
}

func TestHoldRespectsBufferLimit(t *testing.T) {
	p := &fakePipe{buf: make([]byte, 100)}
	ip := NewInterpreter(p, Options{BufferLimit: true, BufferMax: 10})
	if !ip.Hold() {
		t.Error("Hold() = false, want true when buffer exceeds BufferMax")
	}
}

func TestHoldRespectsExtraHold(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.SetExtraHold(func() bool { return true })
	if !ip.Hold() {
		t.Error("Hold() = false, want true when ExtraHold predicate is set")
	}
}

func TestRasterNormalRowsUseHSwitchOnly(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.directionFlags = XEngaged | YEngaged
	ip.SetStep(2)
	b := sparseBitmap{
		bounds: image.Rect(0, 0, 3, 3),
		on: map[image.Point]bool{
			{X: 0, Y: 0}: true,
			{X: 0, Y: 2}: true,
		},
	}
	ip.Raster(b)
	if ip.position.Y != 2 {
		t.Fatalf("final Y = %d, want 2 (the skipped blank row is exactly RasterStep away)", ip.position.Y)
	}
	if bytesContain(p.buf, 'C', 'V') {
		t.Fatalf("unexpected speedcode re-render for an in-step row switch: %q", p.buf)
	}
}

func TestRasterRealignsAcrossSkippedRows(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.directionFlags = XEngaged | YEngaged
	ip.SetSpeed(10)
	ip.SetStep(1)
	b := sparseBitmap{
		bounds: image.Rect(0, 0, 3, 6),
		on: map[image.Point]bool{
			{X: 0, Y: 0}: true,
			{X: 0, Y: 5}: true,
		},
	}
	ip.Raster(b)
	if ip.position.Y != 5 {
		t.Fatalf("final Y = %d, want 5", ip.position.Y)
	}
	if !bytesContain(p.buf, 'C', 'V') {
		t.Fatalf("expected a re-rendered speedcode from the CONCAT/COMPACT realignment round-trip, got %q", p.buf)
	}
	if ip.Mode() != Compact {
		t.Fatalf("mode after Raster = %v, want COMPACT: realignment must re-enter COMPACT", ip.Mode())
	}
}

func TestRasterVerticalRealignsAcrossSkippedColumns(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.directionFlags = XEngaged | YEngaged
	ip.SetSpeed(10)
	ip.SetStep(1)
	b := sparseBitmap{
		bounds: image.Rect(0, 0, 6, 3),
		on: map[image.Point]bool{
			{X: 0, Y: 0}: true,
			{X: 5, Y: 0}: true,
		},
	}
	ip.RasterVertical(b)
	if ip.position.X != 5 {
		t.Fatalf("final X = %d, want 5", ip.position.X)
	}
	if !bytesContain(p.buf, 'C', 'V') {
		t.Fatalf("expected a re-rendered speedcode from the CONCAT/COMPACT realignment round-trip, got %q", p.buf)
	}
}

func bytesContain(buf []byte, seq ...byte) bool {
	if len(seq) == 0 || len(buf) < len(seq) {
		return false
	}
	for i := 0; i+len(seq) <= len(buf); i++ {
		match := true
		for j, b := range seq {
			if buf[i+j] != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestEmergencyStopUsesRealtimeWrite(t *testing.T) {
	p := &fakePipe{}
	ip := NewInterpreter(p, Options{})
	ip.mode = Compact
	ip.EmergencyStop()
	if string(p.rt) != "I*\n" {
		t.Errorf("realtime write = %q, want %q", p.rt, "I*\n")
	}
	if ip.Mode() != Default {
		t.Errorf("mode after EmergencyStop = %v, want DEFAULT", ip.Mode())
	}
}
