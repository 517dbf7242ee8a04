package ch341

import (
	"context"
	"testing"
	"time"

	"lhymicro.dev/controller"
	"lhymicro.dev/lhymicro"
)

// TestEndToEnd queues a run of DEFAULT-mode moves from the interpreter
// into a controller backed by a simulated board, starts the sender,
// aborts it, and checks that Run returns without error in the ABORT
// state. It does not check which packets reached the simulator.
func TestEndToEnd(t *testing.T) {
	sim := NewSimulator()
	defer sim.Close()

	c := controller.New(sim, controller.Options{})
	ip := lhymicro.NewInterpreter(c, lhymicro.Options{Autolock: true})

	for i := 0; i < 50; i++ {
		ip.MoveAbsolute(i*2, i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Abort() // nothing more is queued after the moves above; end the run deterministically

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not terminate after Abort")
	}

	if c.State() != controller.Abort {
		t.Fatalf("state = %v, want ABORT", c.State())
	}
}
