// Command lhymicroctl drives an M2-Nano class LhyMicro-GL laser
// cutter board over a CH341 USB bridge: home the head, then cut a
// test rectangle of the given size.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"

	"lhymicro.dev/ch341"
	"lhymicro.dev/controller"
	"lhymicro.dev/lhymicro"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lhymicroctl: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	device := flag.String("device", "", "serial device node (default: platform CH341 default)")
	baud := flag.Int("baud", 0, "serial baud rate (default: board default)")
	width := flag.Int("width", 1000, "test rectangle width in motor steps")
	height := flag.Int("height", 1000, "test rectangle height in motor steps")
	speed := flag.Float64("speed", 30, "cut speed")
	power := flag.Float64("power", 1000, "laser power in [0,1000]")
	swapXY := flag.Bool("swap-xy", false, "swap the X/Y step axes")
	simulate := flag.Bool("simulate", false, "run against an in-memory simulator instead of real hardware")
	flag.Parse()

	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("lhymicroctl: starting...")

	var drv controller.Driver
	if *simulate {
		drv = ch341.NewSimulator()
	} else {
		drv = &ch341.Serial{Device: *device, Baud: *baud}
	}

	ctrl := controller.New(drv, controller.Options{})
	ctrl.Subscribe("pipe;thread", func(s controller.Signal) {
		log.Printf("lhymicroctl: sender state -> %v", s.Payload)
	})
	ctrl.Subscribe("pipe;error", func(s controller.Signal) {
		log.Printf("lhymicroctl: error: %v", s.Payload)
	})

	if err := ctrl.Open(); err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer ctrl.Close()

	ip := lhymicro.NewInterpreter(ctrl, lhymicro.Options{
		Board:    lhymicro.Board{SwapXY: *swapXY},
		Autolock: true,
	})
	ip.SetSpeed(*speed)
	ip.SetPower(*power)
	ip.SetPulseModulation(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Println("lhymicroctl: interrupted, aborting...")
		ctrl.Abort()
	}()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	ip.Home()
	w, h := *width, *height
	ip.ToCompactMode()
	corners := []image.Point{{w, 0}, {w, h}, {0, h}, {0, 0}}
	for _, p := range corners {
		ip.Cut(p.X-ip.Position().X, p.Y-ip.Position().Y)
	}
	ip.Up()
	ip.ToDefaultMode()

	ctrl.Write([]byte("-\n")) // wait-finished directive: block until the board reports done
	ctrl.Finish()             // quit once the rectangle and the directive above have drained

	return <-done
}
