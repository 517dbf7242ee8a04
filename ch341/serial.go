// Package ch341 implements the controller.Driver contract against a
// CH341 USB-to-serial bridge: a real transport over the serial device
// node the chip enumerates as, and an in-memory Simulator standing in
// for hardware in tests.
package ch341

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/tarm/serial"
	"lhymicro.dev/controller"
)

// defaultDevice returns the serial device node the CH341 enumerates
// as on this platform, absent an explicit override.
func defaultDevice() string {
	switch runtime.GOOS {
	case "windows":
		return "COM3"
	default:
		return "/dev/ttyUSB0"
	}
}

// Serial is a controller.Driver backed by a CH341 serial port opened
// with github.com/tarm/serial. A status query is the single command
// byte cmdStatus, answered with 6 bytes; a chip-version query is the
// single command byte cmdChipVersion, answered with 1 byte.
type Serial struct {
	Device string // overrides the per-platform default device node
	Baud   int    // defaults to 9600, the M2-Nano's CH341 baud rate

	conn io.ReadWriteCloser
}

const defaultBaud = 9600

// Open dials the serial device, wrapping a "file not found"-shaped
// error in controller.ConnectionRefusedError so the sender's retry
// policy can recognize "no board attached" versus a mid-session drop.
func (s *Serial) Open() error {
	dev := s.Device
	if dev == "" {
		dev = defaultDevice()
	}
	baud := s.Baud
	if baud == 0 {
		baud = defaultBaud
	}
	conn, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baud})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &controller.ConnectionRefusedError{Err: err}
		}
		return fmt.Errorf("ch341: open %s: %w", dev, err)
	}
	s.conn = conn
	return nil
}

func (s *Serial) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Serial) Write(frame []byte) (int, error) {
	if s.conn == nil {
		return 0, errors.New("ch341: write on a closed connection")
	}
	return s.conn.Write(frame)
}

func (s *Serial) Status() ([6]byte, error) {
	var st [6]byte
	if s.conn == nil {
		return st, errors.New("ch341: status query on a closed connection")
	}
	if _, err := s.conn.Write([]byte{cmdStatus}); err != nil {
		return st, err
	}
	if _, err := io.ReadFull(s.conn, st[:]); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Serial) ChipVersion() (int, error) {
	if s.conn == nil {
		return 0, errors.New("ch341: chip version query on a closed connection")
	}
	if _, err := s.conn.Write([]byte{cmdChipVersion}); err != nil {
		return 0, err
	}
	var v [1]byte
	if _, err := io.ReadFull(s.conn, v[:]); err != nil {
		return 0, err
	}
	return int(v[0]), nil
}

const (
	cmdStatus      = 0xA1
	cmdChipVersion = 0xA7
)
