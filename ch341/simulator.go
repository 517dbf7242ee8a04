package ch341

import (
	"errors"
)

// Packet is one 32-byte frame (leading zero, 30-byte payload, CRC)
// the Simulator recorded from a Write call.
type Packet struct {
	Payload [30]byte
	CRC     byte
}

// Simulator is an in-memory controller.Driver standing in for a
// CH341-attached board in tests: a single goroutine owns its state,
// request/response pairs cross channels, the way mjolnir's Simulator
// models its device.
type Simulator struct {
	in    chan simRequest
	out   chan simResult
	close chan struct{}

	Packets []Packet

	// Statuses is consumed in order by successive Status() calls; once
	// exhausted, the last entry repeats. A fresh Simulator defaults to
	// always-OK (0xCE) if Statuses is never set.
	Statuses [][6]byte
	nextStat int

	chipVersion byte
}

type simRequest struct {
	kind simRequestKind
	data []byte
}

type simRequestKind int

const (
	reqWrite simRequestKind = iota
	reqStatus
	reqChipVersion
	reqClose
)

type simResult struct {
	n    int
	st   [6]byte
	ver  byte
	err  error
}

// NewSimulator returns a running Simulator whose status queries
// answer 0xCE (OK) until Statuses is populated.
func NewSimulator() *Simulator {
	s := &Simulator{
		in:          make(chan simRequest),
		out:         make(chan simResult),
		close:       make(chan struct{}),
		chipVersion: 0x41,
	}
	go s.run()
	return s
}

func (s *Simulator) run() {
	for {
		select {
		case <-s.close:
			s.close <- struct{}{}
			return
		case r := <-s.in:
			switch r.kind {
			case reqWrite:
				n, err := s.doWrite(r.data)
				s.out <- simResult{n: n, err: err}
			case reqStatus:
				st := s.doStatus()
				s.out <- simResult{st: st}
			case reqChipVersion:
				s.out <- simResult{ver: s.chipVersion}
			}
		}
	}
}

func (s *Simulator) doWrite(data []byte) (int, error) {
	switch {
	case len(data) == 1 && data[0] == cmdStatus:
		return 1, nil
	case len(data) == 1 && data[0] == cmdChipVersion:
		return 1, nil
	case len(data) == 32:
		var pkt Packet
		copy(pkt.Payload[:], data[1:31])
		pkt.CRC = data[31]
		s.Packets = append(s.Packets, pkt)
		return len(data), nil
	default:
		return 0, errors.New("ch341: simulator received an unrecognized write")
	}
}

func (s *Simulator) doStatus() [6]byte {
	if len(s.Statuses) == 0 {
		return [6]byte{0, 0xCE, 0, 0, 0, 0}
	}
	st := s.Statuses[s.nextStat]
	if s.nextStat < len(s.Statuses)-1 {
		s.nextStat++
	}
	return st
}

func (s *Simulator) Open() error  { return nil }
func (s *Simulator) Close() error {
	s.close <- struct{}{}
	<-s.close
	return nil
}

func (s *Simulator) Write(frame []byte) (int, error) {
	s.in <- simRequest{kind: reqWrite, data: frame}
	r := <-s.out
	return r.n, r.err
}

// Status issues a status query: on real hardware this writes the
// status command byte and reads back 6 bytes; here it just reports
// the next scripted response.
func (s *Simulator) Status() ([6]byte, error) {
	s.in <- simRequest{kind: reqStatus}
	r := <-s.out
	return r.st, r.err
}

func (s *Simulator) ChipVersion() (int, error) {
	s.in <- simRequest{kind: reqChipVersion}
	r := <-s.out
	return int(r.ver), r.err
}
