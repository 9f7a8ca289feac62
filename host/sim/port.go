package sim

import (
	"context"
	"io"
	"time"

	"heatsense/host/serial"
)

var _ serial.Port = (*Port)(nil)

// Port is an in-process serial link to the simulated firmware.
type Port struct {
	sim    *Sim
	closed chan struct{}
}

// Open returns a link to s. s must have been initialised.
func (s *Sim) Open() *Port {
	return &Port{sim: s, closed: make(chan struct{})}
}

func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	s := p.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	// partial frames wait for the rest of their bytes
	s.in = append(s.in, b...)
	n := s.server.Receive(s.in)
	s.in = append(s.in[:0], s.in[n:]...)
	return len(b), nil
}

// Read returns pending device output, or 0 bytes when there is none.
func (p *Port) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.EOF
	default:
	}
	s := p.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(b, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (p *Port) Flush() error {
	s := p.sim
	s.mu.Lock()
	s.out = nil
	s.mu.Unlock()
	return nil
}

func (p *Port) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

// Serve advances the simulation in real time until ctx is done.
func (s *Sim) Serve(ctx context.Context) error {
	const interval = time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	steps := int(interval / s.sc.Step)
	if steps < 1 {
		steps = 1
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			for i := 0; i < steps; i++ {
				s.step()
			}
			s.mu.Unlock()
		}
	}
}
