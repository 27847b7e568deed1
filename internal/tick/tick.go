package tick

import (
	"errors"
	"fmt"
)

// ErrInvalidTickRate is returned when a song's tick rate cannot be mapped to a
// sample interval of at least one frame.
var ErrInvalidTickRate = errors.New("invalid tick rate")

// Interval returns the number of frames between two song updates,
// sampleRate / tickRate truncated toward zero.
func Interval(sampleRate int, tickRate int) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate %d: %w", sampleRate, ErrInvalidTickRate)
	}
	if tickRate <= 0 || tickRate > sampleRate {
		return 0, fmt.Errorf("tick rate %d Hz at %d Hz: %w", tickRate, sampleRate, ErrInvalidTickRate)
	}
	return sampleRate / tickRate, nil
}

// Scheduler counts produced frames and signals when a song update is due.
// The counter survives block boundaries, so ticks land on exact sample
// positions regardless of block size.
type Scheduler struct {
	interval int
	count    int
}

func New(sampleRate int, tickRate int) (*Scheduler, error) {
	interval, err := Interval(sampleRate, tickRate)
	if err != nil {
		return nil, err
	}
	return &Scheduler{interval: interval}, nil
}

// Advance is called once per produced frame. It returns true when exactly one
// song update must be issued.
func (s *Scheduler) Advance() bool {
	s.count++
	if s.count >= s.interval {
		s.count = 0
		return true
	}
	return false
}

func (s *Scheduler) Interval() int { return s.interval }

// Counter returns the frames produced since the last update.
func (s *Scheduler) Counter() int { return s.count }

// Reset zeros the counter without changing the interval.
func (s *Scheduler) Reset() { s.count = 0 }
