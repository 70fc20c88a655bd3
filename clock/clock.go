// Package clock implements the monotonic stopwatch used to time benchmark
// phases: record a start instant, report elapsed seconds on demand.
package clock

import "time"

// StopWatch records a start timestamp and reports elapsed time against it.
// The zero value is not started; use New or Reset before reading Elapsed.
type StopWatch struct {
	start time.Time
}

// New returns a StopWatch started now.
func New() *StopWatch {
	return &StopWatch{start: time.Now()}
}

// Reset replaces the start timestamp with the current instant.
func (s *StopWatch) Reset() {
	s.start = time.Now()
}

// Elapsed reports the number of seconds since the last Reset (or
// construction), as a float64 matching the original's float-seconds report.
func (s *StopWatch) Elapsed() float64 {
	return time.Since(s.start).Seconds()
}
