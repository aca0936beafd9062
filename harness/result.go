// Package harness builds the executable under test and runs timed,
// verified encrypt/decrypt round trips against it.
package harness

import "time"

// Result is one measured sweep cell. It is created once and never mutated
// after it has been logged.
type Result struct {
	Constant   int           `json:"constant"`
	BlockCount int64         `json:"block_count"`
	InputSize  int64         `json:"input_size_bytes"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// ElapsedMs returns the elapsed encryption time in milliseconds.
func (r Result) ElapsedMs() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}
