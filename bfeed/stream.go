package bfeed

import (
	"github.com/kshedden/dstream/dstream"
)

// Stream returns the outcome as a dstream with the variables TimeVar
// and StatusVar, in a single chunk.
func (d *Data) Stream() dstream.Dstream {
	return dstream.NewFromArrays([][]interface{}{{d.Durations()}, {d.Status()}},
		[]string{TimeVar, StatusVar})
}

// EmpiricalStream returns the durations as a dstream with the single
// variable TimeVar.  Every duration is treated as an event, so a
// survival function fit to it is the empirical survival function.
func (d *Data) EmpiricalStream() dstream.Dstream {
	return dstream.NewFromArrays([][]interface{}{{d.Durations()}},
		[]string{TimeVar})
}
