package domain

import (
	"sync/atomic"
	"time"
)

var lastExerciseID atomic.Int64

// NextExerciseID issues exercise IDs from the wall clock in milliseconds,
// bumped past the previous value so that IDs are strictly increasing even
// when several exercises are created in the same millisecond.
func NextExerciseID() int64 {
	for {
		last := lastExerciseID.Load()
		next := time.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if lastExerciseID.CompareAndSwap(last, next) {
			return next
		}
	}
}
