package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"
)

var testSequence = uint64(time.Now().UnixNano() % 1000000)

// NextSequence returns a process-wide unique number.
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName returns prefix with a unique suffix, e.g. "Cafe_123457".
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueEmail returns an address that never collides across test runs.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@test.local", prefix, NextSequence())
}
