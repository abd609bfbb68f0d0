package miner

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrTimestampTooLow is returned when a requested block timestamp does not
// advance past the last block.
var ErrTimestampTooLow = errors.New("timestamp must be greater than the last block timestamp")

// TimeManager tracks the virtual clock used for block timestamps. All
// timestamps are unix seconds.
type TimeManager struct {
	now func() time.Time

	offset        int64
	nextTimestamp *uint64
	interval      *uint64
	lastTimestamp uint64

	mu sync.Mutex
}

// NewTimeManager creates a time manager whose last block was produced at lastTimestamp.
func NewTimeManager(lastTimestamp uint64, now func() time.Time) *TimeManager {
	if now == nil {
		now = time.Now
	}
	return &TimeManager{now: now, lastTimestamp: lastTimestamp}
}

func (t *TimeManager) wallClock() int64 {
	return t.now().Unix()
}

// CurrentTimestamp returns the wall clock shifted by the current offset.
func (t *TimeManager) CurrentTimestamp() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentLocked()
}

func (t *TimeManager) currentLocked() uint64 {
	ts := saturatingAdd(t.wallClock(), t.offset)
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// LastTimestamp returns the timestamp of the last produced block.
func (t *TimeManager) LastTimestamp() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastTimestamp
}

// IncreaseTime moves the clock forward and returns the total offset in seconds.
func (t *TimeManager) IncreaseTime(seconds uint64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := int64(math.MaxInt64)
	if seconds < math.MaxInt64 {
		delta = int64(seconds)
	}
	t.offset = saturatingAdd(t.offset, delta)
	return t.offset
}

// SetTime moves the clock to timestamp and returns how many seconds it
// jumped forward, zero when it moved backwards.
func (t *TimeManager) SetTime(timestamp uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.currentLocked()
	t.setOffsetLocked(timestamp)
	t.nextTimestamp = nil

	if timestamp <= current {
		return 0
	}
	return timestamp - current
}

// Reset moves the clock to timestamp and treats it as the last block time.
func (t *TimeManager) Reset(timestamp uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.setOffsetLocked(timestamp)
	t.nextTimestamp = nil
	t.lastTimestamp = timestamp
}

func (t *TimeManager) setOffsetLocked(timestamp uint64) {
	target := int64(math.MaxInt64)
	if timestamp < math.MaxInt64 {
		target = int64(timestamp)
	}
	t.offset = target - t.wallClock()
}

// SetNextBlockTimestamp fixes the timestamp of the next block.
func (t *TimeManager) SetNextBlockTimestamp(timestamp uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timestamp <= t.lastTimestamp {
		return fmt.Errorf("%w: %d <= %d", ErrTimestampTooLow, timestamp, t.lastTimestamp)
	}
	t.nextTimestamp = &timestamp
	return nil
}

// SetBlockTimestampInterval makes every block advance by exactly seconds.
func (t *TimeManager) SetBlockTimestampInterval(seconds uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = &seconds
}

// RemoveBlockTimestampInterval clears the interval and reports whether one was set.
func (t *TimeManager) RemoveBlockTimestampInterval() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.interval != nil
	t.interval = nil
	return removed
}

// NextTimestamp returns the timestamp for the next block and records it as
// the last one. The result is always greater than the previous block's.
func (t *TimeManager) NextTimestamp() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var next uint64
	exact := false
	switch {
	case t.nextTimestamp != nil:
		next = *t.nextTimestamp
		t.nextTimestamp = nil
		exact = true
	case t.interval != nil:
		next = t.lastTimestamp + *t.interval
		if next < t.lastTimestamp {
			next = math.MaxUint64
		}
	default:
		next = t.currentLocked()
	}

	if next <= t.lastTimestamp {
		next = t.lastTimestamp + 1
	}
	if exact {
		t.setOffsetLocked(next)
	}
	t.lastTimestamp = next
	return next
}

func saturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}
