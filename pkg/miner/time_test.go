package miner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow = 1700000000

func fixedClock(ts int64) func() time.Time {
	return func() time.Time { return time.Unix(ts, 0) }
}

func setupTimeManager(t *testing.T) *TimeManager {
	t.Helper()
	return NewTimeManager(testNow-10, fixedClock(testNow))
}

func TestTimeManager_NextTimestampUsesClock(t *testing.T) {
	tm := setupTimeManager(t)

	assert.Equal(t, uint64(testNow), tm.CurrentTimestamp())
	assert.Equal(t, uint64(testNow), tm.NextTimestamp())
	assert.Equal(t, uint64(testNow), tm.LastTimestamp())
}

func TestTimeManager_StrictlyIncreasing(t *testing.T) {
	tm := setupTimeManager(t)

	first := tm.NextTimestamp()
	second := tm.NextTimestamp()
	third := tm.NextTimestamp()

	assert.Greater(t, second, first)
	assert.Greater(t, third, second)
}

func TestTimeManager_IncreaseTime(t *testing.T) {
	tm := setupTimeManager(t)

	assert.Equal(t, int64(100), tm.IncreaseTime(100))
	assert.Equal(t, int64(150), tm.IncreaseTime(50))
	assert.Equal(t, uint64(testNow+150), tm.CurrentTimestamp())
	assert.Equal(t, uint64(testNow+150), tm.NextTimestamp())
}

func TestTimeManager_SetNextBlockTimestamp(t *testing.T) {
	tm := setupTimeManager(t)

	err := tm.SetNextBlockTimestamp(testNow - 10)
	assert.ErrorIs(t, err, ErrTimestampTooLow)

	require.NoError(t, tm.SetNextBlockTimestamp(testNow+1000))
	assert.Equal(t, uint64(testNow+1000), tm.NextTimestamp())

	// The clock continues from the exact timestamp.
	assert.Equal(t, uint64(testNow+1000), tm.CurrentTimestamp())
	assert.Equal(t, uint64(testNow+1001), tm.NextTimestamp())
}

func TestTimeManager_BlockTimestampInterval(t *testing.T) {
	tm := setupTimeManager(t)

	assert.False(t, tm.RemoveBlockTimestampInterval())

	tm.SetBlockTimestampInterval(5)
	assert.Equal(t, uint64(testNow-5), tm.NextTimestamp())
	assert.Equal(t, uint64(testNow), tm.NextTimestamp())

	assert.True(t, tm.RemoveBlockTimestampInterval())
	assert.Equal(t, uint64(testNow+1), tm.NextTimestamp())
}

func TestTimeManager_SetTime(t *testing.T) {
	tm := setupTimeManager(t)

	assert.Equal(t, uint64(500), tm.SetTime(testNow+500))
	assert.Equal(t, uint64(testNow+500), tm.CurrentTimestamp())

	assert.Equal(t, uint64(0), tm.SetTime(testNow-500))
	assert.Equal(t, uint64(testNow-500), tm.CurrentTimestamp())

	// Blocks never go backwards.
	assert.Equal(t, uint64(testNow-9), tm.NextTimestamp())
}

func TestTimeManager_Reset(t *testing.T) {
	tm := setupTimeManager(t)
	require.NoError(t, tm.SetNextBlockTimestamp(testNow+1000))
	tm.NextTimestamp()

	tm.Reset(testNow - 100)

	assert.Equal(t, uint64(testNow-100), tm.LastTimestamp())
	assert.Equal(t, uint64(testNow-100), tm.CurrentTimestamp())
	assert.Equal(t, uint64(testNow-99), tm.NextTimestamp())
}
