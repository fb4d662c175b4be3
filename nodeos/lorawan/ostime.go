package lorawan

import "time"

// TickUnit is the duration of one stack tick.
const TickUnit = 16 * time.Microsecond

const (
	tickShift = 4

	// Tick differences at or above pastThreshold lie in the past.
	pastThreshold = 0xf0000000
	// WaitUntil reports lateness only below lateThreshold ticks.
	lateThreshold = 0x80000000

	// CheckTimer treats a deadline closer than this as expired.
	expiryMargin = 100 // µs
	// Alarms never fire sooner than this.
	alarmFloor = 10 // µs
)

// TicksAt converts a host time in µs to stack ticks. The result wraps every
// 2^32 ticks (about 19 hours).
func TicksAt(hostMicros int64) uint32 {
	return uint32(hostMicros >> tickShift)
}

// OSTimeToHostTime maps stack ticks back onto the host µs timeline relative
// to now. Targets up to 0xf0000000 ticks ahead count as future, everything
// else as past, so the mapping survives the 32-bit wrap.
func OSTimeToHostTime(nowMicros int64, osTime uint32) int64 {
	diff := osTime - TicksAt(nowMicros)
	if diff < pastThreshold {
		return nowMicros + int64(diff)<<tickShift
	}
	return nowMicros - int64(^diff)<<tickShift
}

// DurationToTicks rounds d down to whole ticks.
func DurationToTicks(d time.Duration) uint32 {
	return uint32(d / TickUnit)
}
