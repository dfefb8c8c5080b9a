package realtime

import "time"

// SetIntervals overrides the channel deadlines so tests can exercise idle
// and dead channels in milliseconds. Returns a restore func.
func SetIntervals(read, ping time.Duration) (restore func()) {
	prevRead, prevPing := readDeadline, pingEvery
	readDeadline, pingEvery = read, ping
	return func() { readDeadline, pingEvery = prevRead, prevPing }
}
