package executor

import "time"

// timeNowUnixMilli is the default now() used to derive timestamp-based
// TTLs. It is a thin wrapper so tests can pin nowMillis without reaching
// into the standard library's clock.
func timeNowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
