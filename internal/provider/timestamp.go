package provider

import (
	"strconv"
	"time"
)

// Timestamp is the last-modified time of an external document at millisecond
// resolution. The zero value is Unknown.
type Timestamp struct {
	millis int64
	known  bool
}

// Unknown is the timestamp of a document whose provider could not report one.
var Unknown = Timestamp{}

// At converts t to a Timestamp, truncating to milliseconds. The zero time
// maps to Unknown.
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Unknown
	}
	return Timestamp{millis: t.UnixMilli(), known: true}
}

// FromMillis builds a known Timestamp from milliseconds since the epoch.
func FromMillis(ms int64) Timestamp {
	return Timestamp{millis: ms, known: true}
}

// Known reports whether the timestamp carries a value.
func (t Timestamp) Known() bool {
	return t.known
}

// Millis returns milliseconds since the epoch; 0 for Unknown.
func (t Timestamp) Millis() int64 {
	return t.millis
}

// Equal reports whether both timestamps are known and identical. Two Unknown
// timestamps are not equal: unknown never vouches for freshness.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.known && o.known && t.millis == o.millis
}

func (t Timestamp) String() string {
	if !t.known {
		return "unknown"
	}
	return strconv.FormatInt(t.millis, 10)
}
