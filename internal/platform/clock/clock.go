package clock

import "time"

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NowMillis reads c and normalises the result to UTC with millisecond precision,
// the resolution every persisted timestamp uses.
func NowMillis(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Millisecond)
}
