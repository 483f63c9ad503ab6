package authcore

import "time"

// Clock supplies the current time. The default is [time.Now]; tests
// inject a fixed clock to pin token lifetimes.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
