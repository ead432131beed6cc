package schedule

import "time"

// FreezeNow pins the clock used for assignment timestamps until the returned reset is called.
func FreezeNow(now time.Time) (reset func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}
