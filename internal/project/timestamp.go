package project

import (
	"fmt"
	"time"
)

// TimestampLayout names model files. It sorts lexically in time order and is
// safe to use in file names.
const TimestampLayout = "2006-01-02 15-04-05.000"

func TimestampToString(t time.Time) string {
	return t.Format(TimestampLayout)
}

func StringToTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// normalize drops everything the layout cannot represent.
func normalize(t time.Time) time.Time {
	return t.Truncate(time.Millisecond).Local()
}
