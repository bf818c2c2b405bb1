package database

import "time"

// TimeLayout is the fixed-width UTC text form used for every stored timestamp.
// Fixed width keeps lexicographic order equal to chronological order, which the
// window and cutoff predicates rely on.
const TimeLayout = "2006-01-02 15:04:05.000000"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Values written by SQLite's own
// CURRENT_TIMESTAMP (second precision) are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
}
