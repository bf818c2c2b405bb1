package model

import (
	"fmt"
	"strings"
	"time"
)

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// FlexTime accepts RFC 3339 as well as the zone-less "YYYY-MM-DD HH:MM:SS"
// form emitted by the macro engine. Zone-less values are read as local time.
type FlexTime time.Time

func (f *FlexTime) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	for _, layout := range flexTimeLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			*f = FlexTime(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (f FlexTime) MarshalText() ([]byte, error) {
	return []byte(time.Time(f).Format(time.RFC3339Nano)), nil
}

func (f FlexTime) Time() time.Time {
	return time.Time(f)
}
