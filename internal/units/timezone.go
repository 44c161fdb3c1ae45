package units

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone lookups work without a system zoneinfo
)

// IsTimezoneValid reports whether tz names a zone in the system tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime converts a stored UTC time into the named zone for display.
// An empty zone means local time.
func ConvertTime(utcTime time.Time, tz string) (time.Time, error) {
	switch tz {
	case "UTC":
		return utcTime.UTC(), nil
	case "":
		return utcTime.Local(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return utcTime.In(loc), nil
}
