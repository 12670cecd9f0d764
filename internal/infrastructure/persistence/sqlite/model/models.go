package model

import "time"

// TimeLayout is fixed width so that stored timestamps sort as text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(value string) (time.Time, error) {
	return time.Parse(TimeLayout, value)
}

// All lists every table of the schema in creation order.
func All() []any {
	return []any{
		&Commission{},
		&RaptorSite{},
		&Hardware{},
		&TelemetryData{},
		&FirmwareStatus{},
		&TelemetryConfiguration{},
		&MetaKV{},
	}
}
