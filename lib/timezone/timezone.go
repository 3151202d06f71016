package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Berlin because the agent often runs on CI
// machines pinned to UTC or US timezones, which would shift the
// day-over-day baseline away from the shop's local day
func Now() time.Time {
	return time.Now().In(Location)
}

// DayKey is the date key under which a run is recorded in history.
func DayKey(t time.Time) string {
	return t.In(Location).Format("2006-01-02")
}
