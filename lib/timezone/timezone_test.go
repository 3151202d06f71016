package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDayKey(t *testing.T) {
	utc, err := time.LoadLocation("UTC")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		now    time.Time
		expect string
	}{
		{
			now:    time.Date(2024, time.March, 14, 12, 0, 0, 0, utc),
			expect: "2024-03-14",
		},
		{
			// 23:30 UTC is already the next day in Berlin
			now:    time.Date(2024, time.March, 14, 23, 30, 0, 0, utc),
			expect: "2024-03-15",
		},
		{
			// winter time, 23:30 UTC is 00:30 CET
			now:    time.Date(2024, time.December, 31, 23, 30, 0, 0, utc),
			expect: "2025-01-01",
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expect, DayKey(test.now))
	}
}
