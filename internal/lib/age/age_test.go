package age

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYears(t *testing.T) {
	tests := []struct {
		name  string
		dob   time.Time
		today time.Time
		want  int
	}{
		{
			name:  "birthday not reached yet",
			dob:   date(2003, time.December, 31),
			today: date(2025, time.June, 1),
			want:  21,
		},
		{
			name:  "day after last birthday",
			dob:   date(2003, time.December, 31),
			today: date(2026, time.January, 1),
			want:  22,
		},
		{
			name:  "exactly on birthday",
			dob:   date(2000, time.March, 15),
			today: date(2022, time.March, 15),
			want:  22,
		},
		{
			name:  "day before birthday in same month",
			dob:   date(2000, time.March, 15),
			today: date(2022, time.March, 14),
			want:  21,
		},
		{
			name:  "leap day birthday in non-leap year",
			dob:   date(2000, time.February, 29),
			today: date(2022, time.March, 1),
			want:  22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Years(tt.dob, tt.today))
		})
	}
}

func TestAtLeast(t *testing.T) {
	dob := date(2003, time.December, 31)

	assert.False(t, AtLeast(dob, date(2025, time.June, 1), 22))
	assert.True(t, AtLeast(dob, date(2026, time.January, 1), 22))
}
