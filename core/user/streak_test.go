package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestNextStreak(t *testing.T) {
	day := func(d int, hour int) time.Time { return time.Date(2024, time.March, d, hour, 30, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		streak     int
		last       null.Time
		at         time.Time
		wantStreak int
	}{
		{name: "first study day", at: day(10, 18), wantStreak: 1},
		{name: "same day", streak: 4, last: null.TimeFrom(day(10, 0)), at: day(10, 23), wantStreak: 4},
		{name: "next day", streak: 4, last: null.TimeFrom(day(10, 0)), at: day(11, 0), wantStreak: 5},
		{name: "gap restarts", streak: 4, last: null.TimeFrom(day(10, 0)), at: day(13, 9), wantStreak: 1},
		{name: "clock went back", streak: 2, last: null.TimeFrom(day(10, 0)), at: day(9, 12), wantStreak: 2},
		{
			name: "local midnight is converted to UTC", streak: 1, last: null.TimeFrom(day(10, 0)),
			at: time.Date(2024, time.March, 11, 1, 0, 0, 0, time.FixedZone("CAT", 2*3600)), wantStreak: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStreak(StudentProfile{CurrentStreak: tt.streak, LastStudyDate: tt.last}, tt.at)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.True(t, got.LastStudyDate.Valid)
		})
	}

	got := NextStreak(StudentProfile{}, day(10, 18))
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), got.LastStudyDate.Time)
}
