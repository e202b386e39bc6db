package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_End(t *testing.T) {
	cal := NewCalendar(time.UTC, 23)

	tests := []struct {
		name string
		key  string
		want time.Time
	}{
		{name: "31-day month", key: "2024-01", want: time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)},
		{name: "leap february", key: "2024-02", want: time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)},
		{name: "plain february", key: "2023-02", want: time.Date(2023, 2, 28, 23, 0, 0, 0, time.UTC)},
		{name: "december", key: "2024-12", want: time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.End(tt.key)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := cal.End("not-a-key")
	assert.Error(t, err)
}

func TestCalendar_KeyAt(t *testing.T) {
	cal := NewCalendar(time.UTC, 23)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "middle of month", at: time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC), want: "2024-10"},
		{name: "last day before cutoff", at: time.Date(2024, 10, 31, 22, 59, 59, 0, time.UTC), want: "2024-10"},
		{name: "exactly at cutoff", at: time.Date(2024, 10, 31, 23, 0, 0, 0, time.UTC), want: "2024-11"},
		{name: "after cutoff in december", at: time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC), want: "2025-01"},
		{name: "first day of month", at: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), want: "2024-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.KeyAt(tt.at))
		})
	}
}

func TestCalendar_KeyAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	cal := NewCalendar(loc, 23)

	// 2024-10-31 17:30 UTC = 23:00 IST, цикл октября уже закрывается
	at := time.Date(2024, 10, 31, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-11", cal.KeyAt(at))
	assert.Equal(t, "2024-10", cal.KeyAt(at.Add(-time.Second)))
}

func TestNextPrev(t *testing.T) {
	assert.Equal(t, "2025-01", Next("2024-12"))
	assert.Equal(t, "2024-12", Prev("2025-01"))
	assert.Equal(t, "2024-03", Next("2024-02"))
	assert.Equal(t, "bad", Next("bad"))
	assert.True(t, Valid("2024-10"))
	assert.False(t, Valid("2024-13"))
}
