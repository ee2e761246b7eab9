package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	h, m, err = ParseClock("19:30:00")
	require.NoError(t, err)
	assert.Equal(t, 19, h)
	assert.Equal(t, 30, m)

	h, _, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 0, h)

	for _, bad := range []string{"", "7", "25:00", "10:61", "ab:cd", "1:2:3:4"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockLabel(t *testing.T) {
	assert.Equal(t, "07:30 PM", ClockLabel("19:30"))
	assert.Equal(t, "12:00 AM", ClockLabel("24:00:00"))
	assert.Equal(t, "garbage", ClockLabel("garbage"))
}

func TestUserDisplayNameAndLocation(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace", Timezone: "Europe/London"}
	assert.Equal(t, "Ada Lovelace", u.DisplayName())
	assert.Equal(t, "Europe/London", u.Location().String())

	u = &User{FirstName: "Ada"}
	assert.Equal(t, "Ada", u.DisplayName())
	assert.Equal(t, "UTC", u.Location().String())

	u = &User{Timezone: "Mars/Olympus"}
	assert.Equal(t, "there", u.DisplayName())
	assert.Equal(t, "UTC", u.Location().String())
}
