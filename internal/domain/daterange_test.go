package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateRange_ContainsFullEndDay(t *testing.T) {
	r := DateRange{Start: "2024-03-01", End: "2024-03-31"}

	assert.True(t, r.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))
}

func TestDateRange_ContainsUsesUTCDays(t *testing.T) {
	r := DateRange{Start: "2024-03-01", End: "2024-03-31"}
	est := time.FixedZone("EST", -5*3600)

	// 2024-04-01 03:30 UTC, the same instant written with two offsets
	local := time.Date(2024, 3, 31, 22, 30, 0, 0, est)
	utc := local.UTC()
	assert.False(t, r.Contains(local))
	assert.Equal(t, r.Contains(utc), r.Contains(local))

	// 2024-03-01 02:00 UTC is inside even though it is still February in EST
	assert.True(t, r.Contains(time.Date(2024, 2, 29, 21, 0, 0, 0, est)))
}

func TestDateRange_OpenBounds(t *testing.T) {
	ts := time.Date(1999, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, DateRange{}.Contains(ts))
	assert.True(t, DateRange{End: "1999-01-01"}.Contains(ts))
	assert.False(t, DateRange{Start: "1999-01-02"}.Contains(ts))
}

func TestDateRange_Validate(t *testing.T) {
	assert.NoError(t, DateRange{Start: "2024-01-01", End: "2024-01-01"}.Validate())
	assert.NoError(t, DateRange{}.Validate())

	err := DateRange{Start: "2024-02-01", End: "2024-01-01"}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))

	err = DateRange{Start: "01/02/2024"}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDateRange_Label(t *testing.T) {
	assert.Equal(t, "All", DateRange{}.Label())
	assert.Equal(t, "2024-01-01 to 2024-01-31", DateRange{Start: "2024-01-01", End: "2024-01-31"}.Label())
	assert.Equal(t, "... to 2024-01-31", DateRange{End: "2024-01-31"}.Label())
}
