package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)

	from, err := ParseRangeStart("2026-03-07", loc)
	require.NoError(t, err)
	to, err := ParseRangeEnd("2026-03-07", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, loc), *from)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, loc), *to, "date-only end covers the whole day")
	assert.True(t, from.Before(*to))

	to, err = ParseRangeEnd("2026-03-07T15:04:05Z", loc)
	require.NoError(t, err)
	assert.True(t, to.Equal(time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC)))

	to, err = ParseRangeEnd("", loc)
	require.NoError(t, err)
	assert.Nil(t, to)

	_, err = ParseRangeStart("yesterday", loc)
	assert.Error(t, err)
	_, err = ParseRangeEnd("2026-13-01", loc)
	assert.Error(t, err)
}
