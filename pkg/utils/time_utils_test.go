package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimePtr_TruncatesToMillis(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)
	ptr := TimePtr(now)

	assert.Equal(t, 123000000, ptr.Nanosecond())
	assert.Equal(t, now.Unix(), ptr.Unix())
}

func TestTimePtr_ReturnsCopy(t *testing.T) {
	now := time.Now()
	a, b := TimePtr(now), TimePtr(now)

	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(*b))
}
