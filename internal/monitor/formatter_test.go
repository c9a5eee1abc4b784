package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0m", FormatUptime(30))
	assert.Equal(t, "5m", FormatUptime(330))
	assert.Equal(t, "1h 2m", FormatUptime(3725))
	assert.Equal(t, "25h 0m", FormatUptime(90000))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "0.0%", FormatPercentage(0))
	assert.Equal(t, "62.5%", FormatPercentage(0.625))
	assert.Equal(t, "100.0%", FormatPercentage(1))
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.873", FormatScore(0.8734))
	assert.Equal(t, "1.000", FormatScore(1))
}

func TestRatio(t *testing.T) {
	assert.Zero(t, Ratio(3, 0))
	assert.InDelta(t, 0.75, Ratio(3, 4), 1e-9)
}
