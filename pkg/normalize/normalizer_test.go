package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Method
		wantErr bool
	}{
		{name: "linear", input: "linear", want: MethodLinear},
		{name: "percentile", input: "percentile", want: MethodPercentile},
		{name: "mixed case", input: "Percentile", want: MethodPercentile},
		{name: "padded", input: "  linear  ", want: MethodLinear},
		{name: "unknown", input: "logarithmic", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalibrationValidate(t *testing.T) {
	tests := []struct {
		name    string
		cal     Calibration
		wantErr bool
	}{
		{name: "defaults", cal: DefaultCalibration()},
		{name: "custom", cal: Calibration{Min: 0, Max: 1, Median: 0.4}},
		{name: "median at min", cal: Calibration{Min: 1, Max: 10, Median: 1}},
		{name: "median at max", cal: Calibration{Min: 1, Max: 10, Median: 10}},
		{name: "max equals min", cal: Calibration{Min: 5, Max: 5, Median: 5}, wantErr: true},
		{name: "max below min", cal: Calibration{Min: 10, Max: 5, Median: 7}, wantErr: true},
		{name: "median below range", cal: Calibration{Min: 1, Max: 10, Median: 0.5}, wantErr: true},
		{name: "median above range", cal: Calibration{Min: 1, Max: 10, Median: 11}, wantErr: true},
		{name: "NaN median", cal: Calibration{Min: 1, Max: 10, Median: math.NaN()}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCalibration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLinear(t *testing.T) {
	cal := DefaultCalibration()

	t.Run("endpoints are exact", func(t *testing.T) {
		assert.Equal(t, 0.0, cal.Linear(cal.Min))
		assert.Equal(t, 100.0, cal.Linear(cal.Max))
	})

	t.Run("interior point", func(t *testing.T) {
		assert.InDelta(t, (21.5-0.1)/(45.0-0.1)*100, cal.Linear(21.5), 1e-12)
	})

	t.Run("clamps out-of-range input", func(t *testing.T) {
		assert.Equal(t, 0.0, cal.Linear(-3.0))
		assert.Equal(t, 100.0, cal.Linear(90.0))
	})
}

func TestPercentile(t *testing.T) {
	cal := DefaultCalibration()

	t.Run("median maps to exactly 50", func(t *testing.T) {
		assert.Equal(t, 50.0, cal.Percentile(cal.Median))
	})

	t.Run("lower half scales from median", func(t *testing.T) {
		assert.InDelta(t, 10.0/21.5*50, cal.Percentile(10.0), 1e-12)
	})

	t.Run("upper half midpoint", func(t *testing.T) {
		// 33.25 is exactly halfway between median and max.
		assert.Equal(t, 75.0, cal.Percentile(33.25))
	})

	t.Run("endpoints", func(t *testing.T) {
		assert.InDelta(t, 0.1/21.5*50, cal.Percentile(cal.Min), 1e-12)
		assert.Equal(t, 100.0, cal.Percentile(cal.Max))
	})

	t.Run("clamps out-of-range input", func(t *testing.T) {
		assert.Equal(t, 0.0, cal.Percentile(-1.0))
		assert.Equal(t, 100.0, cal.Percentile(500.0))
	})
}

func TestNormalize(t *testing.T) {
	cal := DefaultCalibration()

	t.Run("rounds to integer domain", func(t *testing.T) {
		got := cal.Normalize(10.0, MethodPercentile)
		assert.Equal(t, 23, got.Score) // 23.255... rounds down
		assert.Equal(t, 10.0, got.RawScore)
		assert.Equal(t, MethodPercentile, got.Method)

		got = cal.Normalize(21.0, MethodPercentile)
		assert.Equal(t, 49, got.Score) // 48.837... rounds up
	})

	t.Run("unknown method falls back to linear", func(t *testing.T) {
		got := cal.Normalize(45.0, Method("bogus"))
		assert.Equal(t, MethodLinear, got.Method)
		assert.Equal(t, 100, got.Score)
	})

	t.Run("score never leaves its range", func(t *testing.T) {
		raws := []float64{math.Inf(-1), -1e9, -1, 0, 0.05, 0.1, 5, 21.5, 30, 45, 46, 1e9, math.Inf(1), math.NaN()}
		for _, raw := range raws {
			for _, method := range []Method{MethodLinear, MethodPercentile} {
				got := cal.Normalize(raw, method)
				assert.GreaterOrEqual(t, got.Score, 0, "raw=%v method=%s", raw, method)
				assert.LessOrEqual(t, got.Score, 100, "raw=%v method=%s", raw, method)
			}
		}
	})

	t.Run("degenerate calibration cannot escape the range", func(t *testing.T) {
		// Validate rejects this range; a hand-built value must still clamp.
		degenerate := Calibration{Min: 1, Max: 1, Median: 1}
		for _, raw := range []float64{0, 1, 2} {
			for _, method := range []Method{MethodLinear, MethodPercentile} {
				got := degenerate.Normalize(raw, method)
				assert.GreaterOrEqual(t, got.Score, 0)
				assert.LessOrEqual(t, got.Score, 100)
			}
		}
	})
}
