package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

func TestWinRateEmpty(t *testing.T) {
	assert.Nil(t, WinRate(nil))
	assert.Nil(t, AvgPositionSize(nil))
}

func TestWinRateBounds(t *testing.T) {
	cases := []struct {
		name      string
		positions []domain.Position
		want      float64
	}{
		{"all losing", []domain.Position{{RealizedPnL: -1}, {UnrealizedPnL: -0.5}}, 0},
		{"all winning", []domain.Position{{RealizedPnL: 1}, {UnrealizedPnL: 0.5}}, 100},
		{"break even is not a win", []domain.Position{{RealizedPnL: 1, UnrealizedPnL: -1}, {RealizedPnL: 3}}, 50},
		{"one of three", []domain.Position{{RealizedPnL: 2}, {}, {UnrealizedPnL: -2}}, 100.0 / 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WinRate(tc.positions)
			require.NotNil(t, got)
			assert.InDelta(t, tc.want, *got, 1e-9)
			assert.GreaterOrEqual(t, *got, 0.0)
			assert.LessOrEqual(t, *got, 100.0)
		})
	}
}

func TestAvgPositionSizeIsExactMean(t *testing.T) {
	positions := []domain.Position{{InitialValue: 1.5}, {InitialValue: 2.5}, {InitialValue: 11}}
	got := AvgPositionSize(positions)
	require.NotNil(t, got)
	assert.Equal(t, (1.5+2.5+11)/3, *got)
}
