package scrubber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpeedZoneTable(t *testing.T) {
	type testCase struct {
		zones       []SpeedZone
		expectedErr error
	}

	testCases := map[string]testCase{
		"defaults": {
			zones: DefaultSpeedZones,
		},
		"single-zone": {
			zones: []SpeedZone{{Threshold: 0, Speed: 1}},
		},
		"empty": {
			zones:       []SpeedZone{},
			expectedErr: ErrEmptySpeedZones,
		},
		"nil": {
			zones:       nil,
			expectedErr: ErrEmptySpeedZones,
		},
		"negative-threshold": {
			zones:       []SpeedZone{{Threshold: -1, Speed: 1}},
			expectedErr: ErrInvalidSpeedZone,
		},
		"zero-speed": {
			zones:       []SpeedZone{{Threshold: 0, Speed: 1}, {Threshold: 10, Speed: 0}},
			expectedErr: ErrInvalidSpeedZone,
		},
		"repeated-threshold": {
			zones:       []SpeedZone{{Threshold: 0, Speed: 1}, {Threshold: 0, Speed: 0.5}},
			expectedErr: ErrInvalidSpeedZone,
		},
		"descending-thresholds": {
			zones:       []SpeedZone{{Threshold: 50, Speed: 1}, {Threshold: 10, Speed: 0.5}},
			expectedErr: ErrInvalidSpeedZone,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			table, err := NewSpeedZoneTable(testCase.zones)

			if testCase.expectedErr != nil {
				assert.ErrorIs(t, err, testCase.expectedErr)
				assert.Nil(t, table)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.zones, table.Zones())
		})
	}
}

func TestSpeedZoneTable_SpeedForVerticalOffset(t *testing.T) {
	table, err := NewSpeedZoneTable(DefaultSpeedZones)
	require.NoError(t, err)

	testCases := map[string]struct {
		offset   float64
		expected float64
	}{
		"on-anchor-row":        {offset: 0, expected: 1.0},
		"inside-first-zone":    {offset: 49.9, expected: 1.0},
		"on-second-threshold":  {offset: 50, expected: 0.5},
		"inside-third-zone":    {offset: 120, expected: 0.25},
		"inside-fourth-zone":   {offset: 160, expected: 0.1},
		"on-last-threshold":    {offset: 250, expected: 0.001},
		"past-every-threshold": {offset: 10000, expected: 0.001},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, testCase.expected, table.SpeedForVerticalOffset(testCase.offset))
		})
	}
}

func TestSpeedZoneTable_BelowFirstThreshold(t *testing.T) {
	table, err := NewSpeedZoneTable([]SpeedZone{{Threshold: 20, Speed: 0.8}, {Threshold: 40, Speed: 0.2}})
	require.NoError(t, err)

	assert.Equal(t, 0.8, table.SpeedForVerticalOffset(0))
	assert.Equal(t, 0.8, table.SpeedForVerticalOffset(19))
	assert.Equal(t, 0.2, table.SpeedForVerticalOffset(41))
}

func TestSpeedZoneTable_Monotonic(t *testing.T) {
	table, err := NewSpeedZoneTable(DefaultSpeedZones)
	require.NoError(t, err)

	previous := table.SpeedForVerticalOffset(0)
	for offset := 0.5; offset <= 400; offset += 0.5 {
		speed := table.SpeedForVerticalOffset(offset)
		assert.LessOrEqual(t, speed, previous, "offset %v", offset)

		previous = speed
	}
}

func TestSpeedZoneTable_IsolatedFromCaller(t *testing.T) {
	zones := []SpeedZone{{Threshold: 0, Speed: 1}, {Threshold: 10, Speed: 0.5}}

	table, err := NewSpeedZoneTable(zones)
	require.NoError(t, err)

	zones[1].Speed = 0.01
	assert.Equal(t, 0.5, table.SpeedForVerticalOffset(15))
}
