package scrubber

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmptySpeedZones is returned when a speed zone table has no entries
	ErrEmptySpeedZones = errors.New("speed zone table is empty")

	// ErrInvalidSpeedZone is returned for a zone with a negative threshold, a non-positive
	// speed, or a threshold that doesn't increase over its predecessor
	ErrInvalidSpeedZone = errors.New("invalid speed zone")
)

// NormalSpeed is the full scrubbing speed, used whenever no gesture is active
const NormalSpeed = 1.0

// SpeedZone maps a vertical distance from the gesture's anchor row to a scrubbing speed
type SpeedZone struct {
	Threshold float64
	Speed     float64
}

// SpeedZoneTable is an immutable, ordered set of speed zones. Thresholds are strictly increasing.
type SpeedZoneTable struct {
	zones []SpeedZone
}

// DefaultSpeedZones are the zones used when the configuration doesn't provide any
var DefaultSpeedZones = []SpeedZone{
	{Threshold: 0, Speed: 1.0},
	{Threshold: 50, Speed: 0.5},
	{Threshold: 100, Speed: 0.25},
	{Threshold: 150, Speed: 0.1},
	{Threshold: 200, Speed: 0.01},
	{Threshold: 250, Speed: 0.001},
}

// NewSpeedZoneTable validates the given zones and creates a table out of them
func NewSpeedZoneTable(zones []SpeedZone) (*SpeedZoneTable, error) {
	if len(zones) == 0 {
		return nil, ErrEmptySpeedZones
	}

	for idx, zone := range zones {
		if math.IsNaN(zone.Threshold) || zone.Threshold < 0 {
			return nil, fmt.Errorf("zone %d threshold %v is negative: %w", idx, zone.Threshold, ErrInvalidSpeedZone)
		}

		if math.IsNaN(zone.Speed) || zone.Speed <= 0 {
			return nil, fmt.Errorf("zone %d speed %v is not positive: %w", idx, zone.Speed, ErrInvalidSpeedZone)
		}

		if idx > 0 && zone.Threshold <= zones[idx-1].Threshold {
			return nil, fmt.Errorf("zone %d threshold %v doesn't increase over %v: %w",
				idx, zone.Threshold, zones[idx-1].Threshold, ErrInvalidSpeedZone)
		}
	}

	// copy, so the caller can't mutate the table mid-gesture
	owned := make([]SpeedZone, len(zones))
	copy(owned, zones)

	return &SpeedZoneTable{zones: owned}, nil
}

// SpeedForVerticalOffset returns the speed of the last zone whose threshold doesn't exceed the offset.
// Offsets below the first threshold resolve to the first zone.
func (t *SpeedZoneTable) SpeedForVerticalOffset(offset float64) float64 {

	// find the first zone that starts past our offset - the one before it is ours
	idx := len(t.zones)
	for zoneIdx, zone := range t.zones {
		if offset < zone.Threshold {
			idx = zoneIdx
			break
		}
	}

	if idx == 0 {
		return t.zones[0].Speed
	}

	return t.zones[idx-1].Speed
}

// Zones returns a copy of the table's zones
func (t *SpeedZoneTable) Zones() []SpeedZone {
	zones := make([]SpeedZone, len(t.zones))
	copy(zones, t.zones)

	return zones
}

func (t *SpeedZoneTable) String() string {
	parts := make([]string, 0, len(t.zones))
	for _, zone := range t.zones {
		parts = append(parts, fmt.Sprintf("%v:%v", zone.Threshold, zone.Speed))
	}

	return fmt.Sprintf("<%d speed zones %s>", len(t.zones), strings.Join(parts, " "))
}
