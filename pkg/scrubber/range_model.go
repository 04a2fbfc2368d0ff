package scrubber

import (
	"fmt"
	"sync"
)

// RangeModel is an in-memory Host: a clamped value store with a horizontal track
// and a square thumb that slides along it
type RangeModel struct {
	valueRange Range
	value      float64
	track      Rect
	thumbSize  float64

	onValueChanged func(value float64)

	lock sync.Locker
}

// NewRangeModel creates a model whose value starts at the range's minimum
func NewRangeModel(valueRange Range, track Rect, thumbSize float64) (*RangeModel, error) {
	if err := valueRange.Validate(); err != nil {
		return nil, fmt.Errorf("create range model: %w", err)
	}

	if thumbSize < 0 || track.Size.Width < 0 || track.Size.Height < 0 {
		return nil, fmt.Errorf("create range model: negative geometry (track %v, thumb %v)", track, thumbSize)
	}

	return &RangeModel{
		valueRange: valueRange,
		value:      valueRange.Minimum,
		track:      track,
		thumbSize:  thumbSize,
		lock:       &sync.Mutex{},
	}, nil
}

// OnValueChanged sets the function receiving value-changed notifications
func (m *RangeModel) OnValueChanged(f func(value float64)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onValueChanged = f
}

// Value returns the current value
func (m *RangeModel) Value() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.value
}

// SetValue stores value, clamped to the model's range
func (m *RangeModel) SetValue(value float64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.value = m.valueRange.Clamp(value)
}

// Range returns the model's bounds
func (m *RangeModel) Range() Range {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.valueRange
}

// SetRange replaces the model's bounds, re-clamping the current value
func (m *RangeModel) SetRange(valueRange Range) error {
	if err := valueRange.Validate(); err != nil {
		return fmt.Errorf("set model range: %w", err)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.valueRange = valueRange
	m.value = valueRange.Clamp(m.value)

	return nil
}

// TrackRect returns the track's rectangle
func (m *RangeModel) TrackRect() Rect {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.track
}

// SetGeometry replaces the track and the thumb's size. The value is left untouched
func (m *RangeModel) SetGeometry(track Rect, thumbSize float64) error {
	if thumbSize < 0 || track.Size.Width < 0 || track.Size.Height < 0 {
		return fmt.Errorf("set model geometry: negative geometry (track %v, thumb %v)", track, thumbSize)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.track = track
	m.thumbSize = thumbSize

	return nil
}

// ThumbRect returns the thumb's rectangle for the current value. The thumb never
// leaves the track, so its center travels between half a thumb from either edge.
func (m *RangeModel) ThumbRect() Rect {
	m.lock.Lock()
	defer m.lock.Unlock()

	fraction := (m.value - m.valueRange.Minimum) / m.valueRange.Interval()
	travel := m.track.Size.Width - m.thumbSize
	if travel < 0 {
		travel = 0
	}

	centerX := m.track.Origin.X + m.thumbSize/2 + fraction*travel
	centerY := m.track.Center().Y

	return NewRect(centerX-m.thumbSize/2, centerY-m.thumbSize/2, m.thumbSize, m.thumbSize)
}

// ValueChanged forwards the notification to the registered function, if any
func (m *RangeModel) ValueChanged(value float64) {
	m.lock.Lock()
	f := m.onValueChanged
	m.lock.Unlock()

	if f != nil {
		f(value)
	}
}

func (m *RangeModel) String() string {
	return fmt.Sprintf("<range model %v value=%v>", m.Range(), m.Value())
}
