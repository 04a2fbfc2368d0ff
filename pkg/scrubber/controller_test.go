package scrubber

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// anchorY is the vertical center of the test track, so every gesture anchors on this row
const anchorY = 100.0

type recordingObserver struct {
	speeds []float64
	states []bool
}

func (o *recordingObserver) SpeedChanged(speed float64) {
	o.speeds = append(o.speeds, speed)
}

func (o *recordingObserver) ScrubbingStateChanged(scrubbing bool) {
	o.states = append(o.states, scrubbing)
}

type testRig struct {
	model      *RangeModel
	controller *ScrubController
	observer   *recordingObserver
	reported   []float64
}

// newTestRig builds a [0, 36000] range over a 300px track whose thumb has no size,
// so the thumb's center is exactly at the value's position on the track
func newTestRig(t *testing.T, value float64, options ControllerOptions) *testRig {
	t.Helper()

	model, err := NewRangeModel(Range{Minimum: 0, Maximum: 36000}, NewRect(0, anchorY-5, 300, 10), 0)
	require.NoError(t, err)
	model.SetValue(value)

	if options.SpeedZones == nil {
		options.SpeedZones, err = NewSpeedZoneTable(DefaultSpeedZones)
		require.NoError(t, err)
	}

	if options.ThumbTouchPadding == (Size{}) {
		options.ThumbTouchPadding = Size{Width: 50, Height: 50}
	}

	controller, err := NewScrubController(model, options, zap.NewNop().Sugar())
	require.NoError(t, err)

	rig := &testRig{
		model:      model,
		controller: controller,
		observer:   &recordingObserver{},
	}

	controller.SetObserver(rig.observer)
	model.OnValueChanged(func(value float64) {
		rig.reported = append(rig.reported, value)
	})

	return rig
}

// begin starts a gesture right on top of the thumb
func (r *testRig) begin(t *testing.T) Point {
	t.Helper()

	start := r.model.ThumbRect().Center()
	require.True(t, r.controller.Begin(start))

	return start
}

// drag feeds consecutive samples to the controller, returning the last one
func (r *testRig) drag(from Point, samples ...Point) Point {
	previous := from
	for _, sample := range samples {
		r.controller.ContinueTracking(previous, sample)
		previous = sample
	}

	return previous
}

func TestScrubController_BeginEndWithoutMoves(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})

	rig.begin(t)
	assert.True(t, rig.controller.Tracking())

	rig.controller.End()
	assert.False(t, rig.controller.Tracking())

	assert.Equal(t, []bool{true, false}, rig.observer.states)
	assert.Empty(t, rig.observer.speeds)
	assert.Equal(t, []float64{1000}, rig.reported)
}

func TestScrubController_HorizontalDragAtFullSpeed(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	rig.begin(t)

	rig.drag(Point{X: 10, Y: anchorY}, Point{X: 40, Y: anchorY})

	assert.InDelta(t, 4600, rig.model.Value(), 1e-9)
	assert.Equal(t, NormalSpeed, rig.controller.Speed())
	assert.Empty(t, rig.observer.speeds)
}

func TestScrubController_HorizontalDragInSlowZone(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	rig.begin(t)

	rig.drag(Point{X: 10, Y: anchorY + 120}, Point{X: 40, Y: anchorY + 120})

	assert.InDelta(t, 1900, rig.model.Value(), 1e-9)
	assert.Equal(t, []float64{0.25}, rig.observer.speeds)
}

func TestScrubController_AccumulationIsLinear(t *testing.T) {
	oneStep := newTestRig(t, 1000, ControllerOptions{})
	oneStep.begin(t)
	oneStep.drag(Point{X: 10, Y: anchorY}, Point{X: 130, Y: anchorY})

	manySteps := newTestRig(t, 1000, ControllerOptions{})
	manySteps.begin(t)

	samples := []Point{}
	for x := 10.5; x <= 130; x += 0.5 {
		samples = append(samples, Point{X: x, Y: anchorY})
	}
	manySteps.drag(Point{X: 10, Y: anchorY}, samples...)

	expected := 1000 + 36000*120.0/300
	assert.InDelta(t, expected, oneStep.model.Value(), 1e-6)
	assert.InDelta(t, expected, manySteps.model.Value(), 1e-6)
}

func TestScrubController_ReturningToAnchorConverges(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	rig.begin(t)

	last := rig.drag(Point{X: 10, Y: anchorY}, Point{X: 20, Y: anchorY + 160})
	assert.InDelta(t, 1120, rig.model.Value(), 1e-9)

	// head back to the anchor row while still dragging right
	previousValue := rig.model.Value()
	for _, sample := range []Point{
		{X: 30, Y: anchorY + 120},
		{X: 40, Y: anchorY + 80},
		{X: 50, Y: anchorY + 40},
		{X: 60, Y: anchorY},
	} {
		last = rig.drag(last, sample)

		assert.GreaterOrEqual(t, rig.model.Value(), previousValue)
		assert.GreaterOrEqual(t, rig.model.Value(), 1120.0)
		previousValue = rig.model.Value()
	}

	// without catching up, the zone-scaled increments alone would only reach this far
	withoutCorrection := 1120.0 + 300 + 600 + 1200 + 1200
	assert.Greater(t, rig.model.Value(), withoutCorrection)

	assert.Equal(t, []float64{0.1, 0.25, 0.5, 1.0}, rig.observer.speeds)
}

func TestScrubController_DirectionLockBlocksReversal(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	rig.begin(t)

	// move down into the 0.1 zone, then drag left: the real position runs far ahead
	last := rig.drag(Point{X: 10, Y: anchorY}, Point{X: 10, Y: anchorY + 160}, Point{X: -20, Y: anchorY + 160})
	assert.InDelta(t, 640, rig.model.Value(), 1e-9)

	// a tiny step right while heading back: catching up would pull the value down
	rig.drag(last, Point{X: -19, Y: anchorY + 100})
	assert.InDelta(t, 640, rig.model.Value(), 1e-9)
}

func TestScrubController_DirectionLockProperty(t *testing.T) {
	rig := newTestRig(t, 18000, ControllerOptions{})
	rig.begin(t)

	random := rand.New(rand.NewSource(42))
	previous := Point{X: 150, Y: anchorY}

	for i := 0; i < 2000; i++ {
		current := Point{
			X: previous.X + random.Float64()*20 - 10,
			Y: anchorY + random.Float64()*600 - 300,
		}

		before := rig.model.Value()
		rig.controller.ContinueTracking(previous, current)
		after := rig.model.Value()

		switch {
		case current.X > previous.X:
			assert.GreaterOrEqual(t, after, before, "sample %d moved right", i)
		case current.X < previous.X:
			assert.LessOrEqual(t, after, before, "sample %d moved left", i)
		default:
			assert.Equal(t, before, after, "sample %d stood still", i)
		}

		previous = current
	}
}

func TestScrubController_ClampsToRange(t *testing.T) {
	rig := newTestRig(t, 35000, ControllerOptions{})
	rig.begin(t)

	rig.drag(Point{X: 10, Y: anchorY}, Point{X: 300, Y: anchorY})
	assert.Equal(t, 36000.0, rig.model.Value())

	rig.drag(Point{X: 300, Y: anchorY}, Point{X: -300, Y: anchorY})
	assert.Equal(t, 0.0, rig.model.Value())
}

func TestScrubController_TapToSeek(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{TapToSeek: true})

	assert.True(t, rig.controller.Begin(Point{X: 150, Y: anchorY}))
	assert.InDelta(t, 18000, rig.model.Value(), 1e-9)
	assert.Equal(t, []float64{18000}, rig.reported)
	assert.Equal(t, []bool{true}, rig.observer.states)

	// the gesture anchors on the thumb's new location
	rig.drag(Point{X: 150, Y: anchorY}, Point{X: 180, Y: anchorY})
	assert.InDelta(t, 21600, rig.model.Value(), 1e-9)
}

func TestScrubController_TapToSeekOnOffsetTrack(t *testing.T) {
	model, err := NewRangeModel(Range{Minimum: 0, Maximum: 36000}, NewRect(100, 0, 300, 10), 0)
	require.NoError(t, err)

	zones, err := NewSpeedZoneTable(DefaultSpeedZones)
	require.NoError(t, err)

	controller, err := NewScrubController(model, ControllerOptions{
		SpeedZones:        zones,
		TapToSeek:         true,
		ThumbTouchPadding: Size{Width: 50, Height: 50},
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	testCases := map[string]struct {
		x        float64
		expected float64
	}{
		"track-middle":    {x: 250, expected: 18000},
		"usable-start":    {x: 125, expected: 0},
		"usable-end":      {x: 375, expected: 36000},
		"left-of-track":   {x: 60, expected: 0},
		"right-of-track":  {x: 440, expected: 36000},
		"quarter-of-span": {x: 187.5, expected: 9000},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			require.True(t, controller.PointInside(Point{X: testCase.x, Y: 5}))

			assert.True(t, controller.Begin(Point{X: testCase.x, Y: 5}))
			assert.InDelta(t, testCase.expected, model.Value(), 1e-9)

			controller.End()
		})
	}
}

func TestScrubController_TapToSeekDuringSession(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{TapToSeek: true})
	rig.begin(t)

	assert.True(t, rig.controller.Begin(Point{X: 150, Y: anchorY}))
	assert.InDelta(t, 18000, rig.model.Value(), 1e-9)
	assert.Equal(t, []bool{true, false, true}, rig.observer.states)
}

func TestScrubController_BeginAwayFromThumb(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})

	// the thumb sits at x ~ 8.3, with a 50px band on each side
	assert.False(t, rig.controller.Begin(Point{X: 200, Y: anchorY}))
	assert.False(t, rig.controller.Tracking())
	assert.Empty(t, rig.observer.states)
	assert.Empty(t, rig.reported)
	assert.Equal(t, 1000.0, rig.model.Value())

	assert.True(t, rig.controller.Begin(Point{X: 58, Y: anchorY + 40}))
}

func TestScrubController_IdleCallsAreNoOps(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})

	assert.False(t, rig.controller.ContinueTracking(Point{X: 10, Y: anchorY}, Point{X: 100, Y: anchorY}))
	rig.controller.End()
	rig.controller.Cancel()

	assert.Equal(t, 1000.0, rig.model.Value())
	assert.Empty(t, rig.observer.states)
	assert.Empty(t, rig.observer.speeds)
	assert.Empty(t, rig.reported)
}

func TestScrubController_ReentrantBeginEndsPreviousGesture(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	start := rig.begin(t)
	rig.drag(start, Point{X: start.X, Y: anchorY + 120})

	assert.True(t, rig.controller.Begin(rig.model.ThumbRect().Center()))

	assert.Equal(t, []bool{true, false, true}, rig.observer.states)
	assert.Equal(t, []float64{0.25, 1.0}, rig.observer.speeds)
	assert.Equal(t, NormalSpeed, rig.controller.Speed())
}

func TestScrubController_EndResetsSpeed(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	start := rig.begin(t)
	rig.drag(start, Point{X: start.X + 5, Y: anchorY + 210})

	rig.controller.Cancel()

	assert.Equal(t, NormalSpeed, rig.controller.Speed())
	assert.Equal(t, []float64{0.01, 1.0}, rig.observer.speeds)
	assert.Equal(t, []bool{true, false}, rig.observer.states)
}

func TestScrubController_SpeedChangesOnlyOnZoneTransitions(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	start := rig.begin(t)

	rig.drag(start,
		Point{X: start.X + 1, Y: anchorY + 60},
		Point{X: start.X + 2, Y: anchorY + 70},
		Point{X: start.X + 3, Y: anchorY - 80},
		Point{X: start.X + 4, Y: anchorY - 110},
		Point{X: start.X + 5, Y: anchorY - 105},
	)

	assert.Equal(t, []float64{0.5, 0.25}, rig.observer.speeds)
}

func TestScrubController_ContinuousReporting(t *testing.T) {
	deferred := newTestRig(t, 1000, ControllerOptions{})
	start := deferred.begin(t)
	deferred.drag(start, Point{X: start.X + 3, Y: anchorY}, Point{X: start.X + 6, Y: anchorY})
	assert.Empty(t, deferred.reported)

	deferred.controller.End()
	assert.Len(t, deferred.reported, 1)

	continuous := newTestRig(t, 1000, ControllerOptions{Continuous: true})
	start = continuous.begin(t)
	continuous.drag(start, Point{X: start.X + 3, Y: anchorY}, Point{X: start.X + 6, Y: anchorY})
	assert.Len(t, continuous.reported, 2)
	assert.InDelta(t, 1360, continuous.reported[0], 1e-9)
	assert.InDelta(t, 1720, continuous.reported[1], 1e-9)
}

func TestScrubController_ZeroWidthTrack(t *testing.T) {
	model, err := NewRangeModel(Range{Minimum: 0, Maximum: 100}, NewRect(0, anchorY, 0, 0), 0)
	require.NoError(t, err)
	model.SetValue(50)

	zones, err := NewSpeedZoneTable(DefaultSpeedZones)
	require.NoError(t, err)

	controller, err := NewScrubController(model, ControllerOptions{
		SpeedZones:        zones,
		ThumbTouchPadding: Size{Width: 50, Height: 50},
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	require.True(t, controller.Begin(Point{X: 0, Y: anchorY}))
	assert.True(t, controller.ContinueTracking(Point{X: 0, Y: anchorY + 200}, Point{X: 40, Y: anchorY + 100}))
	assert.Equal(t, 50.0, model.Value())
}

func TestScrubController_ReconfigureDeferredWhileTracking(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	start := rig.begin(t)

	halfSpeed, err := NewSpeedZoneTable([]SpeedZone{{Threshold: 0, Speed: 0.5}})
	require.NoError(t, err)

	require.NoError(t, rig.controller.Reconfigure(ControllerOptions{SpeedZones: halfSpeed}))

	// still the old zones until the gesture ends
	rig.drag(start, Point{X: start.X + 30, Y: anchorY})
	assert.InDelta(t, 4600, rig.model.Value(), 1e-9)

	rig.controller.End()
	assert.Same(t, halfSpeed, rig.controller.Options().SpeedZones)

	assert.Error(t, rig.controller.Reconfigure(ControllerOptions{}))
}

func TestScrubController_RemoveObserver(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})
	rig.controller.RemoveObserver()

	start := rig.begin(t)
	rig.drag(start, Point{X: start.X + 1, Y: anchorY + 300})
	rig.controller.End()

	assert.Empty(t, rig.observer.states)
	assert.Empty(t, rig.observer.speeds)
}

func TestScrubController_PointInside(t *testing.T) {
	rig := newTestRig(t, 1000, ControllerOptions{})

	assert.True(t, rig.controller.PointInside(Point{X: 150, Y: anchorY}))
	assert.True(t, rig.controller.PointInside(Point{X: -50, Y: anchorY + 55}))
	assert.False(t, rig.controller.PointInside(Point{X: -51, Y: anchorY}))
	assert.False(t, rig.controller.PointInside(Point{X: 150, Y: anchorY + 56}))
}

func TestNewScrubController_InvalidOptions(t *testing.T) {
	model, err := NewRangeModel(Range{Minimum: 0, Maximum: 1}, NewRect(0, 0, 100, 10), 10)
	require.NoError(t, err)

	zones, err := NewSpeedZoneTable(DefaultSpeedZones)
	require.NoError(t, err)

	_, err = NewScrubController(model, ControllerOptions{}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrEmptySpeedZones)

	_, err = NewScrubController(model, ControllerOptions{
		SpeedZones:        zones,
		ThumbTouchPadding: Size{Width: -1},
	}, zap.NewNop().Sugar())
	assert.Error(t, err)

	broken := &RangeModel{valueRange: Range{Minimum: 5, Maximum: 5}, lock: &sync.Mutex{}}
	_, err = NewScrubController(broken, ControllerOptions{SpeedZones: zones}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrInvalidRange)
}
