package scrubber

// Host is the widget that owns the scrubbed value and its geometry.
// The controller reads from it on demand and proposes new values through SetValue.
type Host interface {
	Value() float64

	// SetValue stores a proposed value. The host is responsible for clamping it to Range
	SetValue(value float64)

	Range() Range
	TrackRect() Rect

	// ThumbRect returns the thumb's rectangle for the host's current value
	ThumbRect() Rect

	// ValueChanged is the host's value-changed sink (continuously or once per gesture)
	ValueChanged(value float64)
}

// Observer receives scrubbing notifications. Calls are synchronous and made from
// whichever goroutine drives the controller.
type Observer interface {
	SpeedChanged(speed float64)
	ScrubbingStateChanged(scrubbing bool)
}

// ObserverFuncs adapts a pair of optional functions to the Observer interface
type ObserverFuncs struct {
	OnSpeedChanged          func(speed float64)
	OnScrubbingStateChanged func(scrubbing bool)
}

// SpeedChanged calls OnSpeedChanged, if set
func (o ObserverFuncs) SpeedChanged(speed float64) {
	if o.OnSpeedChanged != nil {
		o.OnSpeedChanged(speed)
	}
}

// ScrubbingStateChanged calls OnScrubbingStateChanged, if set
func (o ObserverFuncs) ScrubbingStateChanged(scrubbing bool) {
	if o.OnScrubbingStateChanged != nil {
		o.OnScrubbingStateChanged(scrubbing)
	}
}
