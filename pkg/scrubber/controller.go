package scrubber

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ControllerOptions are the host-supplied settings of a ScrubController
type ControllerOptions struct {
	SpeedZones *SpeedZoneTable

	// TapToSeek makes every pointer-down jump the value to the tapped position and start tracking
	TapToSeek bool

	// ThumbTouchPadding enlarges the area considered "on the thumb" beyond its visual bounds
	ThumbTouchPadding Size

	// Continuous reports the value after every move sample instead of only when the gesture ends
	Continuous bool
}

func (o ControllerOptions) validate() error {
	if o.SpeedZones == nil {
		return ErrEmptySpeedZones
	}

	if o.ThumbTouchPadding.Width < 0 || o.ThumbTouchPadding.Height < 0 {
		return errors.New("thumb touch padding can't be negative")
	}

	return nil
}

// ScrubController turns pointer samples into value changes, slowing down the rate of
// change the further the pointer drifts vertically from where the gesture began.
// It is not safe for concurrent use: all calls must come from the goroutine that
// delivers pointer events, in the order they occurred.
type ScrubController struct {
	host     Host
	observer Observer
	logger   *zap.SugaredLogger

	options        ControllerOptions
	pendingOptions *ControllerOptions

	// nil while idle
	session *scrubSession
	speed   float64
}

// NewScrubController creates an idle controller driving the given host
func NewScrubController(host Host, options ControllerOptions, logger *zap.SugaredLogger) (*ScrubController, error) {
	logger = logger.Named("controller")

	if err := options.validate(); err != nil {
		logger.Warnw("Invalid controller options", "error", err)
		return nil, fmt.Errorf("validate controller options: %w", err)
	}

	if err := host.Range().Validate(); err != nil {
		logger.Warnw("Host provided an invalid range", "error", err)
		return nil, fmt.Errorf("validate host range: %w", err)
	}

	c := &ScrubController{
		host:    host,
		logger:  logger,
		options: options,
		speed:   NormalSpeed,
	}

	logger.Debugw("Created controller instance", "speedZones", options.SpeedZones)

	return c, nil
}

// SetObserver registers the controller's single observer, replacing any previous one
func (c *ScrubController) SetObserver(observer Observer) {
	c.observer = observer
}

// RemoveObserver unregisters the current observer
func (c *ScrubController) RemoveObserver() {
	c.observer = nil
}

// Tracking reports whether a gesture is currently active
func (c *ScrubController) Tracking() bool {
	return c.session != nil
}

// Speed returns the current scrubbing speed
func (c *ScrubController) Speed() float64 {
	return c.speed
}

// Options returns the options currently in effect
func (c *ScrubController) Options() ControllerOptions {
	return c.options
}

// Reconfigure swaps the controller's options. Options are immutable during a gesture,
// so if one is active the new options take effect once it ends.
func (c *ScrubController) Reconfigure(options ControllerOptions) error {
	if err := options.validate(); err != nil {
		return fmt.Errorf("validate controller options: %w", err)
	}

	if c.Tracking() {
		c.logger.Debug("Gesture in progress, deferring new options until it ends")
		c.pendingOptions = &options

		return nil
	}

	c.options = options
	c.logger.Debugw("Applied new options", "speedZones", options.SpeedZones)

	return nil
}

// Begin handles a pointer-down at the given location and reports whether a gesture started
func (c *ScrubController) Begin(location Point) bool {

	// a second pointer-down without an up in between means we missed the end of the last gesture
	if c.Tracking() {
		c.logger.Warn("Begin called while already tracking, ending previous gesture first")
		c.End()
	}

	beginTracking := c.onThumb(location) || c.options.TapToSeek

	if c.options.TapToSeek {
		c.seek(location)
	}

	if !beginTracking {
		return false
	}

	c.session = newScrubSession(c.host.ThumbRect(), c.host.Value())
	c.setSpeed(NormalSpeed)

	c.logger.Debugw("Began tracking", "location", location, "session", c.session)

	if c.observer != nil {
		c.observer.ScrubbingStateChanged(true)
	}

	return true
}

// ContinueTracking handles a pointer move between two consecutive samples.
// It returns whether a gesture is still being tracked; while idle it does nothing.
func (c *ScrubController) ContinueTracking(previous, current Point) bool {
	if !c.Tracking() {
		return false
	}

	s := c.session

	horizontalDelta := current.X - previous.X
	verticalOffset := s.verticalOffset(current)

	c.setSpeed(c.options.SpeedZones.SpeedForVerticalOffset(verticalOffset))

	valueRange := c.host.Range()
	valueInterval := valueRange.Interval()

	// a zero-width track can't express movement, treat the sample as standing still
	trackWidth := c.host.TrackRect().Width()
	normalizedDelta := 0.0
	if trackWidth > 0 {
		normalizedDelta = horizontalDelta / trackWidth
	} else {
		horizontalDelta = 0
	}

	// keep following the gesture at full speed, regardless of the zone we're in
	s.realValue += valueInterval * normalizedDelta

	value := c.host.Value()
	valueAdjustment := c.speed * valueInterval * normalizedDelta

	// heading back towards the track - catch up with the real position
	thumbAdjustment := 0.0
	if s.converging(previous, current) {
		thumbAdjustment = (s.realValue - value) / (1 + verticalOffset)
	}

	totalAdjustment := valueAdjustment + thumbAdjustment

	// only let the value follow the horizontal direction of the drag
	scrubbingLeft := horizontalDelta < 0
	scrubbingRight := horizontalDelta > 0

	if (totalAdjustment < 0 && scrubbingLeft) || (totalAdjustment > 0 && scrubbingRight) {
		c.host.SetValue(value + totalAdjustment)
	}

	if c.options.Continuous {
		c.host.ValueChanged(c.host.Value())
	}

	return true
}

// End handles a pointer-up. While idle it does nothing.
func (c *ScrubController) End() {
	if !c.Tracking() {
		return
	}

	c.setSpeed(NormalSpeed)
	c.host.ValueChanged(c.host.Value())

	c.logger.Debugw("Ended tracking", "value", c.host.Value(), "session", c.session)
	c.session = nil

	if c.observer != nil {
		c.observer.ScrubbingStateChanged(false)
	}

	if c.pendingOptions != nil {
		c.options = *c.pendingOptions
		c.pendingOptions = nil

		c.logger.Debugw("Applied deferred options", "speedZones", c.options.SpeedZones)
	}
}

// Cancel handles a pointer-cancel, which tears the gesture down exactly like End
func (c *ScrubController) Cancel() {
	c.End()
}

func (c *ScrubController) setSpeed(speed float64) {
	if speed == c.speed {
		return
	}

	c.speed = speed

	if c.observer != nil {
		c.observer.SpeedChanged(speed)
	}
}

// seek moves the value straight to the tapped horizontal position
func (c *ScrubController) seek(location Point) {
	padding := c.options.ThumbTouchPadding.Width
	track := c.host.TrackRect()
	usableWidth := track.Width() - padding

	if usableWidth <= 0 {
		c.logger.Debugw("Track too narrow to seek on", "usableWidth", usableWidth)
		return
	}

	valueRange := c.host.Range()
	// pointer locations share the track's coordinate space, which needn't start at zero
	fraction := (location.X - track.Origin.X - padding/2) / usableWidth

	c.host.SetValue(valueRange.Minimum + valueRange.Interval()*fraction)
	c.host.ValueChanged(c.host.Value())
}
