package scrubber

import "fmt"

// scrubSession holds the state of a single gesture. It only exists while tracking.
type scrubSession struct {

	// center of the thumb when the gesture began, rather than the touch point itself.
	// this makes the thumb resume from its true location when the pointer returns to
	// the track after scrubbing in one of the slower zones
	anchor Point

	// where the value would be had the whole gesture been scrubbed at full speed (unclamped)
	realValue float64
}

func newScrubSession(thumb Rect, value float64) *scrubSession {
	return &scrubSession{
		anchor:    thumb.Center(),
		realValue: value,
	}
}

// verticalOffset is the (unsigned) distance between p and the anchor row
func (s *scrubSession) verticalOffset(p Point) float64 {
	offset := p.Y - s.anchor.Y
	if offset < 0 {
		return -offset
	}

	return offset
}

// converging reports whether the pointer moved strictly closer to the anchor row
// between two consecutive samples without reaching or crossing it
func (s *scrubSession) converging(previous, current Point) bool {
	belowAnchorMovingUp := s.anchor.Y < current.Y && current.Y < previous.Y
	aboveAnchorMovingDown := s.anchor.Y > current.Y && current.Y > previous.Y

	return belowAnchorMovingUp || aboveAnchorMovingDown
}

func (s *scrubSession) String() string {
	return fmt.Sprintf("<session anchor=(%v, %v) real=%v>", s.anchor.X, s.anchor.Y, s.realValue)
}
