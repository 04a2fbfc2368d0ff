package scrubber

// onThumb reports whether location falls in the horizontal band around the thumb that
// may start a gesture. The band extends ThumbTouchPadding.Width to each side of the thumb's center.
func (c *ScrubController) onThumb(location Point) bool {
	thumbCenter := c.host.ThumbRect().Center()
	padding := c.options.ThumbTouchPadding.Width

	return location.X >= thumbCenter.X-padding && location.X <= thumbCenter.X+padding
}

// PointInside reports whether location belongs to the control at all, which is
// the track rectangle enlarged by the thumb touch padding on every side.
// Hosts use it to decide whether a pointer-down should be forwarded to Begin.
func (c *ScrubController) PointInside(location Point) bool {
	padding := c.options.ThumbTouchPadding

	return c.host.TrackRect().Outset(padding.Width, padding.Height).Contains(location)
}
