package scrubber

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned when a range's minimum isn't strictly below its maximum
var ErrInvalidRange = errors.New("range minimum must be less than maximum")

// Point is a location in the host widget's coordinate space
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair, used for the extended touch padding
type Size struct {
	Width  float64
	Height float64
}

// Rect is an axis-aligned rectangle (origin at the top-left corner)
type Rect struct {
	Origin Point
	Size   Size
}

// Range holds the bounds of the scrubbed value
type Range struct {
	Minimum float64
	Maximum float64
}

// NewRect is a shorthand for building a Rect out of its components
func NewRect(x, y, width, height float64) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{Width: width, Height: height}}
}

// Width returns the rectangle's width
func (r Rect) Width() float64 {
	return r.Size.Width
}

// Center returns the rectangle's center point
func (r Rect) Center() Point {
	return Point{
		X: r.Origin.X + r.Size.Width/2,
		Y: r.Origin.Y + r.Size.Height/2,
	}
}

// Outset grows the rectangle by dx on the left and right and dy on the top and bottom
func (r Rect) Outset(dx, dy float64) Rect {
	return NewRect(r.Origin.X-dx, r.Origin.Y-dy, r.Size.Width+2*dx, r.Size.Height+2*dy)
}

// Contains reports whether p lies within the rectangle (edges included)
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Origin.X && p.X <= r.Origin.X+r.Size.Width &&
		p.Y >= r.Origin.Y && p.Y <= r.Origin.Y+r.Size.Height
}

// Interval returns the distance between the range bounds
func (r Range) Interval() float64 {
	return r.Maximum - r.Minimum
}

// Clamp bounds v to the range
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Minimum, math.Min(r.Maximum, v))
}

// Validate makes sure the range is usable
func (r Range) Validate() error {
	if math.IsNaN(r.Minimum) || math.IsNaN(r.Maximum) || r.Minimum >= r.Maximum {
		return fmt.Errorf("validate range [%v, %v]: %w", r.Minimum, r.Maximum, ErrInvalidRange)
	}

	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v]", r.Minimum, r.Maximum)
}
