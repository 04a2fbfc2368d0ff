package scrubber

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PointerPhase identifies where in a gesture a pointer sample belongs
type PointerPhase int

const (
	PointerDown PointerPhase = iota
	PointerMove
	PointerUp
	PointerCancel
)

var phaseNames = map[PointerPhase]string{
	PointerDown:   "down",
	PointerMove:   "move",
	PointerUp:     "up",
	PointerCancel: "cancel",
}

func (p PointerPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}

	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePointerPhase turns a phase name ("down", "move", "up", "cancel") into a PointerPhase
func ParsePointerPhase(name string) (PointerPhase, error) {
	for phase, phaseName := range phaseNames {
		if strings.EqualFold(name, phaseName) {
			return phase, nil
		}
	}

	return 0, fmt.Errorf("unknown pointer phase: %q", name)
}

// PointerEvent is a single pointer sample delivered by a pointer source
type PointerEvent struct {
	Phase    PointerPhase
	Location Point
}

func (e PointerEvent) String() string {
	return fmt.Sprintf("%s (%v, %v)", e.Phase, e.Location.X, e.Location.Y)
}

const coordinatePattern = `-?\d+(?:\.\d+)?`

// lines look like "down 12 40", "move 13.5 41" or "up" (coordinates are optional for up/cancel),
// and most will end with CRLF
var expectedLinePattern = regexp.MustCompile(
	fmt.Sprintf(`(?i)^(down|move|up|cancel)(?:[ \t]+(%s)[ \t]+(%s))?[ \t]*\r?\n?$`, coordinatePattern, coordinatePattern))

var errMalformedLine = errors.New("malformed pointer line")

// parsePointerLine turns a single line of the pointer protocol into an event
func parsePointerLine(line string) (PointerEvent, error) {
	match := expectedLinePattern.FindStringSubmatch(line)
	if match == nil {
		return PointerEvent{}, fmt.Errorf("parse %q: %w", strings.TrimSpace(line), errMalformedLine)
	}

	phase, err := ParsePointerPhase(match[1])
	if err != nil {
		return PointerEvent{}, fmt.Errorf("parse %q: %w", strings.TrimSpace(line), err)
	}

	event := PointerEvent{Phase: phase}

	// down and move are meaningless without a location
	if match[2] == "" {
		if phase == PointerDown || phase == PointerMove {
			return PointerEvent{}, fmt.Errorf("parse %q: missing location: %w", strings.TrimSpace(line), errMalformedLine)
		}

		return event, nil
	}

	// the pattern guarantees these are numbers
	event.Location.X, _ = strconv.ParseFloat(match[2], 64)
	event.Location.Y, _ = strconv.ParseFloat(match[3], 64)

	return event, nil
}
