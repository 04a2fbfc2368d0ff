package scrubber

import "go.uber.org/zap"

// gestureDispatcher turns an ordered stream of pointer events into controller calls.
// It remembers the last sample so each move can be handed over as a (previous, current) pair
type gestureDispatcher struct {
	controller *ScrubController
	logger     *zap.SugaredLogger
	verbose    bool

	previous Point
}

func newGestureDispatcher(controller *ScrubController, logger *zap.SugaredLogger, verbose bool) *gestureDispatcher {
	return &gestureDispatcher{
		controller: controller,
		logger:     logger.Named("gestures"),
		verbose:    verbose,
	}
}

func (g *gestureDispatcher) dispatch(event PointerEvent) {
	switch event.Phase {
	case PointerDown:

		// the host's hit test comes first - touches outside the control never reach it
		if !g.controller.PointInside(event.Location) {
			if g.verbose {
				g.logger.Debugw("Pointer down outside of control, ignoring", "location", event.Location)
			}

			// a new press means the last gesture's up got lost, don't let it carry on
			if g.controller.Tracking() {
				g.logger.Warn("Pointer down while a gesture was still open, ending it")
				g.controller.End()
			}

			return
		}

		g.previous = event.Location
		if !g.controller.Begin(event.Location) && g.verbose {
			g.logger.Debugw("Pointer down didn't start a gesture", "location", event.Location)
		}

	case PointerMove:
		g.controller.ContinueTracking(g.previous, event.Location)
		g.previous = event.Location

	case PointerUp:
		g.controller.End()

	case PointerCancel:
		g.controller.Cancel()

	default:
		g.logger.Warnw("Unknown pointer phase, ignoring", "event", event)
	}
}
