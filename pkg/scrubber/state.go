package scrubber

import (
	"go.uber.org/zap"
)

// stateListener receives everything the controller reports: the observer's
// speed/scrubbing notifications and the host's value-changed notifications
type stateListener interface {
	Observer
	ValueChanged(value float64)
}

// stateListeners fans notifications out to every listener, in registration order
type stateListeners []stateListener

func (l stateListeners) SpeedChanged(speed float64) {
	for _, listener := range l {
		listener.SpeedChanged(speed)
	}
}

func (l stateListeners) ScrubbingStateChanged(scrubbing bool) {
	for _, listener := range l {
		listener.ScrubbingStateChanged(scrubbing)
	}
}

func (l stateListeners) ValueChanged(value float64) {
	for _, listener := range l {
		listener.ValueChanged(value)
	}
}

// loggingListener writes scrubbing activity to the log
type loggingListener struct {
	logger  *zap.SugaredLogger
	verbose bool
}

func newLoggingListener(logger *zap.SugaredLogger, verbose bool) *loggingListener {
	return &loggingListener{
		logger:  logger.Named("state"),
		verbose: verbose,
	}
}

func (l *loggingListener) SpeedChanged(speed float64) {
	l.logger.Debugw("Scrubbing speed changed", "speed", speed)
}

func (l *loggingListener) ScrubbingStateChanged(scrubbing bool) {
	if scrubbing {
		l.logger.Info("Scrubbing started")
	} else {
		l.logger.Info("Scrubbing ended")
	}
}

// values are too much to log unless asked to, continuous reporting fires on every sample
func (l *loggingListener) ValueChanged(value float64) {
	if l.verbose {
		l.logger.Debugw("Value changed", "value", value)
	}
}
