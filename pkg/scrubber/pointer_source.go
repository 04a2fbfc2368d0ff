package scrubber

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// PointerSource is anything that can deliver pointer samples (a serial touch strip, a UDP
// client, an interactive console or a gesture script)
type PointerSource interface {
	Start() error
	Stop()
	SubscribeToPointerEvents() chan PointerEvent
}

// pointerConsumers is the subscription/fan-out half shared by every pointer source
type pointerConsumers struct {
	consumers []chan PointerEvent
}

// SubscribeToPointerEvents returns an unbuffered channel that receives
// every pointer event the source produces, in order
func (pc *pointerConsumers) SubscribeToPointerEvents() chan PointerEvent {
	ch := make(chan PointerEvent)
	pc.consumers = append(pc.consumers, ch)

	return ch
}

func (pc *pointerConsumers) deliver(event PointerEvent) {
	for _, consumer := range pc.consumers {
		consumer <- event
	}
}

// handleLine parses a line of the pointer protocol and delivers it to all consumers.
// Lines may contain garbage (partial writes, line noise), so bad ones are just dropped
func (pc *pointerConsumers) handleLine(logger *zap.SugaredLogger, line string, verbose bool) {
	event, err := parsePointerLine(line)
	if err != nil {
		if verbose || !errors.Is(err, errMalformedLine) {
			logger.Debugw("Got malformed pointer line, ignoring", "line", line, "error", err)
		}

		return
	}

	if verbose {
		logger.Debugw("Pointer event", "event", event)
	}

	pc.deliver(event)
}

// readLoop tracks the goroutine a source reads on. Stop waits for it to acknowledge,
// or returns right away if it already quit on its own (lost connection, script over)
type readLoop struct {
	lock        sync.Mutex
	stopChannel chan bool
	done        chan struct{}
}

// begin marks a read goroutine as running. It must call finish with the returned channel when it exits
func (r *readLoop) begin() (chan bool, chan struct{}) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.stopChannel = make(chan bool)
	r.done = make(chan struct{})

	return r.stopChannel, r.done
}

func (r *readLoop) finish(done chan struct{}) {
	r.lock.Lock()
	if r.done == done {
		r.stopChannel = nil
		r.done = nil
	}
	r.lock.Unlock()

	close(done)
}

func (r *readLoop) running() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.done != nil
}

// stop signals the read goroutine and waits for it to exit. It reports whether one was running
func (r *readLoop) stop() bool {
	r.lock.Lock()
	stopChannel, done := r.stopChannel, r.done
	r.lock.Unlock()

	if done == nil {
		return false
	}

	select {
	case stopChannel <- true:
		<-done
	case <-done:
	}

	return true
}
