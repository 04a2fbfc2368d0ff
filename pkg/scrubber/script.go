package scrubber

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultScriptInterval = 16 * time.Millisecond

// gestureScript is a recorded sequence of pointer samples, replayed at a fixed pace
type gestureScript struct {
	IntervalMs int                `yaml:"interval_ms"`
	Events     []scriptedPointer `yaml:"events"`
}

type scriptedPointer struct {
	Phase string  `yaml:"phase"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
}

// parseGestureScript decodes a YAML gesture script into the events it describes
func parseGestureScript(data []byte) ([]PointerEvent, time.Duration, error) {
	script := gestureScript{}
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, 0, fmt.Errorf("unmarshal gesture script: %w", err)
	}

	if len(script.Events) == 0 {
		return nil, 0, errors.New("gesture script has no events")
	}

	events := make([]PointerEvent, 0, len(script.Events))
	for idx, scripted := range script.Events {
		phase, err := ParsePointerPhase(scripted.Phase)
		if err != nil {
			return nil, 0, fmt.Errorf("gesture script event %d: %w", idx, err)
		}

		events = append(events, PointerEvent{
			Phase:    phase,
			Location: Point{X: scripted.X, Y: scripted.Y},
		})
	}

	interval := defaultScriptInterval
	if script.IntervalMs > 0 {
		interval = time.Duration(script.IntervalMs) * time.Millisecond
	}

	return events, interval, nil
}

// ScriptIO replays a gesture script from disk, one event per interval
type ScriptIO struct {
	pointerConsumers

	scrubber *Scrubber
	logger   *zap.SugaredLogger

	loop readLoop
}

// NewScriptIO creates a ScriptIO instance replaying the provided scrubber's configured script
func NewScriptIO(scrubber *Scrubber, logger *zap.SugaredLogger) (*ScriptIO, error) {
	logger = logger.Named("script")

	sio := &ScriptIO{
		scrubber: scrubber,
		logger:   logger,
	}

	logger.Debug("Created script i/o instance")

	return sio, nil
}

// Start loads the script and begins replaying it
func (sio *ScriptIO) Start() error {
	if sio.loop.running() {
		return errors.New("script: replay already running")
	}

	path := sio.scrubber.config.Snapshot().Input.Script

	data, err := os.ReadFile(path)
	if err != nil {
		sio.logger.Warnw("Failed to read gesture script", "path", path, "error", err)
		return fmt.Errorf("read gesture script: %w", err)
	}

	events, interval, err := parseGestureScript(data)
	if err != nil {
		sio.logger.Warnw("Failed to parse gesture script", "path", path, "error", err)
		return fmt.Errorf("parse gesture script: %w", err)
	}

	sio.logger.Infow("Replaying gesture script", "path", path, "events", len(events), "interval", interval)

	stopChannel, done := sio.loop.begin()
	go sio.replay(events, interval, stopChannel, done)

	return nil
}

// Stop aborts the replay, if one is running
func (sio *ScriptIO) Stop() {
	if sio.loop.stop() {
		sio.logger.Debug("Stopped gesture script replay")
	} else {
		sio.logger.Debug("Not replaying, nothing to stop")
	}
}

func (sio *ScriptIO) replay(events []PointerEvent, interval time.Duration, stopChannel chan bool, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer sio.loop.finish(done)

	for _, event := range events {
		select {
		case <-stopChannel:
			return
		case <-ticker.C:
			if sio.scrubber.Verbose() {
				sio.logger.Debugw("Pointer event", "event", event)
			}

			sio.deliver(event)
		}
	}

	sio.logger.Info("Gesture script finished")
}
