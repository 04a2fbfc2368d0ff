// Package scrubber provides a multi-speed scrubbing slider: pointer samples coming from a
// touch strip, a network client, a console or a recorded script move a bounded value,
// at a rate that drops the further the pointer drifts away from the slider vertically.
package scrubber

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

// Scrubber is the main entity managing access to all sub-components
type Scrubber struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig

	model      *RangeModel
	controller *ScrubController
	dispatcher *gestureDispatcher
	source     PointerSource

	broadcaster *StateBroadcaster
	publisher   *MQTTPublisher

	// a reload that arrived mid-gesture, applied once the gesture is over
	pendingReload bool

	stopChannel chan bool
	version     string
	verbose     bool
}

// NewScrubber creates a Scrubber instance
func NewScrubber(logger *zap.SugaredLogger, verbose bool) (*Scrubber, error) {
	logger = logger.Named("scrubber")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	s := &Scrubber{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		stopChannel: make(chan bool),
		verbose:     verbose,
	}

	logger.Debug("Created scrubber instance")

	return s, nil
}

// Initialize loads the config, builds the components it describes and runs until stopped
func (s *Scrubber) Initialize() error {
	s.logger.Debug("Initializing")

	// load the config for the first time
	if err := s.config.Load(); err != nil {
		s.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	if err := s.setupComponents(); err != nil {
		s.logger.Errorw("Failed to set up components", "error", err)
		return fmt.Errorf("set up components: %w", err)
	}

	s.setupInterruptHandler()
	s.run()

	return nil
}

// SetVersion records the version string reported in the logs
func (s *Scrubber) SetVersion(version string) {
	s.version = version
}

// Verbose returns a boolean indicating whether the scrubber is running in verbose mode
func (s *Scrubber) Verbose() bool {
	return s.verbose
}

func (s *Scrubber) setupComponents() error {
	settings := s.config.Snapshot()

	model, err := NewRangeModel(settings.Range, settings.TrackRect(), settings.ThumbSize)
	if err != nil {
		return fmt.Errorf("create range model: %w", err)
	}

	controller, err := NewScrubController(model, settings.ControllerOptions(), s.logger)
	if err != nil {
		return fmt.Errorf("create scrub controller: %w", err)
	}

	s.model = model
	s.controller = controller
	s.dispatcher = newGestureDispatcher(controller, s.logger, s.verbose)

	listeners := stateListeners{newLoggingListener(s.logger, s.verbose)}

	if settings.Broadcast.ListenAddr != "" {
		s.broadcaster = NewStateBroadcaster(settings.Broadcast.ListenAddr, model.Value(), s.logger)
		listeners = append(listeners, s.broadcaster)
	}

	if settings.MQTT.Broker != "" {
		s.publisher = NewMQTTPublisher(settings.MQTT.Broker,
			settings.MQTT.ClientID,
			settings.MQTT.TopicPrefix,
			settings.Range,
			s.logger)

		listeners = append(listeners, s.publisher)
	}

	controller.SetObserver(listeners)
	model.OnValueChanged(listeners.ValueChanged)

	source, err := s.newPointerSource(settings.Input.Source)
	if err != nil {
		return fmt.Errorf("create pointer source: %w", err)
	}

	s.source = source

	return nil
}

func (s *Scrubber) newPointerSource(kind string) (PointerSource, error) {
	switch kind {
	case inputSourceSerial:
		return NewSerialIO(s, s.logger)
	case inputSourceUdp:
		return NewUdpIO(s, s.logger)
	case inputSourceScript:
		return NewScriptIO(s, s.logger)
	case inputSourceConsole:
		return NewConsoleIO(s, s.logger)
	}

	return nil, fmt.Errorf("unknown input source %q", kind)
}

func (s *Scrubber) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		s.logger.Debugw("Interrupted", "signal", signal)
		s.signalStop()
	}()
}

func (s *Scrubber) run() {
	s.logger.Infow("Run loop starting", "version", s.version)

	defer s.recoverFromPanic()

	// subscribe before anything can produce events, so none are missed
	pointerEvents := s.source.SubscribeToPointerEvents()
	configReloaded := s.config.SubscribeToChanges()

	// watch the config file for changes
	go s.config.WatchConfigFileChanges()

	s.startOutputs()

	// start reading pointer samples for the first time
	go s.startSource()

	for {
		select {
		case event := <-pointerEvents:
			s.handlePointerEvent(event)

		case <-configReloaded:
			s.handleConfigReload()

		case <-s.stopChannel:
			s.logger.Debug("Stop channel signaled, terminating")

			s.stop(pointerEvents)

			// exit with 0
			os.Exit(0)
		}
	}
}

func (s *Scrubber) handlePointerEvent(event PointerEvent) {
	s.dispatcher.dispatch(event)

	if s.pendingReload && !s.controller.Tracking() {
		s.applyConfig()
	}
}

// handleConfigReload never changes the geometry under a gesture in flight
func (s *Scrubber) handleConfigReload() {
	if s.controller.Tracking() {
		s.logger.Debug("Config reloaded mid-gesture, applying once it ends")
		s.pendingReload = true

		return
	}

	s.applyConfig()
}

// startOutputs starts the optional state outputs. Neither is essential, so failures only get reported
func (s *Scrubber) startOutputs() {
	settings := s.config.Snapshot()

	if s.broadcaster != nil {
		if err := s.broadcaster.Start(); err != nil {
			s.logger.Warnw("Failed to start state broadcaster", "error", err)
			s.notifier.Notify("Can't broadcast scrubbing state!",
				fmt.Sprintf("Listening on %s failed, check your configuration.", settings.Broadcast.ListenAddr))

			s.broadcaster = nil
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Start(); err != nil {
			s.logger.Warnw("Failed to start MQTT publisher", "error", err)
			s.notifier.Notify("Can't connect to MQTT broker!",
				fmt.Sprintf("Connecting to %s failed, scrubbing state won't be published.", settings.MQTT.Broker))

			s.publisher = nil
		}
	}
}

func (s *Scrubber) startSource() {
	err := s.source.Start()
	if err == nil {
		return
	}

	input := s.config.Snapshot().Input

	s.logger.Warnw("Failed to start pointer source", "source", input.Source, "error", err)

	switch {

	// if the port is busy, that's because something else is connected - notify and quit
	case errors.Is(err, os.ErrPermission) && input.Source == inputSourceSerial:
		s.logger.Warnw("Serial port seems busy, notifying user and closing",
			"comPort", input.COMPort)

		s.notifier.Notify(fmt.Sprintf("Can't connect to %s!", input.COMPort),
			"This serial port is busy, make sure to close any serial monitor or other scrubber instance.")

	// also notify if the COM port they gave isn't found, maybe their config is wrong
	case errors.Is(err, os.ErrNotExist) && input.Source == inputSourceSerial:
		s.logger.Warnw("Provided COM port seems wrong, notifying user and closing",
			"comPort", input.COMPort)

		s.notifier.Notify(fmt.Sprintf("Can't connect to %s!", input.COMPort),
			"This serial port doesn't exist, check your configuration and make sure it's set correctly.")

	default:
		s.notifier.Notify("Can't read pointer input!",
			fmt.Sprintf("Starting the %s input failed, please check the scrubber's logs for more details.", input.Source))
	}

	s.signalStop()
}

// applyConfig pushes freshly reloaded values into the model and controller. Only called while idle
func (s *Scrubber) applyConfig() {
	s.pendingReload = false

	// one snapshot for everything, a newer reload may already be landing
	settings := s.config.Snapshot()

	if err := s.model.SetRange(settings.Range); err != nil {
		s.logger.Warnw("Failed to apply reloaded range", "error", err)
	}

	if err := s.model.SetGeometry(settings.TrackRect(), settings.ThumbSize); err != nil {
		s.logger.Warnw("Failed to apply reloaded geometry", "error", err)
	}

	if err := s.controller.Reconfigure(settings.ControllerOptions()); err != nil {
		s.logger.Warnw("Failed to apply reloaded controller options", "error", err)
	}

	if s.publisher != nil {
		s.publisher.SetRange(settings.Range)
	}

	s.logger.Debugw("Applied reloaded config", "model", s.model)
}

func (s *Scrubber) signalStop() {
	s.logger.Debug("Signalling stop channel")
	s.stopChannel <- true
}

func (s *Scrubber) stop(pointerEvents chan PointerEvent) {
	s.logger.Info("Stopping")

	s.config.StopWatchingConfigFile()

	// a source blocked on delivering to us would never see its stop signal, so keep draining
	stopped := make(chan bool)
	go func() {
		for {
			select {
			case <-pointerEvents:
			case <-stopped:
				return
			}
		}
	}()

	s.source.Stop()
	close(stopped)

	// a gesture in flight still gets its final report
	s.controller.End()

	if s.broadcaster != nil {
		s.broadcaster.Stop()
	}

	if s.publisher != nil {
		s.publisher.Stop()
	}

	// attempt to sync on exit - this won't necessarily work but can't harm
	s.logger.Sync()
}
