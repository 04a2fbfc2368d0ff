package scrubber

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

// CanonicalConfig provides application-wide access to configuration fields,
// as well as loading/file watching logic for the scrubber's configuration file.
// Reloads replace the embedded Settings on the watcher's goroutine, so anything
// running elsewhere reads them through Snapshot
type CanonicalConfig struct {
	Settings

	lock sync.RWMutex

	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	userConfig *viper.Viper
}

// Settings are the values read from the config file
type Settings struct {
	Range      Range
	TrackWidth float64
	ThumbSize  float64

	SpeedZones        *SpeedZoneTable
	TapToSeek         bool
	ThumbTouchPadding Size
	Continuous        bool

	Input struct {
		Source   string
		COMPort  string
		BaudRate int
		UdpPort  int
		Script   string
	}

	Broadcast struct {
		ListenAddr string
	}

	MQTT struct {
		Broker      string
		ClientID    string
		TopicPrefix string
	}
}

// marshalledSpeedZone is a single speed_zones entry as it appears in the config file
type marshalledSpeedZone struct {
	Threshold float64 `mapstructure:"threshold"`
	Speed     float64 `mapstructure:"speed"`
}

const (
	userConfigFilepath = "config.yaml"
	userConfigName     = "config"
	userConfigPath     = "."

	configType = "yaml"
	envPrefix  = "SCRUBBER"

	configKeyRangeMinimum    = "range.minimum"
	configKeyRangeMaximum    = "range.maximum"
	configKeyTrackWidth      = "track_width"
	configKeyThumbSize       = "thumb_size"
	configKeySpeedZones      = "speed_zones"
	configKeyTapToSeek       = "tap_to_seek"
	configKeyPaddingWidth    = "thumb_touch_padding.width"
	configKeyPaddingHeight   = "thumb_touch_padding.height"
	configKeyContinuous      = "continuous"
	configKeyInputSource     = "input.source"
	configKeyCOMPort         = "input.com_port"
	configKeyBaudRate        = "input.baud_rate"
	configKeyUdpPort         = "input.udp_port"
	configKeyScript          = "input.script"
	configKeyBroadcastAddr   = "broadcast.listen_addr"
	configKeyMQTTBroker      = "mqtt.broker"
	configKeyMQTTClientID    = "mqtt.client_id"
	configKeyMQTTTopicPrefix = "mqtt.topic_prefix"

	inputSourceConsole = "console"
	inputSourceSerial  = "serial"
	inputSourceUdp     = "udp"
	inputSourceScript  = "script"

	defaultRangeMinimum      = 0.0
	defaultRangeMaximum      = 1.0
	defaultTrackWidth        = 300.0
	defaultThumbSize         = 30.0
	defaultThumbTouchPadding = 50.0
	defaultInputSource       = inputSourceConsole
	defaultCOMPort           = "COM4"
	defaultBaudRate          = 9600
	defaultUdpPort           = 16990
	defaultMQTTClientID      = "scrubber"
	defaultMQTTTopicPrefix   = "scrubber"
)

var inputSources = []string{inputSourceConsole, inputSourceSerial, inputSourceUdp, inputSourceScript}

// NewConfig creates a config instance for the scrubber and sets up viper for its config file
func NewConfig(logger *zap.SugaredLogger, notifier Notifier) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)
	userConfig.AddConfigPath(userConfigPath)

	// allow SCRUBBER_INPUT_COM_PORT and friends to override the file (typically from .env)
	userConfig.SetEnvPrefix(envPrefix)
	userConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	userConfig.AutomaticEnv()

	setConfigDefaults(userConfig)

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault(configKeyRangeMinimum, defaultRangeMinimum)
	v.SetDefault(configKeyRangeMaximum, defaultRangeMaximum)
	v.SetDefault(configKeyTrackWidth, defaultTrackWidth)
	v.SetDefault(configKeyThumbSize, defaultThumbSize)
	v.SetDefault(configKeyTapToSeek, false)
	v.SetDefault(configKeyPaddingWidth, defaultThumbTouchPadding)
	v.SetDefault(configKeyPaddingHeight, defaultThumbTouchPadding)
	v.SetDefault(configKeyContinuous, true)
	v.SetDefault(configKeyInputSource, defaultInputSource)
	v.SetDefault(configKeyCOMPort, defaultCOMPort)
	v.SetDefault(configKeyBaudRate, defaultBaudRate)
	v.SetDefault(configKeyUdpPort, defaultUdpPort)
	v.SetDefault(configKeyMQTTClientID, defaultMQTTClientID)
	v.SetDefault(configKeyMQTTTopicPrefix, defaultMQTTTopicPrefix)
}

// Load reads the config file from disk and tries to parse it
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	// make sure it exists
	if !util.FileExists(userConfigFilepath) {
		cc.logger.Warnw("Config file not found", "path", userConfigFilepath)
		cc.notifier.Notify("Can't find configuration!",
			fmt.Sprintf("%s must be in the same directory as the scrubber. Please re-launch", userConfigFilepath))

		return fmt.Errorf("config file doesn't exist: %s", userConfigFilepath)
	}

	if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilepath))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check the scrubber's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	if err := cc.populateFromVipers(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		cc.notifier.Notify("Invalid configuration!", err.Error())

		return fmt.Errorf("populate config fields: %w", err)
	}

	settings := cc.Snapshot()

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"range", settings.Range,
		"trackWidth", settings.TrackWidth,
		"speedZones", settings.SpeedZones,
		"tapToSeek", settings.TapToSeek,
		"thumbTouchPadding", settings.ThumbTouchPadding,
		"continuous", settings.Continuous,
		"input", settings.Input)

	return nil
}

// Snapshot returns a consistent copy of the current settings, safe to call from any goroutine
func (cc *CanonicalConfig) Snapshot() Settings {
	cc.lock.RLock()
	defer cc.lock.RUnlock()

	return cc.Settings
}

// ControllerOptions returns the controller settings described by the config
func (s Settings) ControllerOptions() ControllerOptions {
	return ControllerOptions{
		SpeedZones:        s.SpeedZones,
		TapToSeek:         s.TapToSeek,
		ThumbTouchPadding: s.ThumbTouchPadding,
		Continuous:        s.Continuous,
	}
}

// TrackRect returns the track the config describes. The track is as tall as the thumb,
// so the anchor row of every gesture is at half the thumb's size
func (s Settings) TrackRect() Rect {
	return NewRect(0, 0, s.TrackWidth, s.ThumbSize)
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", userConfigFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {

		// when we get a write event...
		if event.Op&fsnotify.Write == fsnotify.Write {

			now := time.Now()

			// ... check if it's not a duplicate (many editors will write to a file twice)
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {

				// and attempt reload if appropriate
				cc.logger.Debugw("Config file modified, attempting reload", "event", event)

				// wait a bit to let the editor actually flush the new file contents to disk
				<-time.After(delayBetweenEventAndReload)

				if err := cc.Load(); err != nil {
					cc.logger.Warnw("Failed to reload config file", "error", err)
				} else {
					cc.logger.Info("Reloaded config successfully")
					cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

					cc.onConfigReloaded()
				}

				// don't forget to update the time
				lastAttemptedReload = now
			}
		}
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(func(fsnotify.Event) {})
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

// populateFromVipers validates everything before touching any field, so a broken
// reload leaves the previous configuration intact
func (cc *CanonicalConfig) populateFromVipers() error {
	valueRange := Range{
		Minimum: cc.userConfig.GetFloat64(configKeyRangeMinimum),
		Maximum: cc.userConfig.GetFloat64(configKeyRangeMaximum),
	}

	if err := valueRange.Validate(); err != nil {
		return fmt.Errorf("invalid %s/%s: %w", configKeyRangeMinimum, configKeyRangeMaximum, err)
	}

	speedZones, err := cc.speedZonesFromViper()
	if err != nil {
		return fmt.Errorf("invalid %s: %w", configKeySpeedZones, err)
	}

	trackWidth := cc.userConfig.GetFloat64(configKeyTrackWidth)
	if trackWidth <= 0 {
		cc.logger.Warnw("Invalid track width specified, using default value",
			"key", configKeyTrackWidth,
			"invalidValue", trackWidth,
			"defaultValue", defaultTrackWidth)

		trackWidth = defaultTrackWidth
	}

	thumbSize := cc.userConfig.GetFloat64(configKeyThumbSize)
	if thumbSize < 0 {
		cc.logger.Warnw("Invalid thumb size specified, using default value",
			"key", configKeyThumbSize,
			"invalidValue", thumbSize,
			"defaultValue", defaultThumbSize)

		thumbSize = defaultThumbSize
	}

	padding := Size{
		Width:  cc.userConfig.GetFloat64(configKeyPaddingWidth),
		Height: cc.userConfig.GetFloat64(configKeyPaddingHeight),
	}

	if padding.Width < 0 || padding.Height < 0 {
		return fmt.Errorf("invalid thumb_touch_padding %vx%v: can't be negative", padding.Width, padding.Height)
	}

	inputSource := strings.ToLower(cc.userConfig.GetString(configKeyInputSource))
	if !funk.ContainsString(inputSources, inputSource) {
		return fmt.Errorf("invalid %s %q: must be one of %v", configKeyInputSource, inputSource, inputSources)
	}

	baudRate := cc.userConfig.GetInt(configKeyBaudRate)
	if baudRate <= 0 {
		cc.logger.Warnw("Invalid baud rate specified, using default value",
			"key", configKeyBaudRate,
			"invalidValue", baudRate,
			"defaultValue", defaultBaudRate)

		baudRate = defaultBaudRate
	}

	udpPort := cc.userConfig.GetInt(configKeyUdpPort)
	if udpPort <= 0 || udpPort > 65535 {
		cc.logger.Warnw("Invalid UDP port specified, using default value",
			"key", configKeyUdpPort,
			"invalidValue", udpPort,
			"defaultValue", defaultUdpPort)

		udpPort = defaultUdpPort
	}

	settings := Settings{
		Range:             valueRange,
		TrackWidth:        trackWidth,
		ThumbSize:         thumbSize,
		SpeedZones:        speedZones,
		TapToSeek:         cc.userConfig.GetBool(configKeyTapToSeek),
		ThumbTouchPadding: padding,
		Continuous:        cc.userConfig.GetBool(configKeyContinuous),
	}

	settings.Input.Source = inputSource
	settings.Input.COMPort = cc.userConfig.GetString(configKeyCOMPort)
	settings.Input.BaudRate = baudRate
	settings.Input.UdpPort = udpPort
	settings.Input.Script = cc.userConfig.GetString(configKeyScript)

	settings.Broadcast.ListenAddr = cc.userConfig.GetString(configKeyBroadcastAddr)

	settings.MQTT.Broker = cc.userConfig.GetString(configKeyMQTTBroker)
	settings.MQTT.ClientID = cc.userConfig.GetString(configKeyMQTTClientID)
	settings.MQTT.TopicPrefix = strings.TrimSuffix(cc.userConfig.GetString(configKeyMQTTTopicPrefix), "/")

	// everything checks out, commit
	cc.lock.Lock()
	cc.Settings = settings
	cc.lock.Unlock()

	cc.logger.Debug("Populated config fields from vipers")

	return nil
}

func (cc *CanonicalConfig) speedZonesFromViper() (*SpeedZoneTable, error) {

	// no zones in the file at all means the stock ones
	if !cc.userConfig.IsSet(configKeySpeedZones) {
		cc.logger.Debugw("No speed zones configured, using default value",
			"key", configKeySpeedZones,
			"defaultValue", DefaultSpeedZones)

		return NewSpeedZoneTable(DefaultSpeedZones)
	}

	marshalled := []marshalledSpeedZone{}
	if err := cc.userConfig.UnmarshalKey(configKeySpeedZones, &marshalled); err != nil {
		return nil, fmt.Errorf("decode speed zones: %w", err)
	}

	zones := funk.Map(marshalled, func(zone marshalledSpeedZone) SpeedZone {
		return SpeedZone{Threshold: zone.Threshold, Speed: zone.Speed}
	}).([]SpeedZone)

	return NewSpeedZoneTable(zones)
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		consumer <- true
	}
}
