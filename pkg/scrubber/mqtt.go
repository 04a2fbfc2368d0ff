package scrubber

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

const (
	mqttTopicValue     = "value"
	mqttTopicSpeed     = "speed"
	mqttTopicScrubbing = "scrubbing"

	mqttOutgoingBuffer = 64
	mqttConnectTimeout = 5 * time.Second
	mqttQuiesceMs      = 250

	// values closer than this share of the range to the last published one aren't sent again
	mqttValueResolution = 0.001
)

// mqttMessage is an outgoing, retained state update
type mqttMessage struct {
	topic   string
	payload []byte
}

// MQTTPublisher mirrors the scrubbing state into retained MQTT topics under a prefix.
// Publishing happens on a worker goroutine, so notifications never wait on the broker
type MQTTPublisher struct {
	logger *zap.SugaredLogger

	broker      string
	clientID    string
	topicPrefix string

	client   mqtt.Client
	outgoing chan mqttMessage
	cancel   context.CancelFunc
	done     chan struct{}

	lock           sync.Mutex
	valueRange     Range
	lastValue      float64
	valuePublished bool

	// the most recent value seen, published or not
	latestValue float64
	valueSeen   bool
}

// NewMQTTPublisher creates a publisher for the given broker. Nothing is sent until it's started
func NewMQTTPublisher(broker string, clientID string, topicPrefix string, valueRange Range, logger *zap.SugaredLogger) *MQTTPublisher {
	logger = logger.Named("mqtt")

	p := &MQTTPublisher{
		logger:      logger,
		broker:      broker,
		clientID:    clientID,
		topicPrefix: topicPrefix,
		outgoing:    make(chan mqttMessage, mqttOutgoingBuffer),
		valueRange:  valueRange,
	}

	logger.Debug("Created MQTT publisher instance")

	return p
}

// Start connects to the broker and starts the publishing worker
func (p *MQTTPublisher) Start() error {
	if p.client != nil {
		return errors.New("mqtt: publisher already started")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		p.logger.Warnw("Lost connection to MQTT broker", "broker", p.broker, "error", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		p.logger.Infow("Connected to MQTT broker", "broker", p.broker, "clientID", p.clientID)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		p.logger.Warnw("Timed out connecting to MQTT broker", "broker", p.broker)
		return fmt.Errorf("connect to mqtt broker %s: timed out", p.broker)
	}

	if err := token.Error(); err != nil {
		p.logger.Warnw("Failed to connect to MQTT broker", "broker", p.broker, "error", err)
		return fmt.Errorf("connect to mqtt broker %s: %w", p.broker, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.client = client
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.senderWorker(ctx, client)

	return nil
}

// Stop ends the worker and disconnects from the broker
func (p *MQTTPublisher) Stop() {
	if p.client == nil {
		p.logger.Debug("Not connected, nothing to stop")
		return
	}

	p.cancel()
	<-p.done

	p.client.Disconnect(mqttQuiesceMs)
	p.client = nil

	p.logger.Debug("Disconnected from MQTT broker")
}

// SetRange updates the range used to decide whether a value change is worth publishing
func (p *MQTTPublisher) SetRange(valueRange Range) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.valueRange = valueRange
}

// SpeedChanged publishes the new scrubbing speed
func (p *MQTTPublisher) SpeedChanged(speed float64) {
	p.enqueue(mqttTopicSpeed, formatFloat(speed))
}

// ScrubbingStateChanged publishes whether a gesture is in progress. When one ends, the value
// it settled on is published even if it was too close to the last one to go out on its own
func (p *MQTTPublisher) ScrubbingStateChanged(scrubbing bool) {
	if !scrubbing {
		p.flushValue()
	}

	p.enqueue(mqttTopicScrubbing, strconv.FormatBool(scrubbing))
}

// ValueChanged publishes the new value, unless it's too close to the last one published
func (p *MQTTPublisher) ValueChanged(value float64) {
	p.lock.Lock()

	p.latestValue = value
	p.valueSeen = true

	threshold := p.valueRange.Interval() * mqttValueResolution
	if p.valuePublished && !util.SignificantlyDifferent(p.lastValue, value, threshold, p.valueRange.Minimum, p.valueRange.Maximum) {
		p.lock.Unlock()
		return
	}

	p.lastValue = value
	p.valuePublished = true
	p.lock.Unlock()

	p.enqueue(mqttTopicValue, formatFloat(value))
}

func (p *MQTTPublisher) flushValue() {
	p.lock.Lock()

	if !p.valueSeen || (p.valuePublished && p.latestValue == p.lastValue) {
		p.lock.Unlock()
		return
	}

	value := p.latestValue
	p.lastValue = value
	p.valuePublished = true
	p.lock.Unlock()

	p.enqueue(mqttTopicValue, formatFloat(value))
}

func (p *MQTTPublisher) topic(name string) string {
	if p.topicPrefix == "" {
		return name
	}

	return p.topicPrefix + "/" + name
}

func (p *MQTTPublisher) enqueue(name string, payload string) {
	msg := mqttMessage{topic: p.topic(name), payload: []byte(payload)}

	select {
	case p.outgoing <- msg:
	default:
		p.logger.Warnw("Outgoing MQTT queue full, dropping message", "topic", msg.topic)
	}
}

// senderWorker publishes queued messages until the context is cancelled
func (p *MQTTPublisher) senderWorker(ctx context.Context, client mqtt.Client) {
	defer close(p.done)

	p.logger.Debug("MQTT sender worker started")

	for {
		select {
		case msg := <-p.outgoing:
			token := client.Publish(msg.topic, 0, true, msg.payload)
			token.Wait()

			if err := token.Error(); err != nil {
				p.logger.Warnw("Failed to publish", "topic", msg.topic, "error", err)
			}

		case <-ctx.Done():
			p.logger.Debug("MQTT sender worker stopped")
			return
		}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
