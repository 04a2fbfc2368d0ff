package scrubber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func drainMQTT(p *MQTTPublisher) []mqttMessage {
	var messages []mqttMessage

	for {
		select {
		case msg := <-p.outgoing:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

func TestMQTTPublisher_Topics(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "home/scrubber", Range{Minimum: 0, Maximum: 100}, zap.S())

	p.ScrubbingStateChanged(true)
	p.SpeedChanged(0.25)
	p.ValueChanged(42.5)

	assert.Equal(t, []mqttMessage{
		{topic: "home/scrubber/scrubbing", payload: []byte("true")},
		{topic: "home/scrubber/speed", payload: []byte("0.25")},
		{topic: "home/scrubber/value", payload: []byte("42.5")},
	}, drainMQTT(p))
}

func TestMQTTPublisher_NoPrefix(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "", Range{Minimum: 0, Maximum: 1}, zap.S())

	p.SpeedChanged(1)

	messages := drainMQTT(p)
	if assert.Len(t, messages, 1) {
		assert.Equal(t, "speed", messages[0].topic)
	}
}

func TestMQTTPublisher_SkipsInsignificantValues(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 1000}, zap.S())

	// resolution is one unit for this range
	p.ValueChanged(500)
	p.ValueChanged(500.5)
	p.ValueChanged(501.5)
	p.ValueChanged(999.5)
	p.ValueChanged(1000)

	payloads := []string{}
	for _, msg := range drainMQTT(p) {
		payloads = append(payloads, string(msg.payload))
	}

	assert.Equal(t, []string{"500", "501.5", "999.5", "1000"}, payloads)
}

func TestMQTTPublisher_GestureEndPublishesFinalValue(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 36000}, zap.S())

	// resolution is 36 units for this range, slow scrubbing stays under it
	p.ScrubbingStateChanged(true)
	p.ValueChanged(1000)
	p.ValueChanged(1010)
	p.ValueChanged(1030)
	p.ValueChanged(1030)
	p.ScrubbingStateChanged(false)

	published := []string{}
	for _, msg := range drainMQTT(p) {
		published = append(published, msg.topic+"="+string(msg.payload))
	}

	assert.Equal(t, []string{
		"s/scrubbing=true",
		"s/value=1000",
		"s/value=1030",
		"s/scrubbing=false",
	}, published)
}

func TestMQTTPublisher_GestureEndSkipsPublishedValue(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 36000}, zap.S())

	p.ValueChanged(1000)
	p.ScrubbingStateChanged(false)

	// a gesture that never reported a value has nothing to flush either
	idle := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 36000}, zap.S())
	idle.ScrubbingStateChanged(false)

	assert.Len(t, drainMQTT(p), 2)
	assert.Len(t, drainMQTT(idle), 1)
}

func TestMQTTPublisher_FullQueueDrops(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 1}, zap.S())

	for i := 0; i < mqttOutgoingBuffer+10; i++ {
		p.ScrubbingStateChanged(i%2 == 0)
	}

	assert.Len(t, drainMQTT(p), mqttOutgoingBuffer)
}

func TestMQTTPublisher_StopWithoutStart(t *testing.T) {
	p := NewMQTTPublisher("tcp://localhost:1883", "test", "s", Range{Minimum: 0, Maximum: 1}, zap.S())

	assert.NotPanics(t, p.Stop)
}
