package scrubber

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// UdpIO receives pointer samples from a remote host over UDP.
// A datagram may carry several protocol lines, which are handled in order
type UdpIO struct {
	pointerConsumers

	scrubber *Scrubber
	logger   *zap.SugaredLogger

	loop readLoop
}

// NewUdpIO creates a UdpIO instance that listens on the provided scrubber's configured port
func NewUdpIO(scrubber *Scrubber, logger *zap.SugaredLogger) (*UdpIO, error) {
	logger = logger.Named("udp")

	udpio := &UdpIO{
		scrubber: scrubber,
		logger:   logger,
	}

	logger.Debug("Created UDP i/o instance")

	return udpio, nil
}

// Start creates a UDP listener server
func (udpio *UdpIO) Start() error {
	if udpio.loop.running() {
		return errors.New("udp: listener already active")
	}

	port := udpio.scrubber.config.Snapshot().Input.UdpPort

	s, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		udpio.logger.Warnw("Failed to resolve UDP address", "error", err)
		return fmt.Errorf("resolve udp address: %w", err)
	}

	connection, err := net.ListenUDP("udp4", s)
	if err != nil {
		udpio.logger.Warnw("Failed to start UDP listener", "error", err)
		return fmt.Errorf("start udp listener: %w", err)
	}

	namedLogger := udpio.logger.Named(fmt.Sprintf(":%d", port))
	namedLogger.Infow("Listening", "addr", connection.LocalAddr())

	stopChannel, done := udpio.loop.begin()

	// read packets or await a stop
	go func() {
		defer udpio.loop.finish(done)

		packetChannel := udpio.readPacket(namedLogger, connection)

		for {
			select {
			case <-stopChannel:
				udpio.close(namedLogger, connection)
				return
			case packet, ok := <-packetChannel:
				if !ok {
					udpio.close(namedLogger, connection)
					return
				}

				udpio.handlePacket(namedLogger, packet)
			}
		}
	}()

	return nil
}

// Stop signals us to shut down our UDP listener, if one is active
func (udpio *UdpIO) Stop() {
	if udpio.loop.stop() {
		udpio.logger.Debug("UDP listener shut down")
	} else {
		udpio.logger.Debug("Not currently listening, nothing to stop")
	}
}

func (udpio *UdpIO) readPacket(logger *zap.SugaredLogger, connection *net.UDPConn) chan string {
	packetChannel := make(chan string)

	go func() {
		defer close(packetChannel)

		for {
			packet := make([]byte, 4096)
			bytesRead, _, err := connection.ReadFromUDP(packet)

			if err != nil {
				if udpio.scrubber.Verbose() {
					logger.Warnw("Failed to read UDP packet", "error", err)
				}

				return
			}

			stringData := string(packet[:bytesRead])

			if udpio.scrubber.Verbose() {
				logger.Debugw("Read new packet", "packet", stringData)
			}

			packetChannel <- stringData
		}
	}()

	return packetChannel
}

func (udpio *UdpIO) handlePacket(logger *zap.SugaredLogger, packet string) {
	for _, line := range strings.Split(packet, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		udpio.handleLine(logger, line, udpio.scrubber.Verbose())
	}
}

func (udpio *UdpIO) close(logger *zap.SugaredLogger, connection *net.UDPConn) {
	if err := connection.Close(); err != nil {
		logger.Warnw("Failed to close UDP connection", "error", err)
	} else {
		logger.Debug("UDP connection closed")
	}
}
