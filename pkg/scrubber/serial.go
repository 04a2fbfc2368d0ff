package scrubber

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

// SerialIO reads pointer samples from a touch strip attached over a serial port
type SerialIO struct {
	pointerConsumers

	scrubber *Scrubber
	logger   *zap.SugaredLogger

	loop readLoop

	// guards connOptions, which the config reload goroutine compares against
	lock        sync.Mutex
	connOptions serial.OpenOptions
}

// NewSerialIO creates a SerialIO instance that uses the provided scrubber's
// connection info to establish communications with the touch strip
func NewSerialIO(scrubber *Scrubber, logger *zap.SugaredLogger) (*SerialIO, error) {
	logger = logger.Named("serial")

	sio := &SerialIO{
		scrubber: scrubber,
		logger:   logger,
	}

	logger.Debug("Created serial i/o instance")

	// respond to config changes
	sio.setupOnConfigReload()

	return sio, nil
}

// Start attempts to connect to the touch strip
func (sio *SerialIO) Start() error {

	// don't allow multiple concurrent connections
	if sio.loop.running() {
		sio.logger.Warn("Already connected, can't start another without closing first")
		return errors.New("serial: connection already active")
	}

	// set minimum read size according to platform (0 for windows, 1 for linux)
	// this prevents a rare bug on windows where serial reads get congested,
	// resulting in significant lag
	minimumReadSize := 0
	if util.Linux() {
		minimumReadSize = 1
	}

	input := sio.scrubber.config.Snapshot().Input

	connOptions := serial.OpenOptions{
		PortName:        input.COMPort,
		BaudRate:        uint(input.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: uint(minimumReadSize),
	}

	sio.lock.Lock()
	sio.connOptions = connOptions
	sio.lock.Unlock()

	sio.logger.Debugw("Attempting serial connection",
		"comPort", connOptions.PortName,
		"baudRate", connOptions.BaudRate,
		"minReadSize", minimumReadSize)

	conn, err := serial.Open(connOptions)
	if err != nil {
		sio.logger.Warnw("Failed to open serial connection", "error", err)
		return fmt.Errorf("open serial connection: %w", err)
	}

	namedLogger := sio.logger.Named(strings.ToLower(connOptions.PortName))
	namedLogger.Infow("Connected", "conn", conn)

	stopChannel, done := sio.loop.begin()

	// read lines or await a stop
	go func() {
		defer sio.loop.finish(done)

		connReader := bufio.NewReader(conn)
		lineChannel := sio.readLine(namedLogger, connReader)

		for {
			select {
			case <-stopChannel:
				sio.close(namedLogger, conn)
				return
			case line, ok := <-lineChannel:
				if !ok {
					namedLogger.Warn("Serial connection lost")
					sio.close(namedLogger, conn)
					return
				}

				sio.handleLine(namedLogger, line, sio.scrubber.Verbose())
			}
		}
	}()

	return nil
}

// Stop signals us to shut down our serial connection, if one is active
func (sio *SerialIO) Stop() {
	if sio.loop.stop() {
		sio.logger.Debug("Serial connection shut down")
	} else {
		sio.logger.Debug("Not currently connected, nothing to stop")
	}
}

func (sio *SerialIO) setupOnConfigReload() {
	configReloadedChannel := sio.scrubber.config.SubscribeToChanges()

	go func() {
		for range configReloadedChannel {
			input := sio.scrubber.config.Snapshot().Input

			sio.lock.Lock()
			current := sio.connOptions
			sio.lock.Unlock()

			// if connection params have changed, attempt to stop and start the connection
			if input.COMPort != current.PortName || uint(input.BaudRate) != current.BaudRate {
				sio.logger.Info("Detected change in connection parameters, attempting to renew connection")

				// returns once the connection is closed
				sio.Stop()

				if err := sio.Start(); err != nil {
					sio.logger.Warnw("Failed to renew connection after parameter change", "error", err)
				} else {
					sio.logger.Debug("Renewed connection successfully")
				}
			}
		}
	}()
}

func (sio *SerialIO) close(logger *zap.SugaredLogger, conn io.ReadWriteCloser) {
	if err := conn.Close(); err != nil {
		logger.Warnw("Failed to close serial connection", "error", err)
	} else {
		logger.Debug("Serial connection closed")
	}
}

// readLine delivers every line read from the connection, and closes the channel once reading fails
func (sio *SerialIO) readLine(logger *zap.SugaredLogger, reader *bufio.Reader) chan string {
	ch := make(chan string)

	go func() {
		defer close(ch)

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if sio.scrubber.Verbose() {
					logger.Warnw("Failed to read line from serial", "error", err, "line", line)
				}

				return
			}

			ch <- line
		}
	}()

	return ch
}
