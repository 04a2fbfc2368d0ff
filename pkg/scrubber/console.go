package scrubber

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

const (
	consolePrompt          = "scrub> "
	consoleHistoryFilename = "console_history"

	consoleHelp = `pointer commands:
  down X Y     press at (X, Y)
  move X Y     drag to (X, Y)
  up           release
  cancel       cancel the gesture
  quit         stop the scrubber`
)

// ConsoleIO reads pointer samples typed into an interactive prompt
type ConsoleIO struct {
	pointerConsumers

	scrubber *Scrubber
	logger   *zap.SugaredLogger

	rl *readline.Instance
}

// NewConsoleIO creates a ConsoleIO instance
func NewConsoleIO(scrubber *Scrubber, logger *zap.SugaredLogger) (*ConsoleIO, error) {
	logger = logger.Named("console")

	cio := &ConsoleIO{
		scrubber: scrubber,
		logger:   logger,
	}

	logger.Debug("Created console i/o instance")

	return cio, nil
}

// Start opens the prompt and starts reading commands from it
func (cio *ConsoleIO) Start() error {
	if cio.rl != nil {
		return errors.New("console: prompt already open")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      consolePrompt,
		HistoryFile: util.CacheFilePath("scrubber", consoleHistoryFilename),
	})
	if err != nil {
		cio.logger.Warnw("Failed to open console prompt", "error", err)
		return fmt.Errorf("open console prompt: %w", err)
	}

	cio.rl = rl
	cio.logger.Info("Console ready, type 'help' for commands")

	go cio.readLoop(rl)

	return nil
}

// Stop closes the prompt, which also ends the read loop
func (cio *ConsoleIO) Stop() {
	if cio.rl == nil {
		cio.logger.Debug("Console not open, nothing to stop")
		return
	}

	cio.logger.Debug("Closing console prompt")

	if err := cio.rl.Close(); err != nil {
		cio.logger.Warnw("Failed to close console prompt", "error", err)
	}

	cio.rl = nil
}

func (cio *ConsoleIO) readLoop(rl *readline.Instance) {
	for {
		line, err := rl.Readline()

		// ctrl+C stops the whole thing
		if errors.Is(err, readline.ErrInterrupt) {
			cio.logger.Debug("Console interrupted, stopping")
			cio.scrubber.signalStop()

			return
		}

		if err != nil {
			cio.logger.Debugw("Console read loop ending", "error", err)
			return
		}

		if !cio.handleCommand(line) {
			return
		}
	}
}

// handleCommand deals with one console line and reports whether to keep reading
func (cio *ConsoleIO) handleCommand(line string) bool {
	line = strings.TrimSpace(line)

	switch strings.ToLower(line) {
	case "":
		return true

	case "help", "?":
		fmt.Println(consoleHelp)
		return true

	case "quit", "exit":
		cio.scrubber.signalStop()
		return false
	}

	if _, err := parsePointerLine(line); err != nil {
		fmt.Printf("%v (try 'help')\n", err)
		return true
	}

	cio.handleLine(cio.logger, line, cio.scrubber.Verbose())

	return true
}
