package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/jax-b/scrubber/pkg/scrubber"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose bool
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs (useful for debugging pointer input)")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.Parse()
}

func main() {

	// first we need a logger
	logger, err := scrubber.NewLogger(buildType)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	// a .env next to the binary may override config values (SCRUBBER_INPUT_COM_PORT etc.)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		named.Warnw("Failed to load .env file", "error", err)
	}

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	// provide a fair warning if the user's running in verbose mode
	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	// create the scrubber instance
	s, err := scrubber.NewScrubber(logger, verbose)
	if err != nil {
		named.Fatalw("Failed to create scrubber object", "error", err)
	}

	// if injected by build process, set version info to show up in the logs
	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		s.SetVersion(versionString)
	}

	// onwards, to glory
	if err = s.Initialize(); err != nil {
		named.Fatalw("Failed to initialize scrubber", "error", err)
	}
}
