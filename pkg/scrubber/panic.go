package scrubber

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

const (
	crashReportFilename   = "scrubber-crash-%s.log"
	crashReportTimeLayout = "20060102-150405"
)

// crashState is what the scrubber was doing when it went down
type crashState struct {
	version  string
	source   string
	tracking bool
	value    float64
	speed    float64
}

// writeCrashReport stores the panic, the scrubber's state and the stack trace in dir,
// returning the report's path
func writeCrashReport(dir string, now time.Time, recovered interface{}, state crashState, stack []byte) (string, error) {
	if err := util.EnsureDirExists(dir); err != nil {
		return "", fmt.Errorf("ensure crash report dir exists: %w", err)
	}

	report := &strings.Builder{}
	fmt.Fprintf(report, "scrubber crash report, %s\n\n", now.Format(time.RFC3339))
	fmt.Fprintf(report, "panic:    %v\n", recovered)
	fmt.Fprintf(report, "version:  %s\n", state.version)
	fmt.Fprintf(report, "input:    %s\n", state.source)
	fmt.Fprintf(report, "tracking: %t\n", state.tracking)
	fmt.Fprintf(report, "value:    %v\n", state.value)
	fmt.Fprintf(report, "speed:    %v\n\n", state.speed)
	fmt.Fprintf(report, "%s", stack)

	path := filepath.Join(dir, fmt.Sprintf(crashReportFilename, now.Format(crashReportTimeLayout)))

	if err := os.WriteFile(path, []byte(report.String()), 0o644); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}

	return path, nil
}

func (s *Scrubber) crashState() crashState {
	state := crashState{
		version: s.version,
		source:  s.config.Snapshot().Input.Source,
	}

	if s.controller != nil {
		state.tracking = s.controller.Tracking()
		state.speed = s.controller.Speed()
	}

	if s.model != nil {
		state.value = s.model.Value()
	}

	return state
}

// recoverFromPanic turns a panic in the run loop into a crash report and a non-zero exit
func (s *Scrubber) recoverFromPanic() {
	r := recover()
	if r == nil {
		return
	}

	path, err := writeCrashReport(logDirectory, time.Now(), r, s.crashState(), debug.Stack())
	if err != nil {
		// nowhere left to put it, let the runtime print it instead
		panic(fmt.Sprintf("%v (crash report failed: %v)", r, err))
	}

	s.logger.Errorw("Scrubber panicked, crash report written",
		"crashReport", path,
		"error", r)

	s.notifier.Notify("The scrubber crashed",
		fmt.Sprintf("A crash report was saved to %s", path))

	os.Exit(1)
}
