package scrubber

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jax-b/scrubber/pkg/scrubber/util"
)

const (
	buildTypeNone    = ""
	buildTypeDev     = "dev"
	buildTypeRelease = "release"

	logDirectory = "logs"
	logFilename  = "scrubber-latest-run.log"

	logTimeLayout = "15:04:05.000"

	// wide enough for "scrubber.serial.<port>" and the like, so messages line up
	logNameWidth = 30
)

// NewLogger builds the scrubber's logger. Release builds write info and above to a file
// under logs/, anything else writes everything to stderr in color
func NewLogger(buildType string) (*zap.SugaredLogger, error) {
	var loggerConfig zap.Config

	switch buildType {
	case buildTypeRelease:
		if err := util.EnsureDirExists(logDirectory); err != nil {
			return nil, fmt.Errorf("ensure log directory exists: %w", err)
		}

		loggerConfig = releaseLoggerConfig()

	case buildTypeDev, buildTypeNone:
		loggerConfig = developmentLoggerConfig()

	default:
		return nil, fmt.Errorf("unknown build type %q", buildType)
	}

	loggerConfig.EncoderConfig.EncodeCaller = nil
	loggerConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(logTimeLayout))
	}
	loggerConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	loggerConfig.EncoderConfig.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("%-*s", logNameWidth, name))
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	sugar := logger.Sugar()
	sugar.Named("logger").Debugw("Logger ready",
		"buildType", buildType,
		"startedAt", time.Now().Format(time.RFC3339))

	return sugar, nil
}

func releaseLoggerConfig() zap.Config {
	loggerConfig := zap.NewProductionConfig()

	// pointer samples come in bursts, don't let zap drop any of them
	loggerConfig.Sampling = nil

	loggerConfig.Encoding = "console"
	loggerConfig.OutputPaths = []string{filepath.Join(logDirectory, logFilename)}
	loggerConfig.ErrorOutputPaths = []string{"stderr", filepath.Join(logDirectory, logFilename)}

	return loggerConfig
}

func developmentLoggerConfig() zap.Config {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return loggerConfig
}
