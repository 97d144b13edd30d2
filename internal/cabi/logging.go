package cabi

import (
	"os"

	"github.com/sirupsen/logrus"
)

// logLevelEnv names the environment variable read when the library loads.
const logLevelEnv = "CALLBACK_TEST_LOG_LEVEL"

// defaultLogLevel keeps a host process quiet unless asked otherwise.
const defaultLogLevel = logrus.WarnLevel

func init() {
	logrus.SetLevel(resolveLogLevel(os.Getenv(logLevelEnv)))
}

// resolveLogLevel parses value as a logrus level, falling back to
// defaultLogLevel when it is empty or invalid.
func resolveLogLevel(value string) logrus.Level {
	if value == "" {
		return defaultLogLevel
	}

	level, err := logrus.ParseLevel(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "resolveLogLevel",
			"value":    value,
			"error":    err.Error(),
		}).Warn("Ignoring invalid log level")
		return defaultLogLevel
	}
	return level
}
