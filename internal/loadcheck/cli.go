package loadcheck

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/scorekeep/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger, writing to stdout and, when
// logFile is set, appending to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load check tool.
func ShowHelp() {
	os.Stdout.WriteString(`scorekeep load check
====================

Fires concurrent score submissions and comments at a running scorekeep
service and verifies that no update was lost.

Usage:
  go run ./cmd/loadcheck [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -category string    Leaderboard category (default: a fresh random one)
  -collection string  Collection for the commented submission (default "general")
  -identities int     Distinct identities submitting scores (default 200)
  -comments int       Concurrent comments on one submission (default 100)
  -retention int      Leaderboard retention configured on the service (default 50)
  -workers int        Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -log string         Also append logs to this file
  -verbose            Enable verbose logging
  -help               Show this help message
`)
}
