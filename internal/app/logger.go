package app

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/config"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// NewLogger builds the run logger: text on w (debug with --verbose) plus
// NDJSON at debug level in the log file. The returned closer closes the file.
func NewLogger(opts config.Options, w io.Writer) (ports.Logger, io.Closer, error) {
	level := ports.LevelInfo
	if opts.Verbose {
		level = ports.LevelDebug
	}
	console := logging.NewConsoleLogger(
		logging.WithOutput(w),
		logging.WithLevel(level),
	)

	path := opts.ResolvePath(opts.LogFile)
	file, err := logging.OpenFileLogger(path, logging.WithFileLevel(ports.LevelDebug))
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return logging.NewMultiLogger(console, file), file, nil
}
