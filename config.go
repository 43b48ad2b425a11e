package unittest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-unittest/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Sources              []string // module source files, in command-line order
	InstructionBound     uint64   // per-test instruction ceiling
	Filter               string   // substring a test's qualified name must contain
	NumThreads           int      // size of the worker pool
	ReportStatistics     bool
	ReportStorageOnError bool
	CheckStacklessVM     bool // cross-check every test on the stackless engine
	Verbose              bool
	Color                bool
	List                 bool   // print the selected tests instead of running them
	LogDir               string // where the plain-text summary is stored; empty disables it
	MetricsFile          string // Prometheus textfile written after the run; empty disables it
	Log                  log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	sources, err := flags.CheckSources(ctx)
	if err != nil {
		return nil, err
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	cfg := &Config{
		Sources:              sources,
		InstructionBound:     ctx.Uint64(flags.Instructions.Name),
		Filter:               ctx.String(flags.Filter.Name),
		NumThreads:           ctx.Int(flags.Threads.Name),
		ReportStatistics:     ctx.Bool(flags.Statistics.Name),
		ReportStorageOnError: ctx.Bool(flags.StateOnError.Name),
		CheckStacklessVM:     ctx.Bool(flags.Stackless.Name),
		Verbose:              ctx.Bool(flags.Verbose.Name),
		Color:                ctx.Bool(flags.Color.Name),
		List:                 ctx.Bool(flags.List.Name),
		LogDir:               logDir,
		MetricsFile:          ctx.String(flags.MetricsFile.Name),
		Log:                  log,
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check validates the settings that cannot be expressed by flag types alone
func (c *Config) Check() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one source file is required")
	}
	if c.InstructionBound == 0 {
		return errors.New("instruction bound must be at least 1")
	}
	if c.NumThreads <= 0 {
		return fmt.Errorf("thread count must be at least 1, got %d", c.NumThreads)
	}
	if c.Log == nil {
		return errors.New("logger is required")
	}
	return nil
}
