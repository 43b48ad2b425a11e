package flags

import (
	"errors"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_UNITTEST"

var (
	Instructions = &cli.Uint64Flag{
		Name:    "instructions",
		Aliases: []string{"i"},
		Value:   5000,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INSTRUCTIONS"),
		Usage:   "Bound the number of instructions that can be executed by any one test",
	}
	Filter = &cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILTER"),
		Usage:   "Only run tests whose <module>::<function> name contains this string",
	}
	Threads = &cli.IntFlag{
		Name:    "threads",
		Aliases: []string{"t"},
		Value:   8,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "THREADS"),
		Usage:   "Number of worker threads used to run tests",
	}
	Statistics = &cli.BoolFlag{
		Name:    "statistics",
		Aliases: []string{"s"},
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATISTICS"),
		Usage:   "Report per-test instruction counts and timings at the end of testing",
	}
	StateOnError = &cli.BoolFlag{
		Name:    "state-on-error",
		Aliases: []string{"g"},
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATE_ON_ERROR"),
		Usage:   "Show the storage state at the end of execution of a failing test",
	}
	Stackless = &cli.BoolFlag{
		Name:    "stackless",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STACKLESS"),
		Usage:   "Also run every test on the stackless interpreter and fail tests on which the engines disagree",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
		Usage:   "Print arguments, instruction counts and failure reasons on progress lines",
	}
	Color = &cli.BoolFlag{
		Name:    "color",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COLOR"),
		Usage:   "Colorize status labels and tables",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LIST"),
		Usage:   "List the tests that would run, then exit without running them",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory to store a plain-text copy of the report in (eg. 'logs'). Empty disables it.",
	}
	MetricsFile = &cli.StringFlag{
		Name:    "metrics-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "METRICS_FILE"),
		Usage:   "Write Prometheus metrics in the text format to this file after the run. Empty disables it.",
	}
)

var optionalFlags = []cli.Flag{
	Instructions,
	Filter,
	Threads,
	Statistics,
	StateOnError,
	Stackless,
	Verbose,
	Color,
	List,
	LogDir,
	MetricsFile,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}

// CheckSources returns the positional source files, failing when there are none
func CheckSources(ctx *cli.Context) ([]string, error) {
	sources := ctx.Args().Slice()
	if len(sources) == 0 {
		return nil, errors.New("at least one source file is required")
	}
	return sources, nil
}
