package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_SPECRUN"

var (
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to the run plan (eg. 'plan.yaml'). Without a plan every discovered specification runs in the default gate.",
	}
	Gate = &cli.StringFlag{
		Name:    "gate",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GATE"),
		Usage:   "Gate to run (eg. 'release'). Runs every gate of the plan when omitted.",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-run specification logs and summaries",
	}
	GuardAssertions = &cli.BoolFlag{
		Name:    "guard-assertions",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GUARD_ASSERTIONS"),
		Usage:   "Record a panic raised while evaluating assertions as a failed specification instead of aborting the run",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates while specifications run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when show-progress is enabled",
	}
	Stability = &cli.BoolFlag{
		Name:    "stability",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STABILITY"),
		Usage:   "Repeat the run and report which specifications do not pass consistently",
	}
	StabilityIterations = &cli.IntFlag{
		Name:    "stability-iterations",
		Value:   10,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STABILITY_ITERATIONS"),
		Usage:   "Number of runs in stability mode",
	}
)

var optionalFlags = []cli.Flag{
	Plan,
	Gate,
	RunInterval,
	LogDir,
	GuardAssertions,
	ShowProgress,
	ProgressInterval,
	Stability,
	StabilityIterations,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}

func CheckRequired(ctx *cli.Context) error {
	return opflags.CheckRequiredXor(ctx)
}
