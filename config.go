package specrun

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-specrun/flags"
	"github.com/ethereum-optimism/infra/op-specrun/registry"
	"github.com/ethereum-optimism/infra/op-specrun/service"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	PlanFile            string        // Optional run plan, everything runs in the default gate without it
	TargetGate          string        // Runs every gate when empty
	RunInterval         time.Duration // Interval between runs
	RunOnce             bool          // Indicates if the service should exit after one run
	LogDir              string        // Directory to store specification logs
	GuardAssertions     bool          // Capture assertion panics into results instead of aborting the run
	ShowProgress        bool          // Whether to show periodic progress updates during a run
	ProgressInterval    time.Duration // Interval between progress updates when ShowProgress is 'true'
	Stability           bool          // Repeat runs to find unstable specifications
	StabilityIterations int           // Number of runs in stability mode
	HealthzAddr         string        // Empty disables the healthz server
	Metrics             opmetrics.CLIConfig
	Out                 io.Writer // Console results destination
	Log                 log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	planFile := ctx.String(flags.Plan.Name)
	gate := ctx.String(flags.Gate.Name)
	if planFile == "" && gate != "" && gate != registry.DefaultGate {
		return nil, fmt.Errorf("gate %q requires a run plan", gate)
	}

	if planFile != "" {
		abs, err := filepath.Abs(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for run plan '%s': %w", planFile, err)
		}
		planFile = abs
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err := filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	stability := ctx.Bool(flags.Stability.Name)
	iterations := ctx.Int(flags.StabilityIterations.Name)
	if stability && iterations < 1 {
		return nil, fmt.Errorf("stability mode needs at least one iteration, got %d", iterations)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	var out io.Writer = os.Stdout
	if ctx.App != nil && ctx.App.Writer != nil {
		out = ctx.App.Writer
	}

	return &Config{
		PlanFile:            planFile,
		TargetGate:          gate,
		RunInterval:         runInterval,
		RunOnce:             runInterval == 0 || stability,
		LogDir:              logDir,
		GuardAssertions:     ctx.Bool(flags.GuardAssertions.Name),
		ShowProgress:        ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval:    ctx.Duration(flags.ProgressInterval.Name),
		Stability:           stability,
		StabilityIterations: iterations,
		HealthzAddr:         service.DefaultHealthzAddr,
		Metrics:             metricsCfg,
		Out:                 out,
		Log:                 log,
	}, nil
}
