package specrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-specrun/discovery"
	"github.com/ethereum-optimism/infra/op-specrun/exitcodes"
	"github.com/ethereum-optimism/infra/op-specrun/flags"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

// NewApp builds the op-specrun CLI. discoverer may be nil to use discovery.Default.
func NewApp(version string, discoverer *discovery.Discoverer) *cli.App {
	app := cli.NewApp()
	app.Version = version
	app.Name = "op-specrun"
	app.Usage = "Behaviour specification runner"
	app.Description = "op-specrun discovers registered specifications and runs them through Before, On, When, assertions and Finally"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(MainAction(version, discoverer))
	app.ExitErrHandler = ExitErrHandler
	return app
}

// MainAction creates the specrun lifecycle from the CLI context
func MainAction(version string, discoverer *discovery.Discoverer) cliapp.LifecycleAction {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		logCfg := oplog.ReadCLIConfig(ctx)
		log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
		oplog.SetGlobalLogHandler(log.Handler())
		oplog.SetupDefaults()

		cfg, err := NewConfig(ctx, log)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
		}
		cfg.Log.Debug("Config", "config", cfg)

		svc, err := New(ctx.Context, cfg, version, discoverer, closeApp)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create specrun: %w", err))
		}
		return svc, nil
	}
}

// ExitCode maps an error returned by the app to a process exit code
func ExitCode(err error) int {
	var exitErr cli.ExitCoder
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.SpecFailure
	}
}

// ExitErrHandler exits with code 1 for specification failures and 2 for runtime errors
func ExitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), ExitCode(err)))
}
