package common

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/observability"
	"github.com/sandeepkv93/credential-auth/internal/tools/ui"
)

const failureExitCode = 3

type Options struct {
	EnvFile string
	Timeout time.Duration
	CI      bool
}

func BindFlags(cmd *cobra.Command, opts *Options) {
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.CI, "ci", false, "non-interactive machine-readable output")
}

// Run loads the env file, executes fn (behind the interactive view unless
// --ci is set) and reports the outcome. A failure is returned as an
// *ExitError.
func Run(opts *Options, tool, command string, fn func(context.Context) ([]string, error)) error {
	title := tool + " " + command
	if err := LoadEnvFile(opts.EnvFile); err != nil {
		return finish(opts, tool, command, title, nil, err)
	}

	var (
		details []string
		err     error
	)
	if opts.CI {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		details, err = fn(ctx)
		cancel()
	} else {
		details, err = ui.Run(title, opts.Timeout, fn)
	}
	return finish(opts, tool, command, title, details, err)
}

func finish(opts *Options, tool, command, title string, details []string, err error) error {
	status := "success"
	if err != nil {
		status = "failure"
	}
	observability.RecordToolCommandRun(context.Background(), tool, command, status)
	if opts.CI {
		PrintCIResult(err == nil, title, details, err)
	}
	if err != nil {
		return &ExitError{Code: failureExitCode, Err: err}
	}
	return nil
}
