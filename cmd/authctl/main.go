package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/tools/common"
	"github.com/sandeepkv93/credential-auth/internal/tools/credentials"
	"github.com/sandeepkv93/credential-auth/internal/tools/hashbench"
	"github.com/sandeepkv93/credential-auth/internal/tools/health"
	"github.com/sandeepkv93/credential-auth/internal/tools/migrate"
	"github.com/sandeepkv93/credential-auth/internal/tools/seed"
)

func main() {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tooling for the credential-auth core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		credentials.NewRootCommand(),
		migrate.NewRootCommand(),
		seed.NewRootCommand(),
		health.NewRootCommand(),
		hashbench.NewRootCommand(),
	)

	if err := root.Execute(); err != nil {
		var exitErr *common.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
