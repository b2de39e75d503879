package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/di"
	probes "github.com/sandeepkv93/credential-auth/internal/health"
	"github.com/sandeepkv93/credential-auth/internal/tools/common"
)

var ErrNotReady = errors.New("one or more dependencies are unhealthy")

func NewRootCommand() *cobra.Command {
	opts := &common.Options{}
	cmd := &cobra.Command{Use: "health", Short: "Dependency readiness checks"}
	common.BindFlags(cmd, opts)
	cmd.AddCommand(&cobra.Command{
		Use:   "ready",
		Short: "Probe the database, redis and the password hasher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, "health", "ready", func(ctx context.Context) ([]string, error) {
				a, cleanup, err := di.InitializeApp(ctx)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				ready, results := a.Readiness.Ready(ctx)
				details := resultDetails(results)
				if !ready {
					return details, ErrNotReady
				}
				return details, nil
			})
		},
	})
	return cmd
}

func resultDetails(results []probes.CheckResult) []string {
	details := make([]string, 0, len(results))
	for _, r := range results {
		line := fmt.Sprintf("%s: ok (%dms)", r.Name, r.LatencyMS)
		if !r.Healthy {
			line = fmt.Sprintf("%s: failed (%dms): %s", r.Name, r.LatencyMS, r.Error)
		}
		details = append(details, line)
	}
	return details
}
