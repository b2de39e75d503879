package hashbench

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/di"
	"github.com/sandeepkv93/credential-auth/internal/tools/common"
)

type options struct {
	common.Options
	profile     string
	duration    time.Duration
	rate        int
	concurrency int
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "hashbench", Short: "Measure credential verification cost under the configured parameters"}
	common.BindFlags(cmd, &opts.Options)
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "mixed", "credential mix: current|legacy|mixed|wrong-password")
	cmd.PersistentFlags().DurationVar(&opts.duration, "duration", 15*time.Second, "benchmark duration")
	cmd.PersistentFlags().IntVar(&opts.rate, "rate", 20, "verifications started per second")
	cmd.PersistentFlags().IntVar(&opts.concurrency, "concurrency", 6, "concurrent workers")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the verification benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Timeout = opts.duration + 15*time.Second
			return common.Run(&opts.Options, "hashbench", "run", func(ctx context.Context) ([]string, error) {
				hasher, err := di.InitializeHasher()
				if err != nil {
					return nil, err
				}
				res, err := Run(ctx, hasher, Config{
					Profile:     opts.profile,
					Duration:    opts.duration,
					Rate:        opts.rate,
					Concurrency: opts.concurrency,
				})
				if err != nil {
					return nil, err
				}
				p := hasher.Params()
				return []string{
					fmt.Sprintf("params=m=%d,t=%d,p=%d", p.MemoryKiB, p.Time, p.Threads),
					fmt.Sprintf("total_ops=%d", res.TotalOps),
					fmt.Sprintf("failures=%d", res.Failures),
					fmt.Sprintf("valid=%d", res.Valid),
					fmt.Sprintf("valid_needs_rehash=%d", res.NeedsRehash),
					fmt.Sprintf("invalid=%d", res.Invalid),
					fmt.Sprintf("mean_latency=%s", res.MeanLatency),
					fmt.Sprintf("max_latency=%s", res.MaxLatency),
				}, nil
			})
		},
	}
}
