package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/di"
	"github.com/sandeepkv93/credential-auth/internal/domain"
	"github.com/sandeepkv93/credential-auth/internal/service"
	"github.com/sandeepkv93/credential-auth/internal/tools/common"
)

const toolName = "credentials"

func NewRootCommand() *cobra.Command {
	opts := &common.Options{}
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Password credential tooling",
		Long:  "Password credential tooling. Commands that take a password read it from the first line of stdin.",
	}
	common.BindFlags(cmd, opts)

	cmd.AddCommand(
		newHashCommand(opts),
		newVerifyCommand(opts),
		newCheckEmailCommand(opts),
		newAuditCommand(opts),
	)
	return cmd
}

func newHashCommand(opts *common.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Derive a credential artifact under the configured parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := common.ReadSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return common.Run(opts, toolName, "hash", func(ctx context.Context) ([]string, error) {
				hasher, err := di.InitializeHasher()
				if err != nil {
					return nil, err
				}
				artifact, err := hasher.Hash(ctx, secret)
				if err != nil {
					return nil, err
				}
				p := hasher.Params()
				return []string{
					artifact,
					fmt.Sprintf("params: m=%d,t=%d,p=%d", p.MemoryKiB, p.Time, p.Threads),
				}, nil
			})
		},
	}
}

func newVerifyCommand(opts *common.Options) *cobra.Command {
	var (
		email            string
		requireConfirmed bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Authenticate an account, upgrading its stored credential if outdated",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("email is required")
			}
			secret, err := common.ReadSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return common.Run(opts, toolName, "verify", func(ctx context.Context) ([]string, error) {
				a, cleanup, err := di.InitializeApp(ctx)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				authenticate := a.Auth.Authenticate
				if requireConfirmed {
					authenticate = a.Auth.AuthenticateConfirmed
				}
				user, err := authenticate(ctx, email, string(secret))
				if err != nil {
					if kind, ok := service.FailureKindOf(err); ok {
						return []string{"failure: " + string(kind)}, err
					}
					return nil, err
				}
				return userDetails(user), nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&requireConfirmed, "require-confirmed", false, "also fail when the email is unconfirmed")
	return cmd
}

func newCheckEmailCommand(opts *common.Options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "check-email",
		Short: "Check that no account uses an email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("email is required")
			}
			return common.Run(opts, toolName, "check-email", func(ctx context.Context) ([]string, error) {
				a, cleanup, err := di.InitializeApp(ctx)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				if err := a.Auth.EnsureEmailAvailable(ctx, email); err != nil {
					return nil, err
				}
				return []string{"available: " + strings.ToLower(strings.TrimSpace(email))}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to check")
	return cmd
}

func newAuditCommand(opts *common.Options) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Count stored credentials that are current, outdated or malformed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, toolName, "audit", func(ctx context.Context) ([]string, error) {
				a, cleanup, err := di.InitializeApp(ctx)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				report, err := Audit(ctx, a.Users, a.Hasher, batchSize)
				if err != nil {
					return nil, err
				}
				return report.Details(), nil
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "rows loaded per batch")
	return cmd
}

func userDetails(user *domain.PublicUser) []string {
	confirmed := "unconfirmed"
	if at := user.EmailConfirmedAt(); at != nil {
		confirmed = at.UTC().Format("2006-01-02T15:04:05Z")
	}
	return []string{
		fmt.Sprintf("user_id: %d", user.ID),
		"email: " + user.Email,
		"confirmed: " + confirmed,
	}
}
