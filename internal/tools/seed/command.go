package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/sandeepkv93/credential-auth/internal/app"
	"github.com/sandeepkv93/credential-auth/internal/config"
	"github.com/sandeepkv93/credential-auth/internal/database"
	"github.com/sandeepkv93/credential-auth/internal/di"
	"github.com/sandeepkv93/credential-auth/internal/tools/common"
)

const toolName = "seed"

var ErrNotLocalEnv = errors.New("seed commands are limited to local-like environments")

type userOptions struct {
	email        string
	name         string
	confirmed    bool
	legacyBcrypt bool
}

func NewRootCommand() *cobra.Command {
	opts := &common.Options{}
	cmd := &cobra.Command{Use: "seed", Short: "Local account seed tooling"}
	common.BindFlags(cmd, opts)
	cmd.AddCommand(newUserCommand(opts), newDryRunCommand(opts), newConfirmEmailCommand(opts))
	return cmd
}

func newUserCommand(opts *common.Options) *cobra.Command {
	uo := &userOptions{}
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create or reset a local account; the password is read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(uo.email) == "" {
				return fmt.Errorf("email is required")
			}
			secret, err := common.ReadSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return common.Run(opts, toolName, "user", func(ctx context.Context) ([]string, error) {
				return withLocalApp(ctx, func(a *app.App) ([]string, error) {
					artifact, scheme, err := deriveArtifact(ctx, a, secret, uo.legacyBcrypt)
					if err != nil {
						return nil, err
					}
					user, created, err := database.SeedUser(ctx, a.DB, database.SeedUserInput{
						Email:     uo.email,
						Name:      uo.name,
						Artifact:  artifact,
						Confirmed: uo.confirmed,
					})
					if err != nil {
						return nil, err
					}
					action := "updated"
					if created {
						action = "created"
					}
					return []string{
						fmt.Sprintf("%s user %d: %s", action, user.ID, user.Email),
						"credential scheme: " + scheme,
						fmt.Sprintf("confirmed: %t", user.ConfirmedAt != nil),
					}, nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&uo.email, "email", "", "account email")
	cmd.Flags().StringVar(&uo.name, "name", "", "display name")
	cmd.Flags().BoolVar(&uo.confirmed, "confirmed", false, "mark the email confirmed")
	cmd.Flags().BoolVar(&uo.legacyBcrypt, "legacy-bcrypt", false, "store a bcrypt credential to exercise the upgrade path")
	return cmd
}

func newDryRunCommand(opts *common.Options) *cobra.Command {
	uo := &userOptions{}
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seed user would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, toolName, "dry-run", func(ctx context.Context) ([]string, error) {
				cfg, err := config.Load()
				if err != nil {
					return nil, err
				}
				return dryRunDetails(cfg, uo), nil
			})
		},
	}
	cmd.Flags().StringVar(&uo.email, "email", "", "account email")
	cmd.Flags().BoolVar(&uo.confirmed, "confirmed", false, "mark the email confirmed")
	cmd.Flags().BoolVar(&uo.legacyBcrypt, "legacy-bcrypt", false, "store a bcrypt credential")
	return cmd
}

func newConfirmEmailCommand(opts *common.Options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "confirm-email",
		Short: "Mark a local account's email confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("email is required")
			}
			return common.Run(opts, toolName, "confirm-email", func(ctx context.Context) ([]string, error) {
				return withLocalApp(ctx, func(a *app.App) ([]string, error) {
					if err := database.ConfirmLocalEmail(ctx, a.DB, email); err != nil {
						return nil, err
					}
					return []string{"marked email confirmed: " + strings.ToLower(strings.TrimSpace(email))}, nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to mark confirmed")
	return cmd
}

func withLocalApp(ctx context.Context, fn func(*app.App) ([]string, error)) ([]string, error) {
	a, cleanup, err := di.InitializeApp(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if !a.Config.IsLocalLike() {
		return nil, fmt.Errorf("%w: APP_ENV=%s", ErrNotLocalEnv, a.Config.Env)
	}
	return fn(a)
}

func deriveArtifact(ctx context.Context, a *app.App, secret []byte, legacyBcrypt bool) (string, string, error) {
	if legacyBcrypt {
		artifact, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
		if err != nil {
			return "", "", err
		}
		return string(artifact), "bcrypt", nil
	}
	artifact, err := a.Hasher.Hash(ctx, secret)
	if err != nil {
		return "", "", err
	}
	return artifact, "argon2id", nil
}

func dryRunDetails(cfg *config.Config, uo *userOptions) []string {
	if !cfg.IsLocalLike() {
		return []string{fmt.Sprintf("refusing: APP_ENV=%s is not local-like", cfg.Env)}
	}
	email := strings.ToLower(strings.TrimSpace(uo.email))
	if email == "" {
		email = "<email>"
	}
	scheme := fmt.Sprintf("argon2id m=%d,t=%d,p=%d", cfg.PasswordArgon2MemoryKiB, cfg.PasswordArgon2Time, cfg.PasswordArgon2Threads)
	if uo.legacyBcrypt {
		scheme = fmt.Sprintf("bcrypt cost=%d (upgraded on first login)", bcrypt.DefaultCost)
	}
	return []string{
		"would create or reset user: " + email,
		"credential scheme: " + scheme,
		fmt.Sprintf("would mark email confirmed: %t", uo.confirmed),
	}
}
