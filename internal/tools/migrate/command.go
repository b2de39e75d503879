package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-auth/internal/database"
	"github.com/sandeepkv93/credential-auth/internal/di"
	"github.com/sandeepkv93/credential-auth/internal/tools/common"
)

const toolName = "migrate"

func NewRootCommand() *cobra.Command {
	opts := &common.Options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Credential schema migration tooling",
	}
	common.BindFlags(cmd, opts)

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *common.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply the users schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, toolName, "up", func(ctx context.Context) ([]string, error) {
				runner, cleanup, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				defer cleanup()

				if err := runner.Run(ctx); err != nil {
					return nil, fmt.Errorf("apply schema: %w", err)
				}
				st, err := runner.Status(ctx)
				if err != nil {
					return nil, err
				}
				return append([]string{"schema migration applied"}, statusDetails(st)...), nil
			})
		},
	}
}

func newStatusCommand(opts *common.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the users schema and credential counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, toolName, "status", func(ctx context.Context) ([]string, error) {
				runner, cleanup, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				defer cleanup()

				st, err := runner.Status(ctx)
				if err != nil {
					return nil, err
				}
				return statusDetails(st), nil
			})
		},
	}
}

func newPlanCommand(opts *common.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what migrate up would change (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return common.Run(opts, toolName, "plan", func(ctx context.Context) ([]string, error) {
				runner, cleanup, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				defer cleanup()

				st, err := runner.Status(ctx)
				if err != nil {
					return nil, err
				}
				return planDetails(st), nil
			})
		},
	}
}

func statusDetails(st *database.MigrationStatus) []string {
	details := []string{
		fmt.Sprintf("users table: %t", st.UsersTable),
		fmt.Sprintf("email unique index: %t", st.EmailUniqueIndex),
		fmt.Sprintf("credential column: %t", st.PasswordColumn),
		fmt.Sprintf("confirmation column: %t", st.ConfirmedColumn),
	}
	if st.UsersTable {
		details = append(details,
			fmt.Sprintf("users: %d", st.Users),
			fmt.Sprintf("users with credential: %d", st.UsersWithPassword),
		)
	}
	return append(details, "checked at: "+st.CheckedAt)
}

func planDetails(st *database.MigrationStatus) []string {
	if !st.Pending() {
		return []string{"schema up to date", "no mutation executed in plan mode"}
	}
	var details []string
	if !st.UsersTable {
		details = append(details, "would create table users")
	} else {
		if !st.PasswordColumn {
			details = append(details, "would add column users.password_hash")
		}
		if !st.ConfirmedColumn {
			details = append(details, "would add column users.confirmed_at")
		}
	}
	if !st.EmailUniqueIndex {
		details = append(details, "would create unique index idx_users_email")
	}
	return append(details, "no mutation executed in plan mode")
}
