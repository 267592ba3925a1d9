package main

import (
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/app"
	"github.com/Freeeeeet/tutoring_core/internal/gateway/payment"
	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/notify"
	"github.com/Freeeeeet/tutoring_core/internal/repository"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage database migrations",
		Long: `Apply or roll back goose migrations from MIGRATIONS_PATH.

Examples:
  tutorctl migrate
  tutorctl migrate down
  tutorctl migrate version`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			migrator, err := app.NewMigrator(e.pool, e.cfg.MigrationsPath, e.logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			switch action {
			case "up":
				return migrator.Up(cmd.Context())
			case "down":
				return migrator.Down(cmd.Context())
			case "version":
				version, err := migrator.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d\n", version)
				return nil
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}
	return cmd
}

func strikesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strikes",
		Short: "Inspect or reset teacher strikes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <teacher-id>",
		Short: "Show strike count and suspension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStrikes(cmd, args[0], func(strikes *service.StrikeService, teacherID int64) (*model.TeacherConductState, error) {
				return strikes.Get(cmd.Context(), teacherID)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <teacher-id>",
		Short: "Reset strikes and lift suspension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStrikes(cmd, args[0], func(strikes *service.StrikeService, teacherID int64) (*model.TeacherConductState, error) {
				return strikes.Reset(cmd.Context(), teacherID)
			})
		},
	})

	return cmd
}

func withStrikes(cmd *cobra.Command, arg string, fn func(*service.StrikeService, int64) (*model.TeacherConductState, error)) error {
	teacherID, err := parseTeacherID(arg)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	strikes := service.NewStrikeService(repository.NewConductRepository(e.pool), notify.Nop{}, e.logger)
	state, err := fn(strikes, teacherID)
	if err != nil {
		return err
	}

	printConduct(cmd, state)
	return nil
}

func printConduct(cmd *cobra.Command, state *model.TeacherConductState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "teacher:   %d\n", state.TeacherID)
	fmt.Fprintf(out, "strikes:   %d/%d\n", state.StrikeCount, model.SuspensionThreshold)
	fmt.Fprintf(out, "suspended: %t\n", state.IsSuspended)
}

func payoutLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payout-link <teacher-id>",
		Short: "Create a payout onboarding link for a teacher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teacherID, err := parseTeacherID(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			payments := payment.NewStripe(payment.Config{
				SecretKey:  e.cfg.StripeSecretKey,
				Currency:   e.cfg.Currency,
				ReturnURL:  e.cfg.PayoutReturnURL,
				RefreshURL: e.cfg.PayoutRefreshURL,
			}, e.logger.Named("stripe"))

			payouts := service.NewPayoutService(repository.NewUserRepository(e.pool), payments, e.logger)
			link, err := payouts.OnboardingLink(cmd.Context(), teacherID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "account: %s\nurl:     %s\n", link.AccountID, link.URL)
			return nil
		},
	}
}
