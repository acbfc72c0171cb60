package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/repo"
)

// NewHistoryCmd создаёт группу команд для истории отчётов (требует DB_URL).
func NewHistoryCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var name string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past orchestration reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			reports, closeRepo, err := app.OpenReportRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			list, err := reports.List(cmd.Context(), repo.ReportFilter{
				Name:   name,
				Status: domain.OrchestrationStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out.Reports(list)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by orchestration name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	cmd.AddCommand(newHistoryShowCmd(appFn, outputFn))

	return cmd
}

func newHistoryShowCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a past orchestration report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report ID %q: %w", args[0], err)
			}

			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			reports, closeRepo, err := app.OpenReportRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			report, err := reports.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			out.Report(report)
			return nil
		},
	}
}
