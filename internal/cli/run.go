package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/config"
	"github.com/shaiso/mrot/internal/domain"
)

// NewRunCmd создаёт команду запуска оркестрации.
func NewRunCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var file string
	var stopOnFailure bool
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestration: trigger workflows in dependency order",
		Long: `Validates the orchestration file, then triggers each step's workflow
and waits for it to finish before starting its dependents.

Exits with code 1 if any step failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			if cmd.Flags().Changed("stop-on-failure") {
				app.Config.StopOnFailure = stopOnFailure
			}
			if cmd.Flags().Changed("max-parallel") {
				app.Config.MaxParallel = maxParallel
			}

			spec, err := config.LoadSpec(file)
			if err != nil {
				return err
			}

			runner, cleanup, err := app.NewRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Run(cmd.Context(), spec)
			if err != nil {
				return err
			}

			out.Report(report)

			if report.Status != domain.OrchestrationStatusSucceeded {
				return ErrOrchestrationFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", config.DefaultSpecPath, "Orchestration file")
	cmd.Flags().BoolVar(&stopOnFailure, "stop-on-failure", true, "Do not dispatch new steps after a step fails (overrides MROT_STOP_ON_FAILURE)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 1, "Maximum number of steps running at once (overrides MROT_MAX_PARALLEL)")

	return cmd
}
