package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/config"
	"github.com/shaiso/mrot/internal/engine"
)

// PlannedStep — шаг в порядке выполнения (вывод `mrot plan --json`).
type PlannedStep struct {
	Position   int      `json:"position"`
	Step       string   `json:"step"`
	Target     string   `json:"target"`
	WorkflowID string   `json:"workflow_id"`
	Ref        string   `json:"ref"`
	DependsOn  []string `json:"depends_on,omitempty"`
}

// NewPlanCmd создаёт команду вывода порядка выполнения без запуска workflow.
func NewPlanCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Validate the orchestration and print the execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			spec, err := config.LoadSpec(file)
			if err != nil {
				return err
			}

			g, order, err := engine.Plan(spec)
			if err != nil {
				return err
			}

			planned := make([]PlannedStep, len(order))
			rows := make([][]string, len(order))
			for i, idx := range order {
				step := g.Nodes[idx].Step
				ref := step.Ref
				if ref == "" {
					ref = app.Config.GitHub.DefaultRef
				}

				planned[i] = PlannedStep{
					Position:   i + 1,
					Step:       step.Name,
					Target:     step.Target(),
					WorkflowID: step.WorkflowID,
					Ref:        ref,
					DependsOn:  step.DependsOn,
				}
				rows[i] = []string{
					strconv.Itoa(i + 1),
					step.Name,
					step.Target(),
					step.WorkflowID,
					ref,
					strings.Join(step.DependsOn, ","),
				}
			}

			out.Print([]string{"#", "STEP", "TARGET", "WORKFLOW", "REF", "DEPENDS_ON"}, rows, planned)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", config.DefaultSpecPath, "Orchestration file")

	return cmd
}
