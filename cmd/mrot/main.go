// mrot — оркестратор CI workflow в нескольких репозиториях.
//
// Читает файл оркестрации, строит порядок шагов по зависимостям
// и по очереди запускает GitHub Actions workflow, дожидаясь каждого.
//
// Использование:
//
//	mrot [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить оркестрацию
//	plan      Проверить файл и вывести порядок выполнения
//	schedule  Выполнять оркестрацию по cron-расписанию
//	history   История отчётов (требует DB_URL)
//	events    Поток событий (требует RABBITMQ_URL)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/cli"
	"github.com/shaiso/mrot/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	logger := telemetry.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "mrot",
		Short:         "mrot — multi-repo CI orchestrator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	var app *cli.App
	appFn := func() (*cli.App, error) {
		if app != nil {
			return app, nil
		}
		a, err := cli.NewApp(logger)
		if err != nil {
			return nil, err
		}
		app = a
		return app, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(appFn, outputFn),
		cli.NewPlanCmd(appFn, outputFn),
		cli.NewScheduleCmd(appFn, outputFn),
		cli.NewHistoryCmd(appFn, outputFn),
		cli.NewEventsCmd(appFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrOrchestrationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
