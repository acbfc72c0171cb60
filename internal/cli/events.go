package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/mq"
)

// NewEventsCmd создаёт команду чтения событий из RabbitMQ (требует RABBITMQ_URL).
func NewEventsCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var bindings []string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow step and orchestration events published by other mrot processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()
			ctx := cmd.Context()

			conn, err := app.OpenBroker(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			keys := make([]mq.RoutingKey, len(bindings))
			for i, b := range bindings {
				keys[i] = mq.RoutingKey(b)
			}

			sub, err := mq.NewSubscriber(conn, mq.SubscriberConfig{
				Bindings: keys,
				Handler:  eventPrinter(out),
				Logger:   app.Logger,
			})
			if err != nil {
				return err
			}

			err = sub.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&bindings, "routing-key", []string{string(mq.RoutingKeyAll)},
		"Routing key patterns to follow (step.finished, orchestration.finished, #)")

	return cmd
}

// eventPrinter выводит каждое событие строкой (или JSON с --json).
func eventPrinter(out *Output) mq.Handler {
	return func(_ context.Context, msg *mq.Message) error {
		if out.jsonMode {
			out.JSON(msg)
			return nil
		}

		line, err := formatEvent(msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(out.w, line)
		return nil
	}
}

// formatEvent форматирует событие для терминала.
func formatEvent(msg *mq.Message) (string, error) {
	ts := msg.Timestamp.Format(time.RFC3339)

	switch msg.Type {
	case mq.MessageTypeStepFinished:
		p, err := mq.ParsePayload[mq.StepFinishedPayload](msg)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("%s  %-22s  %s  step=%s target=%s status=%s polls=%d",
			ts, msg.Type, p.OrchestrationID, p.Step, p.Target, p.Status, p.Polls)
		if p.Reason != "" {
			line += fmt.Sprintf(" reason=%q", p.Reason)
		}
		return line, nil

	case mq.MessageTypeOrchestrationFinished:
		p, err := mq.ParsePayload[mq.OrchestrationFinishedPayload](msg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s  %-22s  %s  name=%s status=%s duration=%s",
			ts, msg.Type, p.OrchestrationID, p.Name, p.Status,
			formatDuration(time.Duration(p.DurationMs)*time.Millisecond)), nil

	default:
		return fmt.Sprintf("%s  %s  %s", ts, msg.Type, msg.ID), nil
	}
}
