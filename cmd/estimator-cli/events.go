package main

import (
	"context"
	"fmt"

	"github.com/brakes/brakes-estimator/pkg/messaging"
	"github.com/spf13/cobra"
)

func (a *app) eventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe estimate lifecycle events on the broker",
	}

	var pattern string
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print lifecycle events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rmq, err := messaging.New(a.cfg.Messaging, a.log)
			if err != nil {
				return err
			}
			defer rmq.Close()

			consumer, err := messaging.NewConsumer(rmq, a.log)
			if err != nil {
				return err
			}
			if err := consumer.Subscribe(a.cfg.Messaging.Exchange, pattern); err != nil {
				return err
			}

			consumer.RegisterHandler(messaging.EventUploadSucceeded, func(ctx context.Context, ev *messaging.Event) error {
				var data messaging.UploadSucceededEvent
				if err := ev.UnmarshalData(&data); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s upload succeeded: %s -> %s, %d interventions, %s\n",
					ev.Timestamp.Format("15:04:05"), data.Filename, data.EstimateID, data.InterventionsFound, inr(data.TotalCost))
				return nil
			})
			consumer.RegisterHandler(messaging.EventUploadFailed, func(ctx context.Context, ev *messaging.Event) error {
				var data messaging.UploadFailedEvent
				if err := ev.UnmarshalData(&data); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s upload failed: %s: %s (%s)\n",
					ev.Timestamp.Format("15:04:05"), data.Filename, data.Message, data.Kind)
				return nil
			})
			consumer.HandleAll(func(ctx context.Context, ev *messaging.Event) error {
				fmt.Fprintf(a.out, "%s %s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, string(ev.Data))
				return nil
			})

			if err := consumer.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s for %q, interrupt to stop\n", a.cfg.Messaging.Exchange, pattern)
			<-cmd.Context().Done()
			return nil
		},
	}
	watch.Flags().StringVar(&pattern, "pattern", "estimate.#", "routing key pattern")

	cmd.AddCommand(watch)
	return cmd
}
