package main

import (
	"fmt"

	"github.com/brakes/brakes-estimator/internal/estimate/upload"
	"github.com/spf13/cobra"
)

func (a *app) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a road safety audit report and print the estimate summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := upload.DetectFile(args[0])
			if err != nil {
				return err
			}

			notifier, closeNotifier := a.publisher()
			defer closeNotifier()

			ctrl := upload.NewController(a.client,
				upload.WithNotifier(notifier),
				upload.WithNotifyTimeout(a.cfg.Messaging.PublishTimeout),
				upload.WithMetrics(a.metrics),
				upload.WithLogger(a.log),
			)

			lastPercent := -1
			lastState := upload.StateIdle
			ctrl.OnChange(func(task upload.Task) {
				switch {
				case task.State == upload.StateTransferring && task.Progress != lastPercent:
					lastPercent = task.Progress
					fmt.Fprintf(cmd.ErrOrStderr(), "\ruploading %s: %3d%%", file.Name, task.Progress)
				case task.State == upload.StateServerProcessing && lastState != upload.StateServerProcessing:
					fmt.Fprintf(cmd.ErrOrStderr(), "\nprocessing on server...\n")
				}
				lastState = task.State
			})

			if err := ctrl.Select(file); err != nil {
				return err
			}
			if _, err := ctrl.Start(cmd.Context()); err != nil {
				return err
			}

			task, err := ctrl.Wait(cmd.Context())
			if err != nil {
				ctrl.Reset()
				return fmt.Errorf("upload abandoned: %w", err)
			}

			switch task.State {
			case upload.StateSucceeded:
				if a.asJSON {
					return printJSON(a.out, task.Summary)
				}
				printUploadResult(a.out, task.Summary)
				return nil
			case upload.StateFailed:
				return task.Failure
			}
			return fmt.Errorf("upload ended in state %s", task.State)
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <estimate-id>",
		Short: "Show the processing status of an uploaded document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client.UploadStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, status)
			}
			fmt.Fprintf(a.out, "%s (%s): %s, %d items, total %s, confidence %s\n",
				status.EstimateID, status.Filename, status.Status, status.ItemsCount, inr(status.TotalCost), pct(status.Confidence))
			return nil
		},
	}
}

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the estimation service and its dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				if err := printJSON(a.out, health); err != nil {
					return err
				}
			} else {
				printHealth(a.out, health)
			}
			if !health.Healthy() {
				return fmt.Errorf("service is %s: %v", health.Status, health.UnhealthyServices)
			}
			return nil
		},
	}
}
