package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/internal/estimate/derive"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/internal/estimate/report"
	"github.com/spf13/cobra"
)

func (a *app) estimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Inspect, export and delete stored estimates",
	}
	cmd.AddCommand(
		a.estimateGetCommand(),
		a.estimateSummaryCommand(),
		a.estimateListCommand(),
		a.estimateDeleteCommand(),
		a.estimateExportCommand(),
		a.estimateViewCommand(),
		a.estimateWorkbookCommand(),
	)
	return cmd
}

func (a *app) estimateGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <estimate-id>",
		Short: "Print the full estimate as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := a.client.GetEstimate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, est)
		},
	}
}

func (a *app) estimateSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <estimate-id>",
		Short: "Print the per-item cost summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := a.client.GetSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, digest)
			}
			printDigest(a.out, digest)
			return nil
		},
	}
}

func (a *app) estimateListCommand() *cobra.Command {
	var (
		params client.ListParams
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored estimates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.StatusFilter = domain.Status(status)
			page, err := a.client.ListEstimates(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, page)
			}
			printEstimatePage(a.out, page)
			return nil
		},
	}
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "page size (1-100)")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "number of estimates to skip")
	cmd.Flags().StringVar(&status, "status", "", "only estimates in this status (processing, completed, error, pending)")
	return cmd
}

func (a *app) estimateDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <estimate-id>",
		Short: "Delete an estimate from the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.DeleteEstimate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			notifier, closeNotifier := a.publisher()
			defer closeNotifier()
			notifier.EstimateDeleted(cmd.Context(), result)

			fmt.Fprintln(a.out, result.Message)
			return nil
		},
	}
}

func (a *app) estimateExportCommand() *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export <estimate-id>",
		Short: "Download the service-rendered csv, json or pdf artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, err := a.engine.Export(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, artifact.Filename)
			if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(a.out, "saved %s (%s, %d bytes)\n", path, artifact.ContentType, len(artifact.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(domain.FormatJSON), "artifact format: csv, json or pdf")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to save into")
	return cmd
}

// viewFlags are shared by the commands that render a sorted projection
type viewFlags struct {
	sortKey string
	desc    bool
	expand  []int
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sortKey, "sort", string(derive.KeyCost), "sort key: type, quantity, cost or confidence")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntSliceVar(&f.expand, "expand", nil, "item numbers (1-based) to show in detail")
}

func (a *app) buildView(cmd *cobra.Command, id string, f viewFlags) (*domain.Estimate, *derive.View, error) {
	key, err := derive.ParseSortKey(f.sortKey)
	if err != nil {
		return nil, nil, err
	}
	dir := derive.Ascending
	if f.desc {
		dir = derive.Descending
	}

	est, err := a.client.GetEstimate(cmd.Context(), id)
	if err != nil {
		return nil, nil, err
	}

	expansion := derive.NewExpansion()
	for _, n := range f.expand {
		expansion.Expand(n - 1)
	}
	view, err := a.engine.View(est, key, dir, expansion)
	if err != nil {
		return nil, nil, err
	}
	return est, view, nil
}

func (a *app) estimateViewCommand() *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "view <estimate-id>",
		Short: "Print the items sorted, with confidence tiers and cost checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, view, err := a.buildView(cmd, args[0], f)
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, view)
			}
			printView(a.out, view)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) estimateWorkbookCommand() *cobra.Command {
	var (
		f   viewFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "workbook <estimate-id>",
		Short: "Write the sorted view as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			est, view, err := a.buildView(cmd, args[0], f)
			if err != nil {
				return err
			}
			data, err := report.Workbook(est, view)
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = "estimate_" + est.EstimateID + ".xlsx"
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(a.out, "saved %s\n", path)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default estimate_<id>.xlsx)")
	return cmd
}
