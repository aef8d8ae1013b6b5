package main

import (
	"fmt"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/spf13/cobra"
)

func (a *app) pricingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Query the materials price reference",
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search materials by name, item code or description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.SearchPrices(cmd.Context(), strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			return a.showPrices(result, result.Results)
		},
	}
	search.Flags().IntVar(&searchLimit, "limit", 10, "maximum results (1-50)")

	get := &cobra.Command{
		Use:   "get <material>",
		Short: "Show one material by exact name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := a.client.GetPrice(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.showPrices(record, []domain.PriceRecord{*record})
		},
	}

	category := &cobra.Command{
		Use:   "category <name>",
		Short: "List the materials in a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.PricesByCategory(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.showPrices(result, result.Materials)
		},
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List material categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.PriceCategories(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, result)
			}
			for _, name := range result.Categories {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show price reference statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.PriceStatistics(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(a.out, result)
			}
			fmt.Fprintf(a.out, "%d materials in %d categories\n", result.TotalMaterials, result.Categories)
			fmt.Fprintf(a.out, "min %s  max %s  avg %s\n", inr(result.MinPrice), inr(result.MaxPrice), inr(result.AvgPrice))
			return nil
		},
	}

	var listLimit, listOffset int
	list := &cobra.Command{
		Use:   "list",
		Short: "Page through every material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client.ListPrices(cmd.Context(), listLimit, listOffset)
			if err != nil {
				return err
			}
			if err := a.showPrices(page, page.Materials); err != nil {
				return err
			}
			if !a.asJSON && page.HasMore {
				fmt.Fprintf(a.out, "more available: --offset %d\n", page.Offset+len(page.Materials))
			}
			return nil
		},
	}
	list.Flags().IntVar(&listLimit, "limit", 50, "page size (1-100)")
	list.Flags().IntVar(&listOffset, "offset", 0, "number of materials to skip")

	cmd.AddCommand(search, get, category, categories, stats, list)
	return cmd
}

// showPrices prints raw when --json is set, otherwise the record table
func (a *app) showPrices(raw any, records []domain.PriceRecord) error {
	if a.asJSON {
		return printJSON(a.out, raw)
	}
	printPrices(a.out, records)
	return nil
}
