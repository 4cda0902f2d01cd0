package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/chiffordable/chiffordable/internal/dataset"
	"github.com/chiffordable/chiffordable/internal/merge"
)

var (
	queryIncome  float64
	queryShare   float64
	queryMaxRent float64
	queryLat     float64
	queryLon     float64
	queryName    string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the written dataset",
	Long:  "Loads the dataset directory and answers affordability questions: which communities and listings fit a rent budget, and what sits at a picked point or behind a community name.",
}

var queryAffordableCmd = &cobra.Command{
	Use:   "affordable",
	Short: "List communities and listings within a rent budget",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, err := dataset.Load(cfg.Dataset.Dir)
		if err != nil {
			return eris.Wrap(err, "load dataset")
		}

		budget := queryMaxRent
		if budget <= 0 {
			budget = merge.RentBudget(queryIncome, queryShare)
		}
		view := merge.BuildJoin(snap, budget)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

var queryDetailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Resolve a map point or community name to its enriched detail",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, err := dataset.Load(cfg.Dataset.Dir)
		if err != nil {
			return eris.Wrap(err, "load dataset")
		}

		sel := merge.Selection{
			Latitude:  queryLat,
			Longitude: queryLon,
			Name:      queryName,
			ByName:    queryName != "",
		}
		detail := merge.ResolveSelection(snap, sel)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

func init() {
	queryAffordableCmd.Flags().Float64Var(&queryIncome, "income", 0, "annual income in dollars")
	queryAffordableCmd.Flags().Float64Var(&queryShare, "share", 30, "percent of income to spend on rent")
	queryAffordableCmd.Flags().Float64Var(&queryMaxRent, "max-rent", 0, "explicit monthly rent ceiling (overrides income/share)")

	queryDetailCmd.Flags().Float64Var(&queryLat, "lat", 0, "picked point latitude")
	queryDetailCmd.Flags().Float64Var(&queryLon, "lon", 0, "picked point longitude")
	queryDetailCmd.Flags().StringVar(&queryName, "community", "", "community name (overrides the point)")

	queryCmd.AddCommand(queryAffordableCmd)
	queryCmd.AddCommand(queryDetailCmd)
	rootCmd.AddCommand(queryCmd)
}
