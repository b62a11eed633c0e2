package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slopectl/internal/apperrors"
	"slopectl/internal/config"
	"slopectl/internal/workflow"
)

func newLoadTablesCmd(a *app) *cobra.Command {
	var (
		planPath string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "load-tables",
		Short: "Create or update data tables and create decrement tables from a plan file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("parallel") {
				parallel = a.cfg.LoadParallel
			}
			if parallel < 1 {
				return apperrors.Validation("parallel", "--parallel (or SLOPE_LOAD_PARALLEL) must be at least 1")
			}
			plan, err := config.LoadTablesPlan(planPath)
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			loaded, err := workflow.LoadTables(cmd.Context(), s, plan, parallel)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(loaded))
			for _, t := range loaded {
				kind := t.Kind
				if t.Updated {
					kind += " (updated)"
				}
				rows = append(rows, []string{kind, strconv.Itoa(t.ID), t.Name})
			}
			return a.print(cmd.OutOrStdout(), loaded, []string{"KIND", "ID", "NAME"}, rows)
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "tables plan file (YAML)")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of tables to load at once (env SLOPE_LOAD_PARALLEL)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		modelID       int
		structureName string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tables in a model",
	}
	cmd.PersistentFlags().IntVar(&modelID, "model", 0, "model ID")

	requireModel := func() error {
		if modelID <= 0 {
			return apperrors.Validation("model", "--model is required")
		}
		return nil
	}

	structures := &cobra.Command{
		Use:   "structures",
		Short: "List table structures",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireModel(); err != nil {
				return err
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			items, err := s.ListTableStructures(cmd.Context(), modelID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, ts := range items {
				rows = append(rows, []string{strconv.Itoa(ts.ID), ts.Name, ts.Description})
			}
			return a.print(cmd.OutOrStdout(), items, []string{"ID", "NAME", "DESCRIPTION"}, rows)
		},
	}

	dataTables := &cobra.Command{
		Use:   "data-tables",
		Short: "List data tables, optionally for one table structure",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireModel(); err != nil {
				return err
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			items, err := s.ListDataTables(cmd.Context(), modelID, structureName)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, t := range items {
				rows = append(rows, []string{strconv.Itoa(t.ID), t.Name})
			}
			return a.print(cmd.OutOrStdout(), items, []string{"ID", "NAME"}, rows)
		},
	}
	dataTables.Flags().StringVar(&structureName, "structure-name", "", "only tables of this table structure")

	decrementTables := &cobra.Command{
		Use:   "decrement-tables",
		Short: "List decrement tables",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireModel(); err != nil {
				return err
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			items, err := s.ListDecrementTables(cmd.Context(), modelID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, t := range items {
				rows = append(rows, []string{strconv.Itoa(t.ID), t.Name})
			}
			return a.print(cmd.OutOrStdout(), items, []string{"ID", "NAME"}, rows)
		},
	}

	cmd.AddCommand(structures, dataTables, decrementTables)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return apperrors.Validation("list", fmt.Sprintf("choose one of: %s, %s, %s", structures.Name(), dataTables.Name(), decrementTables.Name()))
	}
	return cmd
}
