package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"slopectl/internal/config"
	"slopectl/internal/slope"
)

// TableLoader is the subset of *slope.Session a table load uses.
type TableLoader interface {
	CreateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error)
	UpdateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error)
	CreateDecrementTable(ctx context.Context, localPath string, p slope.DecrementTableParams) (int, error)
}

// Table kinds reported by LoadTables.
const (
	KindData      = "data"
	KindDecrement = "decrement"
)

// LoadedTable is one table created or updated by LoadTables.
type LoadedTable struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	ID      int    `json:"id"`
	Updated bool   `json:"updated,omitempty"`
}

// LoadTables creates or updates every table in plan, data tables first,
// running up to parallel loads at once. Results keep plan order. The first
// failure cancels the loads still in flight.
func LoadTables(ctx context.Context, api TableLoader, plan *config.TablesPlan, parallel int) ([]LoadedTable, error) {
	if parallel < 1 {
		parallel = 1
	}

	total := len(plan.DataTables) + len(plan.DecrementTables)
	results := make([]LoadedTable, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, t := range plan.DataTables {
		g.Go(func() error {
			params := slope.DataTableParams{
				TableStructureID: t.StructureID,
				Name:             t.Name,
				FilePath:         plan.DataTableSlopePath(t),
				ExcelSheetName:   t.ExcelSheetName,
				Delimiter:        t.Delimiter,
			}
			var (
				id  int
				err error
			)
			if t.UpdatesExisting() {
				params.DataTableID = t.DataTableID
				id, err = api.UpdateDataTable(gctx, t.Path, params)
			} else {
				id, err = api.CreateDataTable(gctx, t.Path, params)
			}
			if err != nil {
				return fmt.Errorf("data table %q: %w", t.Name, err)
			}
			results[i] = LoadedTable{Kind: KindData, Name: t.Name, ID: id, Updated: t.UpdatesExisting()}
			return nil
		})
	}

	offset := len(plan.DataTables)
	for i, t := range plan.DecrementTables {
		g.Go(func() error {
			id, err := api.CreateDecrementTable(gctx, t.Path, slope.DecrementTableParams{
				ModelID:               plan.ModelID,
				Name:                  t.Name,
				FilePath:              plan.DecrementTableSlopePath(t),
				Delimiter:             t.Delimiter,
				ExcelSheetName:        t.Sheet,
				DecrementTableType:    t.Type,
				ImprovementBaseYear:   t.Year,
				SelectPeriodFrequency: t.Frequency,
			})
			if err != nil {
				return fmt.Errorf("decrement table %q: %w", t.Name, err)
			}
			results[offset+i] = LoadedTable{Kind: KindDecrement, Name: t.Name, ID: id}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Info("Loaded tables", "count", total, "parallel", parallel)
	return results, nil
}
