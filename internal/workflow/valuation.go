// Package workflow composes API operations into the end-to-end runs exposed
// by the CLI.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"slopectl/internal/config"
	"slopectl/internal/poll"
	"slopectl/internal/slope"
)

// ValuationAPI is the subset of *slope.Session a valuation run uses.
type ValuationAPI interface {
	ListTableStructures(ctx context.Context, modelID int) ([]slope.TableStructure, error)
	ListDataTables(ctx context.Context, modelID int, structureName string) ([]slope.DataTable, error)
	CreateScenarioTable(ctx context.Context, localPath string, p slope.ScenarioTableParams) (int, error)
	CreateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error)
	UpdateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error)
	UploadFile(ctx context.Context, localPath, slopePath string) (int, error)
	CreateProjectionFromTemplate(ctx context.Context, templateID int, name string) (int, error)
	UpdateProjection(ctx context.Context, projectionID int, u slope.ProjectionUpdate) error
	AttachDataTable(ctx context.Context, projectionID int, structureName string, dataTableID int) error
	AttachModelPointFile(ctx context.Context, projectionID int, portfolio, product string, fileID int) error
	RunAndWait(ctx context.Context, projectionID int, cfg slope.ProjectionWaitConfig) (string, error)
	DownloadReport(ctx context.Context, r slope.ReportRequest, dest string, cfg poll.Config) error
}

// WaitConfig holds the polling settings for both jobs of a run.
type WaitConfig struct {
	Run    slope.ProjectionWaitConfig
	Report poll.Config
}

// ValuationResult records what a valuation run created and produced.
type ValuationResult struct {
	ScenarioTableID  int      `json:"scenarioTableId"`
	DataTableID      int      `json:"dataTableId"`
	ModelPointFileID int      `json:"modelPointFileId"`
	ProjectionID     int      `json:"projectionId"`
	Status           string   `json:"status"`
	Reports          []string `json:"reports,omitempty"`
}

// RunValuation uploads the inputs of plan, configures a projection from its
// template, runs it to completion and downloads the configured reports when
// the run produced results.
//
// Steps run strictly in order; the first error aborts the run and is returned
// together with everything created so far.
func RunValuation(ctx context.Context, api ValuationAPI, plan *config.ValuationPlan, wait WaitConfig) (*ValuationResult, error) {
	logger := slog.With("modelId", plan.ModelID, "templateId", plan.TemplateID)
	res := &ValuationResult{}

	if plan.ListTables {
		if err := logTables(ctx, api, plan, logger); err != nil {
			return res, err
		}
	}

	st := plan.ScenarioTable
	id, err := api.CreateScenarioTable(ctx, st.File, slope.ScenarioTableParams{
		ModelID:            plan.ModelID,
		Name:               st.Name,
		StartDate:          plan.Valuation(),
		YieldCurveRateType: st.YieldCurveRateType,
		FilePath:           st.SlopePath,
		Delimiter:          st.Delimiter,
		ExcelSheetName:     st.ExcelSheetName,
	})
	if err != nil {
		return res, fmt.Errorf("scenario table: %w", err)
	}
	res.ScenarioTableID = id

	dt := plan.DataTable
	params := slope.DataTableParams{
		TableStructureID: dt.TableStructureID,
		Name:             dt.Name,
		FilePath:         dt.SlopePath,
		ExcelSheetName:   dt.ExcelSheetName,
		Delimiter:        dt.Delimiter,
	}
	if dt.UpdatesExisting() {
		params.DataTableID = dt.DataTableID
		id, err = api.UpdateDataTable(ctx, dt.File, params)
	} else {
		id, err = api.CreateDataTable(ctx, dt.File, params)
	}
	if err != nil {
		return res, fmt.Errorf("data table: %w", err)
	}
	res.DataTableID = id

	mp := plan.ModelPointFile
	id, err = api.UploadFile(ctx, mp.File, mp.SlopePath)
	if err != nil {
		return res, fmt.Errorf("model point file: %w", err)
	}
	res.ModelPointFileID = id

	id, err = api.CreateProjectionFromTemplate(ctx, plan.TemplateID, plan.ProjectionName)
	if err != nil {
		return res, fmt.Errorf("projection: %w", err)
	}
	res.ProjectionID = id
	logger = logger.With("projectionId", id)

	if err := api.UpdateProjection(ctx, id, slope.ProjectionUpdate{
		StartDate:       plan.Valuation(),
		ScenarioTableID: res.ScenarioTableID,
	}); err != nil {
		return res, fmt.Errorf("projection settings: %w", err)
	}
	if err := api.AttachDataTable(ctx, id, dt.TableStructureName, res.DataTableID); err != nil {
		return res, fmt.Errorf("attach data table: %w", err)
	}
	if err := api.AttachModelPointFile(ctx, id, mp.Portfolio, mp.Product, res.ModelPointFileID); err != nil {
		return res, fmt.Errorf("attach model point file: %w", err)
	}
	logger.Info("Projection configured")

	status, err := api.RunAndWait(ctx, id, wait.Run)
	if err != nil {
		return res, err
	}
	res.Status = status

	if !slope.HasResults(status) {
		logger.Warn("Projection produced no results, skipping reports", "status", status)
		return res, nil
	}

	rp := plan.Report
	for _, out := range rp.Outputs {
		req := slope.ReportRequest{
			WorkbookID: rp.WorkbookID,
			ElementID:  rp.ElementID,
			Format:     out.Format,
			Parameters: rp.Parameters,
		}.ForProjection(id)
		if err := api.DownloadReport(ctx, req, out.Path, wait.Report); err != nil {
			return res, fmt.Errorf("%s report: %w", out.Format, err)
		}
		res.Reports = append(res.Reports, out.Path)
	}

	logger.Info("Valuation finished", "status", status, "reports", len(res.Reports))
	return res, nil
}

func logTables(ctx context.Context, api ValuationAPI, plan *config.ValuationPlan, logger *slog.Logger) error {
	structures, err := api.ListTableStructures(ctx, plan.ModelID)
	if err != nil {
		return fmt.Errorf("list table structures: %w", err)
	}
	for _, ts := range structures {
		logger.Info("Table structure", "id", ts.ID, "name", ts.Name)
	}

	tables, err := api.ListDataTables(ctx, plan.ModelID, plan.DataTable.TableStructureName)
	if err != nil {
		return fmt.Errorf("list data tables: %w", err)
	}
	for _, t := range tables {
		logger.Info("Data table", "id", t.ID, "name", t.Name, "structure", plan.DataTable.TableStructureName)
	}
	return nil
}
