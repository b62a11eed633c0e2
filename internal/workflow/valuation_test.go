package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopectl/internal/config"
	"slopectl/internal/poll"
	"slopectl/internal/slope"
)

// recorder is an in-memory ValuationAPI and TableLoader that logs each call.
type recorder struct {
	mu    sync.Mutex
	calls []string

	status   string
	failOn   string
	reports  []slope.ReportRequest
	updates  []slope.ProjectionUpdate
	scenario slope.ScenarioTableParams

	dataUpdates []slope.DataTableParams
}

func (r *recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if call == r.failOn {
		return errors.New(call + " exploded")
	}
	return nil
}

func (r *recorder) ListTableStructures(ctx context.Context, modelID int) ([]slope.TableStructure, error) {
	return []slope.TableStructure{{ID: 1, Name: "Data Table Name"}}, r.record("ListTableStructures")
}

func (r *recorder) ListDataTables(ctx context.Context, modelID int, structureName string) ([]slope.DataTable, error) {
	return nil, r.record("ListDataTables " + structureName)
}

func (r *recorder) CreateScenarioTable(ctx context.Context, localPath string, p slope.ScenarioTableParams) (int, error) {
	r.scenario = p
	return 501, r.record("CreateScenarioTable " + p.FilePath)
}

func (r *recorder) CreateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error) {
	return 4411, r.record("CreateDataTable " + p.FilePath)
}

func (r *recorder) UpdateDataTable(ctx context.Context, localPath string, p slope.DataTableParams) (int, error) {
	r.mu.Lock()
	r.dataUpdates = append(r.dataUpdates, p)
	r.mu.Unlock()
	return 77, r.record("UpdateDataTable " + p.FilePath)
}

func (r *recorder) CreateDecrementTable(ctx context.Context, localPath string, p slope.DecrementTableParams) (int, error) {
	return 9001, r.record("CreateDecrementTable " + p.FilePath)
}

func (r *recorder) UploadFile(ctx context.Context, localPath, slopePath string) (int, error) {
	return 812, r.record("UploadFile " + slopePath)
}

func (r *recorder) CreateProjectionFromTemplate(ctx context.Context, templateID int, name string) (int, error) {
	return 42, r.record("CreateProjectionFromTemplate " + name)
}

func (r *recorder) UpdateProjection(ctx context.Context, projectionID int, u slope.ProjectionUpdate) error {
	r.updates = append(r.updates, u)
	return r.record("UpdateProjection")
}

func (r *recorder) AttachDataTable(ctx context.Context, projectionID int, structureName string, dataTableID int) error {
	return r.record(fmt.Sprintf("AttachDataTable %s %d", structureName, dataTableID))
}

func (r *recorder) AttachModelPointFile(ctx context.Context, projectionID int, portfolio, product string, fileID int) error {
	return r.record(fmt.Sprintf("AttachModelPointFile %s/%s %d", portfolio, product, fileID))
}

func (r *recorder) RunAndWait(ctx context.Context, projectionID int, cfg slope.ProjectionWaitConfig) (string, error) {
	return r.status, r.record(fmt.Sprintf("RunAndWait %d", projectionID))
}

func (r *recorder) DownloadReport(ctx context.Context, req slope.ReportRequest, dest string, cfg poll.Config) error {
	r.reports = append(r.reports, req)
	return r.record("DownloadReport " + dest)
}

func testPlan(t *testing.T) *config.ValuationPlan {
	t.Helper()
	plan := &config.ValuationPlan{
		ModelID:       9999,
		TemplateID:    7,
		ValuationDate: "2021-01-31",
		ScenarioTable: config.ScenarioTablePlan{File: "Scenario.csv"},
		DataTable: config.DataTablePlan{
			File:               "Assumption Update.xlsx",
			TableStructureID:   293310,
			TableStructureName: "Data Table Name",
			ExcelSheetName:     "Assumptions",
		},
		ModelPointFile: config.ModelPointFilePlan{File: "Inforce.csv", Portfolio: "Portfolio 1", Product: "Product A"},
		Report: config.ReportPlan{
			WorkbookID: "5rMaW9R0yVoehrIjyAUtew",
			ElementID:  "SQ_fXFwL0L",
			Outputs: []config.ReportOutput{
				{Format: slope.FormatExcel, Path: "Results.xlsx"},
				{Format: slope.FormatCsv, Path: "Results.csv"},
			},
		},
	}
	require.NoError(t, plan.Prepare())
	return plan
}

var testWait = WaitConfig{
	Run:    slope.ProjectionWaitConfig{Interval: time.Millisecond},
	Report: poll.Config{Interval: time.Millisecond},
}

func TestRunValuation(t *testing.T) {
	api := &recorder{status: slope.StatusCompleted}

	res, err := RunValuation(context.Background(), api, testPlan(t), testWait)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateScenarioTable Scenario Files/Scenarios 2021-01.csv",
		"CreateDataTable Assumptions/Assumption Update 2021-01.xlsx",
		"UploadFile Inforce/Inforce File - 2021-01.csv",
		"CreateProjectionFromTemplate Valuation 2021-01",
		"UpdateProjection",
		"AttachDataTable Data Table Name 4411",
		"AttachModelPointFile Portfolio 1/Product A 812",
		"RunAndWait 42",
		"DownloadReport Results.xlsx",
		"DownloadReport Results.csv",
	}, api.calls)

	assert.Equal(t, &ValuationResult{
		ScenarioTableID:  501,
		DataTableID:      4411,
		ModelPointFileID: 812,
		ProjectionID:     42,
		Status:           slope.StatusCompleted,
		Reports:          []string{"Results.xlsx", "Results.csv"},
	}, res)

	require.Len(t, api.updates, 1)
	assert.Equal(t, 501, api.updates[0].ScenarioTableID)
	assert.Equal(t, time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), api.updates[0].StartDate)
	assert.Equal(t, time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), api.scenario.StartDate)

	require.Len(t, api.reports, 2)
	for _, r := range api.reports {
		assert.Equal(t, "42", r.Parameters[slope.ProjectionIDParam])
	}
	assert.Equal(t, slope.FormatExcel, api.reports[0].Format)
	assert.Equal(t, slope.FormatCsv, api.reports[1].Format)
}

func TestRunValuation_CompletedWithErrorsStillReports(t *testing.T) {
	api := &recorder{status: slope.StatusCompletedWithErrors}

	res, err := RunValuation(context.Background(), api, testPlan(t), testWait)
	require.NoError(t, err)
	assert.Len(t, res.Reports, 2)
}

func TestRunValuation_NoResultsSkipsReports(t *testing.T) {
	api := &recorder{status: slope.StatusFailed}

	res, err := RunValuation(context.Background(), api, testPlan(t), testWait)
	require.NoError(t, err)
	assert.Equal(t, slope.StatusFailed, res.Status)
	assert.Empty(t, res.Reports)
	assert.Empty(t, api.reports)
}

func TestRunValuation_StopsAtFirstError(t *testing.T) {
	api := &recorder{status: slope.StatusCompleted, failOn: "CreateDataTable Assumptions/Assumption Update 2021-01.xlsx"}

	res, err := RunValuation(context.Background(), api, testPlan(t), testWait)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data table")
	assert.Equal(t, 501, res.ScenarioTableID)
	assert.Zero(t, res.ProjectionID)
	assert.Len(t, api.calls, 2, "nothing runs after the failing step")
}

func TestRunValuation_ListTables(t *testing.T) {
	api := &recorder{status: slope.StatusCompleted}
	plan := testPlan(t)
	plan.ListTables = true

	_, err := RunValuation(context.Background(), api, plan, testWait)
	require.NoError(t, err)
	assert.Equal(t, "ListTableStructures", api.calls[0])
	assert.Equal(t, "ListDataTables Data Table Name", api.calls[1])
}

func TestRunValuation_UpdatesExistingDataTable(t *testing.T) {
	api := &recorder{status: slope.StatusCompleted}
	plan := testPlan(t)
	plan.DataTable.DataTableID = 77

	res, err := RunValuation(context.Background(), api, plan, testWait)
	require.NoError(t, err)

	assert.Equal(t, "UpdateDataTable Assumptions/Assumption Update 2021-01.xlsx", api.calls[1])
	assert.NotContains(t, api.calls, "CreateDataTable Assumptions/Assumption Update 2021-01.xlsx")
	assert.Contains(t, api.calls, "AttachDataTable Data Table Name 77")
	assert.Equal(t, 77, res.DataTableID)

	require.Len(t, api.dataUpdates, 1)
	assert.Equal(t, 77, api.dataUpdates[0].DataTableID)
	assert.Equal(t, "Assumptions 2021-01", api.dataUpdates[0].Name)
}
