package slope

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"slopectl/internal/apperrors"
)

// Decrement table types.
const (
	DecrementStandard          = "Standard"
	DecrementImproving         = "Improving"
	DecrementSelectAndUltimate = "SelectAndUltimate"
)

// Select period frequencies for decrement tables.
const (
	FrequencyAnnual  = "Annual"
	FrequencyMonthly = "Monthly"
)

// TableStructure describes the layout data tables in a model conform to.
type TableStructure struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DataTable is a lookup or assumption table in a model.
type DataTable struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DecrementTable is a mortality, lapse or similar rate table in a model.
type DecrementTable struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DataTableParams are the fields of a data table create or update.
// DataTableID is only used by updates.
type DataTableParams struct {
	DataTableID      int    `json:"dataTableId,omitempty"`
	TableStructureID int    `json:"tableStructureId,omitempty"`
	Name             string `json:"name,omitempty"`
	FileID           int    `json:"fileId,omitempty"`
	FilePath         string `json:"filePath,omitempty"`
	ExcelSheetName   string `json:"excelSheetName,omitempty"`
	Delimiter        string `json:"delimiter,omitempty"`
}

// ScenarioTableParams are the fields of a scenario table create.
type ScenarioTableParams struct {
	ModelID            int
	Name               string
	StartDate          time.Time
	YieldCurveRateType string
	FilePath           string
	Delimiter          string
	ExcelSheetName     string
}

type scenarioTableRequest struct {
	ModelID            int    `json:"modelId"`
	Name               string `json:"name"`
	StartDate          string `json:"startDate"`
	YieldCurveRateType string `json:"yieldCurveRateType"`
	FilePath           string `json:"filePath"`
	Delimiter          string `json:"delimiter"`
	ExcelSheetName     string `json:"excelSheetName"`
}

// DecrementTableParams are the fields of a decrement table create.
type DecrementTableParams struct {
	ModelID               int    `json:"modelId"`
	Name                  string `json:"name"`
	FilePath              string `json:"filePath"`
	Delimiter             string `json:"delimiter"`
	ExcelSheetName        string `json:"excelSheetName"`
	DecrementTableType    string `json:"decrementTableType"`
	ImprovementBaseYear   int    `json:"improvementBaseYear,omitempty"`
	SelectPeriodFrequency string `json:"selectPeriodFrequency"`
}

type createdResponse struct {
	ID int `json:"id"`
}

// ListTableStructures returns every table structure in a model.
func (s *Session) ListTableStructures(ctx context.Context, modelID int) ([]TableStructure, error) {
	return listAll[TableStructure](ctx, s, fmt.Sprintf("/Models/%d/TableStructures", modelID), nil)
}

// ListDataTables returns every data table in a model, optionally only those
// of the named table structure.
func (s *Session) ListDataTables(ctx context.Context, modelID int, structureName string) ([]DataTable, error) {
	var filter url.Values
	if structureName != "" {
		filter = url.Values{"TableStructureName": {structureName}}
	}
	return listAll[DataTable](ctx, s, fmt.Sprintf("/Models/%d/DataTables", modelID), filter)
}

// ListDecrementTables returns every decrement table in a model.
func (s *Session) ListDecrementTables(ctx context.Context, modelID int) ([]DecrementTable, error) {
	return listAll[DecrementTable](ctx, s, fmt.Sprintf("/Models/%d/DecrementTables", modelID), nil)
}

// CreateDataTable uploads localPath to p.FilePath and creates a data table
// from it. An empty localPath skips the upload and uses the stored file.
func (s *Session) CreateDataTable(ctx context.Context, localPath string, p DataTableParams) (int, error) {
	if p.TableStructureID <= 0 {
		return 0, apperrors.Validation("tableStructureId", "table structure ID is required")
	}
	if p.Name == "" {
		return 0, apperrors.Validation("name", "data table name is required")
	}
	if err := s.uploadSource(ctx, localPath, p.FilePath); err != nil {
		return 0, err
	}
	id, err := s.create(ctx, http.MethodPost, "/DataTables", p)
	if err != nil {
		return 0, err
	}
	slog.Info("Created data table", "id", id, "name", p.Name)
	return id, nil
}

// UpdateDataTable uploads localPath to p.FilePath and points an existing data
// table at it. The table is identified by p.DataTableID or by name and structure.
func (s *Session) UpdateDataTable(ctx context.Context, localPath string, p DataTableParams) (int, error) {
	if p.DataTableID <= 0 && (p.Name == "" || p.TableStructureID <= 0) {
		return 0, apperrors.Validation("dataTableId", "data table ID, or name and table structure ID, is required")
	}
	if err := s.uploadSource(ctx, localPath, p.FilePath); err != nil {
		return 0, err
	}
	id, err := s.create(ctx, http.MethodPatch, "/DataTables", p)
	if err != nil {
		return 0, err
	}
	slog.Info("Updated data table", "id", id, "name", p.Name)
	return id, nil
}

// CreateScenarioTable uploads localPath to p.FilePath and creates a scenario table from it.
func (s *Session) CreateScenarioTable(ctx context.Context, localPath string, p ScenarioTableParams) (int, error) {
	if p.ModelID <= 0 {
		return 0, apperrors.Validation("modelId", "model ID is required")
	}
	if p.Name == "" {
		return 0, apperrors.Validation("name", "scenario table name is required")
	}
	if err := s.uploadSource(ctx, localPath, p.FilePath); err != nil {
		return 0, err
	}
	req := scenarioTableRequest{
		ModelID:            p.ModelID,
		Name:               p.Name,
		StartDate:          p.StartDate.Format(StartDateLayout),
		YieldCurveRateType: p.YieldCurveRateType,
		FilePath:           p.FilePath,
		Delimiter:          p.Delimiter,
		ExcelSheetName:     p.ExcelSheetName,
	}
	id, err := s.create(ctx, http.MethodPost, "/ScenarioTables", req)
	if err != nil {
		return 0, err
	}
	slog.Info("Created scenario table", "id", id, "name", p.Name)
	return id, nil
}

// CreateDecrementTable uploads localPath to p.FilePath and creates a decrement table from it.
func (s *Session) CreateDecrementTable(ctx context.Context, localPath string, p DecrementTableParams) (int, error) {
	if p.ModelID <= 0 {
		return 0, apperrors.Validation("modelId", "model ID is required")
	}
	if p.Name == "" {
		return 0, apperrors.Validation("name", "decrement table name is required")
	}
	switch p.DecrementTableType {
	case DecrementStandard, DecrementImproving, DecrementSelectAndUltimate:
	default:
		return 0, apperrors.Validation("decrementTableType", fmt.Sprintf("unknown decrement table type %q", p.DecrementTableType))
	}
	switch p.SelectPeriodFrequency {
	case "":
		p.SelectPeriodFrequency = FrequencyAnnual
	case FrequencyAnnual, FrequencyMonthly:
	default:
		return 0, apperrors.Validation("selectPeriodFrequency", fmt.Sprintf("unknown select period frequency %q", p.SelectPeriodFrequency))
	}
	if err := s.uploadSource(ctx, localPath, p.FilePath); err != nil {
		return 0, err
	}
	id, err := s.create(ctx, http.MethodPost, "/DecrementTables", p)
	if err != nil {
		return 0, err
	}
	slog.Info("Created decrement table", "id", id, "name", p.Name)
	return id, nil
}

func (s *Session) uploadSource(ctx context.Context, localPath, slopePath string) error {
	if localPath == "" {
		return nil
	}
	_, err := s.UploadFile(ctx, localPath, slopePath)
	return err
}

// create sends a create-style request and returns the ID of the resource.
func (s *Session) create(ctx context.Context, method, path string, body any) (int, error) {
	var resp createdResponse
	if err := s.do(ctx, method, path, nil, body, &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, apperrors.Decode(path, fmt.Errorf("missing id"))
	}
	return resp.ID, nil
}
