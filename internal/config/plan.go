package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"slopectl/internal/apperrors"
)

// Date layouts used in plan files and derived names.
const (
	DateLayout   = "2006-01-02"
	PeriodLayout = "2006-01"
)

// ValuationPlan describes one valuation run: the inputs to upload, the
// projection to create from a template, and the reports to download.
type ValuationPlan struct {
	ModelID        int                `yaml:"modelId"`
	TemplateID     int                `yaml:"templateId"`
	ValuationDate  string             `yaml:"valuationDate"`
	ProjectionName string             `yaml:"projectionName,omitempty"`
	ListTables     bool               `yaml:"listTables,omitempty"`
	ScenarioTable  ScenarioTablePlan  `yaml:"scenarioTable"`
	DataTable      DataTablePlan      `yaml:"dataTable"`
	ModelPointFile ModelPointFilePlan `yaml:"modelPointFile"`
	Report         ReportPlan         `yaml:"report"`

	valuation time.Time
}

// ScenarioTablePlan is the economic scenario file for the run.
type ScenarioTablePlan struct {
	File               string `yaml:"file"`
	Name               string `yaml:"name,omitempty"`
	SlopePath          string `yaml:"slopePath,omitempty"`
	YieldCurveRateType string `yaml:"yieldCurveRateType,omitempty"`
	Delimiter          string `yaml:"delimiter,omitempty"`
	ExcelSheetName     string `yaml:"excelSheetName,omitempty"`
}

// DataTablePlan is the assumption table attached to the projection. It is
// created unless Update is set or DataTableID names an existing table, in
// which case that table is pointed at the new file.
type DataTablePlan struct {
	File               string `yaml:"file"`
	TableStructureID   int    `yaml:"tableStructureId"`
	TableStructureName string `yaml:"tableStructureName"`
	Name               string `yaml:"name,omitempty"`
	SlopePath          string `yaml:"slopePath,omitempty"`
	ExcelSheetName     string `yaml:"excelSheetName,omitempty"`
	Delimiter          string `yaml:"delimiter,omitempty"`
	Update             bool   `yaml:"update,omitempty"`
	DataTableID        int    `yaml:"dataTableId,omitempty"`
}

// UpdatesExisting reports whether the plan repoints an existing table.
func (p DataTablePlan) UpdatesExisting() bool {
	return p.Update || p.DataTableID > 0
}

// ModelPointFilePlan is the inforce file attached to one portfolio product.
type ModelPointFilePlan struct {
	File      string `yaml:"file"`
	SlopePath string `yaml:"slopePath,omitempty"`
	Portfolio string `yaml:"portfolio"`
	Product   string `yaml:"product"`
}

// ReportPlan selects the workbook element rendered after a successful run.
type ReportPlan struct {
	WorkbookID string            `yaml:"workbookId"`
	ElementID  string            `yaml:"elementId"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
	Outputs    []ReportOutput    `yaml:"outputs"`
}

// ReportOutput is one rendered format and its local destination.
type ReportOutput struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// LoadValuationPlan reads, defaults and validates a valuation plan file.
func LoadValuationPlan(path string) (*ValuationPlan, error) {
	var plan ValuationPlan
	if err := readYAML(path, &plan); err != nil {
		return nil, err
	}
	if err := plan.Prepare(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Prepare validates the plan and fills derived defaults.
func (p *ValuationPlan) Prepare() error {
	if p.ModelID <= 0 {
		return apperrors.Validation("modelId", "modelId is required")
	}
	if p.TemplateID <= 0 {
		return apperrors.Validation("templateId", "templateId is required")
	}
	valuation, err := time.Parse(DateLayout, p.ValuationDate)
	if err != nil {
		return apperrors.Validation("valuationDate", fmt.Sprintf("valuationDate must be YYYY-MM-DD, got %q", p.ValuationDate))
	}
	p.valuation = valuation
	period := valuation.Format(PeriodLayout)

	if p.ProjectionName == "" {
		p.ProjectionName = "Valuation " + period
	}

	st := &p.ScenarioTable
	if st.File == "" {
		return apperrors.Validation("scenarioTable.file", "scenarioTable.file is required")
	}
	if st.Name == "" {
		st.Name = "Scenarios " + period
	}
	if st.SlopePath == "" {
		st.SlopePath = fmt.Sprintf("Scenario Files/Scenarios %s%s", period, path.Ext(st.File))
	}
	if st.YieldCurveRateType == "" {
		st.YieldCurveRateType = "BondEquivalent"
	}
	if st.Delimiter == "" {
		st.Delimiter = ","
	}

	dt := &p.DataTable
	if dt.File == "" {
		return apperrors.Validation("dataTable.file", "dataTable.file is required")
	}
	if dt.TableStructureID <= 0 && dt.DataTableID <= 0 {
		return apperrors.Validation("dataTable.tableStructureId", "dataTable.tableStructureId is required unless dataTable.dataTableId is set")
	}
	if dt.TableStructureName == "" {
		return apperrors.Validation("dataTable.tableStructureName", "dataTable.tableStructureName is required")
	}
	if dt.Name == "" {
		dt.Name = "Assumptions " + period
	}
	if dt.SlopePath == "" {
		dt.SlopePath = fmt.Sprintf("Assumptions/Assumption Update %s%s", period, path.Ext(dt.File))
	}
	if dt.Delimiter == "" {
		dt.Delimiter = ","
	}

	mp := &p.ModelPointFile
	if mp.File == "" {
		return apperrors.Validation("modelPointFile.file", "modelPointFile.file is required")
	}
	if mp.Portfolio == "" || mp.Product == "" {
		return apperrors.Validation("modelPointFile", "modelPointFile.portfolio and modelPointFile.product are required")
	}
	if mp.SlopePath == "" {
		mp.SlopePath = fmt.Sprintf("Inforce/Inforce File - %s%s", period, path.Ext(mp.File))
	}

	if len(p.Report.Outputs) > 0 {
		if p.Report.WorkbookID == "" || p.Report.ElementID == "" {
			return apperrors.Validation("report", "report.workbookId and report.elementId are required when outputs are set")
		}
		for i, out := range p.Report.Outputs {
			field := fmt.Sprintf("report.outputs[%d]", i)
			if out.Format == "" || out.Path == "" {
				return apperrors.Validation(field, "report outputs need a format and a path")
			}
			if !reportFormats[out.Format] {
				return apperrors.Validation(field+".format", fmt.Sprintf("%s.format must be Excel or Csv, got %q", field, out.Format))
			}
		}
	}
	return nil
}

// Valuation returns the parsed valuation date. Valid after Prepare.
func (p *ValuationPlan) Valuation() time.Time {
	return p.valuation
}

// TablesPlan describes a batch of tables to load into a model.
type TablesPlan struct {
	ModelID         int                  `yaml:"modelId"`
	Folder          string               `yaml:"folder,omitempty"`
	DataTables      []DataTableLoad      `yaml:"dataTables"`
	DecrementTables []DecrementTableLoad `yaml:"decrementTables"`
}

// DataTableLoad is one data table in a batch load. Update or DataTableID
// repoints an existing table instead of creating one.
type DataTableLoad struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	StructureID    int    `yaml:"structureId"`
	ExcelSheetName string `yaml:"excelSheetName,omitempty"`
	Delimiter      string `yaml:"delimiter,omitempty"`
	Update         bool   `yaml:"update,omitempty"`
	DataTableID    int    `yaml:"dataTableId,omitempty"`
}

// UpdatesExisting reports whether the entry repoints an existing table.
func (t DataTableLoad) UpdatesExisting() bool {
	return t.Update || t.DataTableID > 0
}

// DecrementTableLoad is one decrement table in a batch load.
type DecrementTableLoad struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Sheet     string `yaml:"sheet,omitempty"`
	Type      string `yaml:"type"`
	Year      int    `yaml:"year,omitempty"`
	Frequency string `yaml:"frequency,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
}

var (
	decrementTypes    = map[string]bool{"Standard": true, "Improving": true, "SelectAndUltimate": true}
	selectFrequencies = map[string]bool{"Annual": true, "Monthly": true}
	reportFormats     = map[string]bool{"Excel": true, "Csv": true}
)

// LoadTablesPlan reads, defaults and validates a tables plan file.
func LoadTablesPlan(path string) (*TablesPlan, error) {
	var plan TablesPlan
	if err := readYAML(path, &plan); err != nil {
		return nil, err
	}
	if err := plan.Prepare(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Prepare validates the plan and fills defaults.
func (p *TablesPlan) Prepare() error {
	if p.Folder == "" {
		p.Folder = "api"
	}
	if len(p.DataTables) == 0 && len(p.DecrementTables) == 0 {
		return apperrors.Validation("tables", "plan has no tables to load")
	}
	for i := range p.DataTables {
		t := &p.DataTables[i]
		field := fmt.Sprintf("dataTables[%d]", i)
		if t.Name == "" || t.Path == "" {
			return apperrors.Validation(field, field+" needs a name and a path")
		}
		if t.StructureID <= 0 && t.DataTableID <= 0 {
			return apperrors.Validation(field+".structureId", field+".structureId is required unless dataTableId is set")
		}
		if t.Delimiter == "" {
			t.Delimiter = ","
		}
	}
	if len(p.DecrementTables) > 0 && p.ModelID <= 0 {
		return apperrors.Validation("modelId", "modelId is required for decrement tables")
	}
	for i := range p.DecrementTables {
		t := &p.DecrementTables[i]
		field := fmt.Sprintf("decrementTables[%d]", i)
		if t.Name == "" || t.Path == "" {
			return apperrors.Validation(field, field+" needs a name and a path")
		}
		if !decrementTypes[t.Type] {
			return apperrors.Validation(field+".type", fmt.Sprintf("%s.type must be Standard, Improving or SelectAndUltimate, got %q", field, t.Type))
		}
		if t.Frequency == "" {
			t.Frequency = "Annual"
		}
		if !selectFrequencies[t.Frequency] {
			return apperrors.Validation(field+".frequency", fmt.Sprintf("%s.frequency must be Annual or Monthly, got %q", field, t.Frequency))
		}
		if t.Delimiter == "" {
			t.Delimiter = ","
		}
	}
	return nil
}

// DataTableSlopePath is where a batch-loaded data table file is stored remotely.
func (p *TablesPlan) DataTableSlopePath(t DataTableLoad) string {
	return fmt.Sprintf("%s/%s.csv", p.Folder, t.Name)
}

// DecrementTableSlopePath is where a batch-loaded decrement table file is stored remotely.
func (p *TablesPlan) DecrementTableSlopePath(t DecrementTableLoad) string {
	return fmt.Sprintf("%s/%s", p.Folder, t.Name)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return apperrors.Validation("plan", fmt.Sprintf("parse plan %s: %v", path, err))
	}
	return nil
}
