package slope

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"slopectl/internal/apperrors"
	"slopectl/internal/poll"
)

// StartDateLayout is the timestamp format the API expects for start dates.
const StartDateLayout = "2006-01-02T15:04:05"

// Projection statuses reported once a run stops.
const (
	StatusCompleted           = "Completed"
	StatusCompletedWithErrors = "CompletedWithErrors"
	StatusFailed              = "Failed"
)

// HasResults reports whether a finished projection produced results worth reporting on.
func HasResults(status string) bool {
	return status == StatusCompleted || status == StatusCompletedWithErrors
}

// ProjectionUpdate is a partial projection change. Zero fields are left untouched.
type ProjectionUpdate struct {
	Name            string
	StartDate       time.Time
	ScenarioTableID int
	DataTables      []ProjectionDataTable
	Portfolios      []ProjectionPortfolio
}

// ProjectionDataTable binds a data table to a table structure used by the projection.
type ProjectionDataTable struct {
	TableStructureName string `json:"tableStructureName"`
	DataTableID        int    `json:"dataTableId"`
}

// ProjectionPortfolio assigns model-point files to the products of a portfolio.
type ProjectionPortfolio struct {
	PortfolioName string              `json:"portfolioName"`
	Products      []ProjectionProduct `json:"products"`
}

// ProjectionProduct is one product's model-point file.
type ProjectionProduct struct {
	ProductName    string            `json:"productName"`
	ModelPointFile ModelPointFileRef `json:"modelPointFile"`
}

// ModelPointFileRef refers to an uploaded file by ID.
type ModelPointFileRef struct {
	FileID int `json:"fileId"`
}

type projectionPatch struct {
	Name            string                `json:"name,omitempty"`
	StartDate       string                `json:"startDate,omitempty"`
	ScenarioTableID int                   `json:"scenarioTableId,omitempty"`
	DataTables      []ProjectionDataTable `json:"dataTables,omitempty"`
	Portfolios      []ProjectionPortfolio `json:"portfolios,omitempty"`
}

type createProjectionRequest struct {
	TemplateID int    `json:"templateId"`
	Name       string `json:"name"`
}

type runningResponse struct {
	IsRunning *bool `json:"isRunning"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// ProjectionWaitConfig controls how long and how often a run is polled.
type ProjectionWaitConfig struct {
	Interval time.Duration
	Timeout  time.Duration // 0 waits until the run stops
	// LenientProbe treats a failing running probe as "not running" instead
	// of returning an ErrProbe error.
	LenientProbe bool
}

// CreateProjectionFromTemplate creates a projection from a template and returns its ID.
func (s *Session) CreateProjectionFromTemplate(ctx context.Context, templateID int, name string) (int, error) {
	if templateID <= 0 {
		return 0, apperrors.Validation("templateId", "template ID is required")
	}
	if name == "" {
		return 0, apperrors.Validation("name", "projection name is required")
	}
	id, err := s.create(ctx, http.MethodPost, "/Projections", createProjectionRequest{TemplateID: templateID, Name: name})
	if err != nil {
		return 0, err
	}
	slog.Info("Created projection", "projectionId", id, "templateId", templateID, "name", name)
	return id, nil
}

// UpdateProjection applies a partial update to a projection.
func (s *Session) UpdateProjection(ctx context.Context, projectionID int, u ProjectionUpdate) error {
	patch := projectionPatch{
		Name:            u.Name,
		ScenarioTableID: u.ScenarioTableID,
		DataTables:      u.DataTables,
		Portfolios:      u.Portfolios,
	}
	if !u.StartDate.IsZero() {
		patch.StartDate = u.StartDate.Format(StartDateLayout)
	}
	if patch.Name == "" && patch.StartDate == "" && patch.ScenarioTableID == 0 &&
		len(patch.DataTables) == 0 && len(patch.Portfolios) == 0 {
		return apperrors.Validation("projection", "projection update has no fields set")
	}
	return s.do(ctx, http.MethodPatch, fmt.Sprintf("/Projections/%d", projectionID), nil, patch, nil)
}

// AttachDataTable binds a data table to the named table structure of a projection.
func (s *Session) AttachDataTable(ctx context.Context, projectionID int, structureName string, dataTableID int) error {
	return s.UpdateProjection(ctx, projectionID, ProjectionUpdate{
		DataTables: []ProjectionDataTable{{TableStructureName: structureName, DataTableID: dataTableID}},
	})
}

// AttachModelPointFile sets the model-point file of one product in a portfolio.
func (s *Session) AttachModelPointFile(ctx context.Context, projectionID int, portfolio, product string, fileID int) error {
	return s.UpdateProjection(ctx, projectionID, ProjectionUpdate{
		Portfolios: []ProjectionPortfolio{{
			PortfolioName: portfolio,
			Products: []ProjectionProduct{{
				ProductName:    product,
				ModelPointFile: ModelPointFileRef{FileID: fileID},
			}},
		}},
	})
}

// RunProjection starts a projection run.
func (s *Session) RunProjection(ctx context.Context, projectionID int) error {
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/Projections/%d/run", projectionID), nil, nil, nil); err != nil {
		return apperrors.Submit(fmt.Sprintf("projection with id: %d", projectionID), err)
	}
	slog.Info("Started projection", "projectionId", projectionID)
	return nil
}

// IsProjectionRunning reports whether a projection run is in progress.
func (s *Session) IsProjectionRunning(ctx context.Context, projectionID int) (bool, error) {
	path := fmt.Sprintf("/Projections/%d", projectionID)
	var resp runningResponse
	if err := s.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return false, err
	}
	if resp.IsRunning == nil {
		return false, apperrors.Decode(path, fmt.Errorf("missing isRunning"))
	}
	return *resp.IsRunning, nil
}

// ProjectionStatus returns the status string of a projection.
func (s *Session) ProjectionStatus(ctx context.Context, projectionID int) (string, error) {
	path := fmt.Sprintf("/Projections/%d", projectionID)
	var resp statusResponse
	if err := s.do(ctx, http.MethodGet, path, url.Values{"Fields": {"status"}}, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// WaitForProjection polls until the projection stops running, then returns
// its final status. Any status is returned without error; callers decide
// what to do with CompletedWithErrors or Failed.
func (s *Session) WaitForProjection(ctx context.Context, projectionID int, cfg ProjectionWaitConfig) (string, error) {
	resource := fmt.Sprintf("projection %d", projectionID)
	logger := slog.With("projectionId", projectionID)

	check := func(ctx context.Context) (bool, error) {
		running, err := s.IsProjectionRunning(ctx, projectionID)
		if err == nil {
			return running, nil
		}
		if ctx.Err() != nil {
			return false, err
		}
		if cfg.LenientProbe {
			logger.Warn("Running probe failed, treating projection as stopped", "error", err)
			return false, nil
		}
		return false, apperrors.Probe(resource, err)
	}
	classify := func(running bool) poll.Verdict {
		if running {
			return poll.Verdict{Phase: poll.Pending}
		}
		return poll.Verdict{Phase: poll.Succeeded}
	}

	poller := poll.New("projection", resource, check, classify,
		poll.Config{Interval: cfg.Interval, Timeout: cfg.Timeout},
		poll.WithMetrics[bool](s.metrics))
	if _, err := poller.Wait(ctx); err != nil {
		return "", err
	}

	status, err := s.ProjectionStatus(ctx, projectionID)
	if err != nil {
		return "", err
	}
	logger.Info("Projection finished", "status", status)
	return status, nil
}

// RunAndWait starts a projection and waits for it to finish.
func (s *Session) RunAndWait(ctx context.Context, projectionID int, cfg ProjectionWaitConfig) (string, error) {
	if err := s.RunProjection(ctx, projectionID); err != nil {
		return "", err
	}
	return s.WaitForProjection(ctx, projectionID, cfg)
}
