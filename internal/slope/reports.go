package slope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"

	"slopectl/internal/apperrors"
	"slopectl/internal/poll"
)

// Report formats accepted by the generate endpoint.
const (
	FormatExcel = "Excel"
	FormatCsv   = "Csv"
)

// Report generation statuses.
const (
	ReportCompleted = "Completed"
	ReportFailed    = "Failed"
)

// ProjectionIDParam is the workbook parameter selecting the projection to report on.
const ProjectionIDParam = "Projection-ID"

// ReportRequest selects a workbook element and the format to render it in.
type ReportRequest struct {
	WorkbookID string
	ElementID  string
	Format     string
	Parameters map[string]string
}

// ForProjection returns a copy of r whose parameters name the projection,
// unless the caller already set one.
func (r ReportRequest) ForProjection(projectionID int) ReportRequest {
	params := make(map[string]string, len(r.Parameters)+1)
	maps.Copy(params, r.Parameters)
	if _, ok := params[ProjectionIDParam]; !ok {
		params[ProjectionIDParam] = strconv.Itoa(projectionID)
	}
	r.Parameters = params
	return r
}

// ReportStatus is the state of a report generation.
type ReportStatus struct {
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl"`
	Message     string `json:"message"`
}

type generateRequest struct {
	ElementID    string            `json:"elementId"`
	ReportFormat string            `json:"reportFormat"`
	Parameters   map[string]string `json:"parameters"`
}

type generateResponse struct {
	GenerationID generationID `json:"generationId"`
}

// generationID accepts either a JSON string or number.
type generationID string

func (g *generationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = generationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*g = generationID(n.String())
	return nil
}

// GenerateReport starts rendering a workbook element and returns the generation ID.
func (s *Session) GenerateReport(ctx context.Context, r ReportRequest) (string, error) {
	if r.WorkbookID == "" || r.ElementID == "" {
		return "", apperrors.Validation("report", "workbook ID and element ID are required")
	}
	if r.Format == "" {
		return "", apperrors.Validation("reportFormat", "report format is required")
	}
	params := r.Parameters
	if params == nil {
		params = map[string]string{}
	}

	path := fmt.Sprintf("/Reports/Workbooks/%s/Generate", url.PathEscape(r.WorkbookID))
	var resp generateResponse
	req := generateRequest{ElementID: r.ElementID, ReportFormat: r.Format, Parameters: params}
	if err := s.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return "", apperrors.Submit("report generation for element "+r.ElementID, err)
	}
	if resp.GenerationID == "" {
		return "", apperrors.Decode(path, fmt.Errorf("missing generationId"))
	}

	slog.Info("Started report generation", "workbookId", r.WorkbookID, "elementId", r.ElementID,
		"format", r.Format, "generationId", resp.GenerationID)
	return string(resp.GenerationID), nil
}

// ReportStatus returns the current state of a report generation.
func (s *Session) ReportStatus(ctx context.Context, generationID string) (ReportStatus, error) {
	var resp ReportStatus
	path := "/Reports/Workbooks/Status/" + url.PathEscape(generationID)
	if err := s.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return ReportStatus{}, err
	}
	return resp, nil
}

func classifyReport(st ReportStatus) poll.Verdict {
	switch st.Status {
	case ReportCompleted:
		return poll.Verdict{Phase: poll.Succeeded}
	case ReportFailed:
		return poll.Verdict{Phase: poll.Failed, Message: st.Message}
	default:
		return poll.Verdict{Phase: poll.Pending}
	}
}

// WaitForReport polls a report generation until it completes or fails.
func (s *Session) WaitForReport(ctx context.Context, generationID string, cfg poll.Config) (ReportStatus, error) {
	check := func(ctx context.Context) (ReportStatus, error) {
		return s.ReportStatus(ctx, generationID)
	}
	poller := poll.New("report", "report generation "+generationID, check, classifyReport, cfg,
		poll.WithMetrics[ReportStatus](s.metrics))
	return poller.Wait(ctx)
}

// DownloadReport generates a report, waits for it and writes it to dest,
// overwriting any existing file. Nothing is written unless generation completes.
func (s *Session) DownloadReport(ctx context.Context, r ReportRequest, dest string, cfg poll.Config) error {
	generationID, err := s.GenerateReport(ctx, r)
	if err != nil {
		return err
	}

	st, err := s.WaitForReport(ctx, generationID, cfg)
	if err != nil {
		return err
	}
	if st.DownloadURL == "" {
		return apperrors.Decode("/Reports/Workbooks/Status/"+generationID, fmt.Errorf("no download URL returned"))
	}

	size, err := s.storage.Download(ctx, st.DownloadURL, dest)
	if err != nil {
		return err
	}
	slog.Info("Downloaded report", "generationId", generationID, "dest", dest, "bytes", size)
	return nil
}
