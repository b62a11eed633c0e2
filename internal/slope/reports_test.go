package slope_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopectl/internal/apperrors"
	"slopectl/internal/poll"
	"slopectl/internal/slope"
	"slopectl/internal/testutil"
)

const (
	workbookID = "5rMaW9R0yVoehrIjyAUtew"
	elementID  = "e8f1"
)

func reportRequest() slope.ReportRequest {
	return slope.ReportRequest{WorkbookID: workbookID, ElementID: elementID, Format: slope.FormatExcel}
}

func generateRoute(f *testutil.FakeAPI, generationID any) {
	f.JSON(http.MethodPost, "/Reports/Workbooks/"+workbookID+"/Generate", http.StatusOK,
		map[string]any{"generationId": generationID})
}

func TestDownloadReport(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	generateRoute(f, "g-1")
	f.Sequence(http.MethodGet, "/Reports/Workbooks/Status/g-1",
		slope.ReportStatus{Status: "Pending"},
		slope.ReportStatus{Status: "InProgress"},
		slope.ReportStatus{Status: slope.ReportCompleted, DownloadURL: f.StorageURL("/storage/report.xlsx")},
	)
	payload := []byte("xlsx bytes")
	f.Handle(http.MethodGet, "/storage/report.xlsx", func(w http.ResponseWriter, r *http.Request) {
		// Only fetched once generation has completed.
		assert.Equal(t, 3, f.Count(http.MethodGet, "/Reports/Workbooks/Status/g-1"))
		_, _ = w.Write(payload)
	})
	s := newSession(t, f)

	dest := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, s.DownloadReport(context.Background(), reportRequest().ForProjection(42), dest, fastReport))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	gen := f.Requests(http.MethodPost, "/Reports/Workbooks/"+workbookID+"/Generate")
	require.Len(t, gen, 1)
	assert.JSONEq(t, `{"elementId":"e8f1","reportFormat":"Excel","parameters":{"Projection-ID":"42"}}`, string(gen[0].Body))
	assert.Empty(t, f.Requests(http.MethodGet, "/storage/report.xlsx")[0].Auth)
}

func TestDownloadReport_FailedWritesNothing(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	generateRoute(f, "g-2")
	f.Sequence(http.MethodGet, "/Reports/Workbooks/Status/g-2",
		slope.ReportStatus{Status: "InProgress"},
		slope.ReportStatus{Status: slope.ReportFailed, Message: "M", DownloadURL: f.StorageURL("/storage/never")},
	)
	f.Bytes(http.MethodGet, "/storage/never", []byte("should not be fetched"))
	s := newSession(t, f)

	dest := filepath.Join(t.TempDir(), "report.xlsx")
	err := s.DownloadReport(context.Background(), reportRequest(), dest, fastReport)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrJobFailed)
	assert.Contains(t, err.Error(), "M")
	assert.NoFileExists(t, dest)
	assert.Zero(t, f.Count(http.MethodGet, "/storage/never"))
}

func TestDownloadReport_CompletedWithoutURL(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	generateRoute(f, "g-3")
	f.JSON(http.MethodGet, "/Reports/Workbooks/Status/g-3", http.StatusOK, slope.ReportStatus{Status: slope.ReportCompleted})
	s := newSession(t, f)

	dest := filepath.Join(t.TempDir(), "report.csv")
	err := s.DownloadReport(context.Background(), reportRequest(), dest, fastReport)
	assert.ErrorIs(t, err, apperrors.ErrDecode)
	assert.NoFileExists(t, dest)
}

func TestDownloadReport_Timeout(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	generateRoute(f, "g-4")
	f.JSON(http.MethodGet, "/Reports/Workbooks/Status/g-4", http.StatusOK, slope.ReportStatus{Status: "InProgress"})
	s := newSession(t, f)

	dest := filepath.Join(t.TempDir(), "report.csv")
	start := time.Now()
	err := s.DownloadReport(context.Background(), reportRequest(), dest, poll.Config{
		Interval: 10 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.NoFileExists(t, dest)
}

func TestDownloadReport_GenerateRejected(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.Handle(http.MethodPost, "/Reports/Workbooks/"+workbookID+"/Generate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown element", http.StatusBadRequest)
	})
	s := newSession(t, f)

	err := s.DownloadReport(context.Background(), reportRequest(), filepath.Join(t.TempDir(), "r.csv"), fastReport)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubmit)
	assert.Contains(t, err.Error(), "unknown element")
}

func TestGenerateReport_NumericGenerationID(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	generateRoute(f, 98765)
	s := newSession(t, f)

	id, err := s.GenerateReport(context.Background(), reportRequest())
	require.NoError(t, err)
	assert.Equal(t, "98765", id)

	gen := f.Requests(http.MethodPost, "/Reports/Workbooks/"+workbookID+"/Generate")
	assert.JSONEq(t, `{"elementId":"e8f1","reportFormat":"Excel","parameters":{}}`, string(gen[0].Body))
}

func TestReportRequest_ForProjection(t *testing.T) {
	base := reportRequest()
	base.Parameters = map[string]string{"Scenario": "Base"}

	r := base.ForProjection(42)
	assert.Equal(t, map[string]string{"Scenario": "Base", "Projection-ID": "42"}, r.Parameters)
	assert.Equal(t, map[string]string{"Scenario": "Base"}, base.Parameters, "original is not modified")

	base.Parameters[slope.ProjectionIDParam] = "7"
	assert.Equal(t, "7", base.ForProjection(42).Parameters[slope.ProjectionIDParam], "an explicit projection is kept")
}

// Run a projection to completion, then render and download a report.
func TestProjectionToReport(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.Handle(http.MethodPost, "/Projections/42/run", func(w http.ResponseWriter, r *http.Request) {})
	projectionRoutes(f, 42, slope.StatusCompleted, true, true, false)
	generateRoute(f, "g-9")
	f.Sequence(http.MethodGet, "/Reports/Workbooks/Status/g-9",
		slope.ReportStatus{Status: "InProgress"},
		slope.ReportStatus{Status: slope.ReportCompleted, DownloadURL: f.StorageURL("/storage/g-9.csv")},
	)
	payload := []byte("period,reserve\n1,1000.50\n2,998.25\n")
	f.Bytes(http.MethodGet, "/storage/g-9.csv", payload)
	s := newSession(t, f)

	dest := filepath.Join(t.TempDir(), "reserves.csv")
	require.NoError(t, os.WriteFile(dest, []byte("previous run output, much longer than the new report body"), 0o644))

	ctx := context.Background()
	status, err := s.RunAndWait(ctx, 42, fastRun)
	require.NoError(t, err)
	require.Equal(t, slope.StatusCompleted, status)
	assert.Equal(t, 3, probeCount(f, 42))

	req := reportRequest()
	req.Format = slope.FormatCsv
	require.NoError(t, s.DownloadReport(ctx, req.ForProjection(42), dest, fastReport))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, 2, f.Count(http.MethodGet, "/Reports/Workbooks/Status/g-9"))
	assert.Equal(t, 1, f.Count(http.MethodGet, "/storage/g-9.csv"))
}
