package slope_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slopectl/internal/poll"
	"slopectl/internal/slope"
	"slopectl/internal/testutil"
)

var (
	fastRun    = slope.ProjectionWaitConfig{Interval: time.Millisecond, Timeout: 5 * time.Second}
	fastReport = poll.Config{Interval: time.Millisecond, Timeout: 5 * time.Second}
)

func newSession(t *testing.T, f *testutil.FakeAPI) *slope.Session {
	t.Helper()
	s, err := slope.Authorize(context.Background(), slope.Options{
		BaseURL:       f.BaseURL(),
		HTTPClient:    f.Server.Client(),
		StorageClient: f.Server.Client(),
	}, "key", "secret")
	require.NoError(t, err)
	return s
}

// projectionRoutes serves GET /Projections/{id}: the running probe answers
// from running in order (repeating the last), the status query answers status.
func projectionRoutes(f *testutil.FakeAPI, id int, status string, running ...bool) {
	var (
		mu sync.Mutex
		n  int
	)
	f.Handle(http.MethodGet, fmt.Sprintf("/Projections/%d", id), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Fields") == "status" {
			testutil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
			return
		}
		mu.Lock()
		i := min(n, len(running)-1)
		n++
		mu.Unlock()
		testutil.WriteJSON(w, http.StatusOK, map[string]bool{"isRunning": running[i]})
	})
}

// probeCount counts running probes, which carry no query string.
func probeCount(f *testutil.FakeAPI, id int) int {
	n := 0
	for _, r := range f.Requests(http.MethodGet, fmt.Sprintf("/Projections/%d", id)) {
		if r.Query == "" {
			n++
		}
	}
	return n
}

func statusCount(f *testutil.FakeAPI, id int) int {
	return len(f.Requests(http.MethodGet, fmt.Sprintf("/Projections/%d", id))) - probeCount(f, id)
}
